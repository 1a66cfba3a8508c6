// Package netutil classifies transport errors for retry decisions.
package netutil

import (
	"errors"
	"net"
	"net/url"
)

// ShouldRetry reports whether a network error is transient enough to be
// worth another attempt. Timeouts and dial failures qualify; anything else
// (resets, protocol errors, cancellation) does not.
func ShouldRetry(err error) bool {
	for err != nil {
		switch e := err.(type) {
		case *url.Error:
			if e.Timeout() {
				return true
			}
			err = e.Err
			continue
		case *net.OpError:
			if e.Op == "dial" || e.Timeout() {
				return true
			}
			err = e.Err
			continue
		}
		if te, ok := err.(interface{ Timeout() bool }); ok && te.Timeout() {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
