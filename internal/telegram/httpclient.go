package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/otpbot/internal/telegram/netutil"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	responseTimeout   = 5 * time.Second
	clientTimeout     = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	httpRetryAttempts = 3
	httpRetryBackoff  = 2 * time.Second
)

// buildHTTPClient returns an HTTP client tuned for Telegram API calls,
// with transparent retries on transient network errors. The client
// timeout must leave room for long-poll requests held open by the API.
func buildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: httpRetryAttempts,
			backoff:    httpRetryBackoff,
		},
	}
}

// retryTransport re-sends a request after transient network failures.
// Requests with a consumed, non-replayable body are never retried.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		curr, err := replayable(req, attempt)
		if err != nil {
			return nil, err
		}
		if curr == nil {
			return nil, lastErr
		}

		resp, err := base.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !netutil.ShouldRetry(err) || attempt == t.maxRetries {
			break
		}
		if err := t.wait(req, attempt+1); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// replayable returns the request to send on the given attempt, or nil when
// the body cannot be replayed.
func replayable(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 0 {
		return req, nil
	}
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		curr := req.Clone(req.Context())
		curr.Body = body
		return curr, nil
	}
	if req.Body != nil {
		return nil, nil
	}
	return req.Clone(req.Context()), nil
}

func (t *retryTransport) wait(req *http.Request, attempt int) error {
	delay := t.backoff * time.Duration(attempt)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
