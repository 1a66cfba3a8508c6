// Package totp generates time-based one-time passwords from stored
// credential secrets. Parameters are fixed to the common authenticator
// defaults: SHA-1, 6 digits, 30-second period.
package totp

import (
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	digits = otp.DigitsSix
	period = 30
)

// Generate returns the current 6-digit code for the given base32 secret.
// The secret is upper-cased and stripped of spaces before use, so values
// pasted with formatting from provisioning UIs still work.
func Generate(secret string) (string, error) {
	return GenerateAt(secret, time.Now())
}

// GenerateAt returns the code valid at the given instant.
func GenerateAt(secret string, at time.Time) (string, error) {
	normalized := normalizeSecret(secret)
	return totp.GenerateCodeCustom(normalized, at, totp.ValidateOpts{
		Period:    period,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}

// Validate reports whether the code matches the secret at the given instant.
func Validate(code, secret string, at time.Time) bool {
	normalized := normalizeSecret(secret)
	ok, err := totp.ValidateCustom(code, normalized, at, totp.ValidateOpts{
		Period:    period,
		Digits:    digits,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(secret, " ", ""))
}
