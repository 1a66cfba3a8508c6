package totp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAtKnownVector(t *testing.T) {
	// RFC 6238 test secret, truncated to 6 digits with the SHA-1 variant.
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	code, err := GenerateAt(secret, time.Unix(59, 0).UTC())
	require.NoError(t, err)
	assert.Equal(t, "287082", code)
}

func TestGenerateAtDeterministicWithinPeriod(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	base := time.Unix(1700000010, 0).UTC()

	a, err := GenerateAt(secret, base)
	require.NoError(t, err)
	b, err := GenerateAt(secret, base.Add(15*time.Second))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := GenerateAt(secret, base.Add(30*time.Second))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateNormalizesSecret(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()

	plain, err := GenerateAt("JBSWY3DPEHPK3PXP", at)
	require.NoError(t, err)
	spaced, err := GenerateAt("jbsw y3dp ehpk 3pxp", at)
	require.NoError(t, err)
	assert.Equal(t, plain, spaced)
}

func TestGenerateInvalidSecret(t *testing.T) {
	_, err := GenerateAt("not-base32!!", time.Now())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	secret := "JBSWY3DPEHPK3PXP"
	at := time.Unix(1700000000, 0).UTC()

	code, err := GenerateAt(secret, at)
	require.NoError(t, err)

	assert.True(t, Validate(code, secret, at))
	assert.False(t, Validate("000000", secret, at))
}
