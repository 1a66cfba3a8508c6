package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginAndGet(t *testing.T) {
	r := NewRegistry(0)

	c := r.Begin(100, StepAwaitingName)
	require.NotNil(t, c)
	assert.Equal(t, StepAwaitingName, c.Step)

	got := r.Get(100)
	require.NotNil(t, got)
	assert.Same(t, c, got)

	assert.Nil(t, r.Get(200))
}

func TestBeginSupersedes(t *testing.T) {
	r := NewRegistry(0)

	r.Begin(100, StepAwaitingSecret)
	r.Advance(100, StepAwaitingSecret, func(c *Conversation) { c.PendingName = "work" })

	r.Begin(100, StepAwaitingName)

	got := r.Get(100)
	require.NotNil(t, got)
	assert.Equal(t, StepAwaitingName, got.Step)
	assert.Empty(t, got.PendingName)
}

func TestAdvanceCarriesState(t *testing.T) {
	r := NewRegistry(0)
	r.Begin(7, StepAwaitingName)

	ok := r.Advance(7, StepAwaitingSecret, func(c *Conversation) {
		c.PendingName = "email"
	})
	require.True(t, ok)

	got := r.Get(7)
	require.NotNil(t, got)
	assert.Equal(t, StepAwaitingSecret, got.Step)
	assert.Equal(t, "email", got.PendingName)
}

func TestAdvanceMissing(t *testing.T) {
	r := NewRegistry(0)
	assert.False(t, r.Advance(42, StepAwaitingSecret, nil))
}

func TestClear(t *testing.T) {
	r := NewRegistry(0)
	r.Begin(1, StepAwaitingName)
	r.Clear(1)
	assert.Nil(t, r.Get(1))
	// clearing twice is harmless
	r.Clear(1)
}

func TestExpiry(t *testing.T) {
	r := NewRegistry(10 * time.Minute)
	now := time.Unix(1700000000, 0)
	r.clock = func() time.Time { return now }

	r.Begin(1, StepAwaitingName)
	require.NotNil(t, r.Get(1))

	now = now.Add(11 * time.Minute)
	assert.Nil(t, r.Get(1))
	assert.Equal(t, 0, r.Len())
}

func TestAdvanceRefreshesExpiry(t *testing.T) {
	r := NewRegistry(10 * time.Minute)
	now := time.Unix(1700000000, 0)
	r.clock = func() time.Time { return now }

	r.Begin(1, StepAwaitingName)

	now = now.Add(9 * time.Minute)
	require.True(t, r.Advance(1, StepAwaitingSecret, nil))

	now = now.Add(9 * time.Minute)
	assert.NotNil(t, r.Get(1))
}

func TestSweep(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Unix(1700000000, 0)
	r.clock = func() time.Time { return now }

	r.Begin(1, StepAwaitingName)
	r.Begin(2, StepAwaitingSecret)
	now = now.Add(2 * time.Minute)
	r.Begin(3, StepAwaitingNewName)

	assert.Equal(t, 2, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.NotNil(t, r.Get(3))
}

func TestStepString(t *testing.T) {
	assert.Equal(t, "awaiting_name", StepAwaitingName.String())
	assert.Equal(t, "awaiting_secret", StepAwaitingSecret.String())
	assert.Equal(t, "awaiting_new_name", StepAwaitingNewName.String())
	assert.Equal(t, "unknown", Step(99).String())
}
