package sender

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRunsJobs(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 8})
	defer d.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := d.Enqueue(context.Background(), "send.text", func() error {
			defer wg.Done()
			ran.Add(1)
			return nil
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, int32(5), ran.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	defer d.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), "send.text", func() error {
		close(started)
		<-block
		return nil
	})
	<-started

	// fill the single queue slot, then the next enqueue must bounce
	_ = d.Enqueue(context.Background(), "send.text", func() error { return nil })
	err := d.Enqueue(context.Background(), "send.text", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)
	close(block)
}

func TestDispatcherCloseDrainsAndRejects(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4})

	var ran atomic.Int32
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
			ran.Add(1)
			return nil
		}))
	}
	d.Close()
	assert.Equal(t, int32(3), ran.Load())

	err := d.Enqueue(context.Background(), "send.text", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDispatcherCountsFailures(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4, MaxRetries: 0, MaxDuration: time.Second})

	done := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "send.text", func() error {
		defer close(done)
		return assert.AnError
	}))
	<-done
	d.Close()
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestRedactToken(t *testing.T) {
	err := assert.AnError
	assert.Equal(t, err.Error(), redactToken(err))

	leaky := &urlishError{msg: "Post https://api.telegram.org/bot123456:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/sendMessage: timeout"}
	got := redactToken(leaky)
	assert.NotContains(t, got, "123456:AAH")
	assert.Contains(t, got, "bot<redacted>")
}

type urlishError struct{ msg string }

func (e *urlishError) Error() string { return e.msg }
