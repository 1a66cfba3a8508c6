package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

const defaultSinkBuffer = 64 * 1024

// asyncWriter decouples log producers from sink I/O. Records are copied
// into a channel and a single goroutine fans them out to every sink, so a
// slow file or pipe never blocks a handler beyond channel capacity.
type asyncWriter struct {
	in      chan []byte
	flushc  chan chan error
	stopped chan struct{}

	closeOnce sync.Once

	mu   sync.Mutex
	outs []*bufio.Writer
	err  error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = defaultSinkBuffer
	}
	var outs []*bufio.Writer
	for _, w := range writers {
		if w != nil {
			outs = append(outs, bufio.NewWriterSize(w, bufSize))
		}
	}
	aw := &asyncWriter{
		in:      make(chan []byte, 256),
		flushc:  make(chan chan error),
		stopped: make(chan struct{}),
		outs:    outs,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	for {
		select {
		case rec, ok := <-w.in:
			if !ok {
				w.flushSinks()
				close(w.stopped)
				return
			}
			if len(rec) > 0 {
				w.fanOut(rec)
			}
		case ack := <-w.flushc:
			ack <- w.flushSinks()
		}
	}
}

// Write copies p and hands it to the writer goroutine. If the channel is
// full the call blocks rather than dropping the record.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	rec := make([]byte, len(p))
	copy(rec, p)
	w.in <- rec
	return nil
}

// Flush blocks until everything queued so far has reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushc <- ack
	return <-ack
}

// Close drains the queue, flushes the sinks and returns the first write
// error seen over the writer's lifetime. Safe to call more than once.
func (w *asyncWriter) Close() error {
	w.closeOnce.Do(func() { close(w.in) })
	<-w.stopped
	return w.firstErr()
}

func (w *asyncWriter) fanOut(rec []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range w.outs {
		if _, err := out.Write(rec); err != nil {
			w.recordErr(err)
			return
		}
		if err := out.Flush(); err != nil {
			w.recordErr(err)
			return
		}
	}
}

func (w *asyncWriter) flushSinks() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, out := range w.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// recordErr keeps the first failure; callers must hold mu.
func (w *asyncWriter) recordErr(err error) {
	if w.err == nil {
		w.err = err
	}
}
