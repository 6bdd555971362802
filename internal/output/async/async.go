package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output"
)

const (
	defaultBufferSize   = 1024
	defaultDrainTimeout = 5 * time.Second
)

// Option configures an Async wrapper.
type Option func(*Async)

// WithBufferSize sets the channel buffer capacity. Default: 1024.
func WithBufferSize(n int) Option {
	return func(a *Async) { a.bufSize = n }
}

// WithOnError sets the callback invoked when the inner output's Write fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(a *Async) { a.errFunc = f }
}

// WithDropOnFull makes Write return immediately, dropping the record, when
// the buffer is full instead of blocking the turn.
func WithDropOnFull() Option {
	return func(a *Async) { a.dropOnFull = true }
}

// WithDrainTimeout bounds how long Close waits for buffered records. Default: 5s.
func WithDrainTimeout(d time.Duration) Option {
	return func(a *Async) { a.drainTimeout = d }
}

// Async takes transcript writes off the turn path via a buffered channel.
// A background goroutine drains it to the wrapped output. Errors from the
// inner output go to errFunc rather than to the caller.
type Async struct {
	inner        output.Output
	ch           chan model.TurnRecord
	done         chan struct{}
	errFunc      func(error)
	bufSize      int
	drainTimeout time.Duration
	dropOnFull   bool
	closeOnce    sync.Once
}

// New wraps an output.Output in an async channel-based writer.
// The background drain goroutine starts immediately.
func New(inner output.Output, opts ...Option) *Async {
	a := &Async{
		inner:        inner,
		bufSize:      defaultBufferSize,
		drainTimeout: defaultDrainTimeout,
		errFunc:      func(err error) { slog.Warn("async output write error", "error", err) },
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ch = make(chan model.TurnRecord, a.bufSize)
	a.done = make(chan struct{})
	go a.drain()
	return a
}

// Write queues the record. By default it blocks while the buffer is full
// (backpressure) or until ctx is done. With WithDropOnFull it returns nil
// immediately and the record is lost.
func (a *Async) Write(ctx context.Context, rec model.TurnRecord) error {
	if a.dropOnFull {
		select {
		case a.ch <- rec:
		default:
			slog.Warn("async output buffer full, dropping turn record",
				"session", rec.SessionID, "turn", rec.ID)
		}
		return nil
	}
	select {
	case a.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel, waits for the drain goroutine to finish
// (with a timeout), then closes the inner output. Write must not be
// called after Close.
func (a *Async) Close() error {
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		t := time.NewTimer(a.drainTimeout)
		defer t.Stop()
		select {
		case <-a.done:
		case <-t.C:
			slog.Warn("async output drain timed out")
		}
		err = a.inner.Close()
	})
	return err
}

func (a *Async) drain() {
	defer close(a.done)
	for rec := range a.ch {
		if err := a.inner.Write(context.Background(), rec); err != nil {
			a.errFunc(err)
		}
	}
}
