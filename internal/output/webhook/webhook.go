package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hejijunhao/amber/internal/httpclient"
	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 10 * time.Second
)

// Option configures a webhook Output.
type Option func(*Output)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets the number of records accumulated before a flush. Default: 50.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets the maximum time between flushes. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the per-request HTTP timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.timeout = d }
}

// WithBackoff sets the base retry delay for 5xx responses. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithVerbosity sets how much of each record is sent. Default: Standard.
func WithVerbosity(v output.Verbosity) Option {
	return func(o *Output) { o.verbosity = v }
}

// WithOnError sets a callback invoked when a timer-triggered flush fails.
// Default: logs a warning via slog.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output POSTs batched turn records to an HTTP endpoint as a JSON array.
// Records accumulate in an internal buffer and are flushed when batchSize is
// reached or flushInterval elapses. 429 and 5xx responses are retried by
// the underlying httpclient.
type Output struct {
	client        *httpclient.Client
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	timeout       time.Duration
	backoff       time.Duration
	verbosity     output.Verbosity
	errFunc       func(error)
	mu            sync.Mutex
	pending       []model.TurnRecord
	timer         *time.Timer
}

// New creates a webhook output targeting the given URL.
func New(url string, opts ...Option) *Output {
	o := &Output{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		timeout:       defaultTimeout,
		backoff:       time.Second,
		verbosity:     output.Standard,
		errFunc:       func(err error) { slog.Warn("webhook flush error", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.client = httpclient.New(url, "",
		httpclient.WithTimeout(o.timeout),
		httpclient.WithBackoff(o.backoff),
		httpclient.WithHeaders(o.headers),
	)
	return o
}

// Write appends a record to the batch. When batchSize is reached, the batch
// is flushed immediately. A timer is started on the first record so the
// batch flushes even if batchSize is never reached.
func (o *Output) Write(ctx context.Context, rec model.TurnRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.pending = append(o.pending, output.FormatRecord(rec, o.verbosity))

	if len(o.pending) >= o.batchSize {
		return o.flushLocked(ctx)
	}

	if len(o.pending) == 1 {
		o.timer = time.AfterFunc(o.flushInterval, func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			if err := o.flushLocked(context.Background()); err != nil {
				o.errFunc(err)
			}
		})
	}
	return nil
}

// Close flushes any remaining records and stops the timer.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	return o.flushLocked(context.Background())
}

// flushLocked sends the pending batch. Caller must hold o.mu.
func (o *Output) flushLocked(ctx context.Context) error {
	if len(o.pending) == 0 {
		return nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}

	batch := o.pending
	o.pending = nil

	if err := o.client.PostJSON(context.WithoutCancel(ctx), "", batch, nil); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}
