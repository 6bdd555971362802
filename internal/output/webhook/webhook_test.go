package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output"
)

func testRecord(query string) model.TurnRecord {
	return model.TurnRecord{
		ID:        "t-" + query,
		SessionID: "s1",
		Timestamp: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		Query:     query,
		Replies: []model.Reply{{
			Query: query, Text: "ok", Kind: model.ReplyAnswer, Confidence: 0.7,
			Trace: []model.LevelScore{{Label: "contact", Score: 0.7}},
		}},
	}
}

type collector struct {
	mu       sync.Mutex
	received [][]model.TurnRecord
}

func (c *collector) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var batch []model.TurnRecord
	json.Unmarshal(body, &batch)
	c.mu.Lock()
	c.received = append(c.received, batch)
	c.mu.Unlock()
	w.WriteHeader(200)
}

func (c *collector) batches() [][]model.TurnRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]model.TurnRecord(nil), c.received...)
}

func TestBatchFlushAtBatchSize(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(3), WithFlushInterval(10*time.Second))

	for i := 0; i < 3; i++ {
		if err := out.Write(context.Background(), testRecord("hello")); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	got := c.batches()
	if len(got) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(got))
	}
	if len(got[0]) != 3 {
		t.Errorf("batch size = %d, want 3", len(got[0]))
	}
}

func TestTimerFlushBeforeBatchSize(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(100*time.Millisecond))

	out.Write(context.Background(), testRecord("timer"))

	// Wait for the timer to fire.
	time.Sleep(300 * time.Millisecond)

	got := c.batches()
	if len(got) != 1 {
		t.Fatalf("expected 1 timer-triggered batch, got %d", len(got))
	}
	if len(got[0]) != 1 {
		t.Errorf("batch size = %d, want 1", len(got[0]))
	}
}

func TestVerbosityApplied(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithVerbosity(output.Minimal))
	out.Write(context.Background(), testRecord("quiet"))

	got := c.batches()
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("unexpected batches: %v", got)
	}
	if rep := got[0][0].Replies[0]; rep.Trace != nil || rep.Confidence != 0 {
		t.Errorf("Minimal verbosity not applied: %+v", rep)
	}
}

func TestRetryOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(500)
			return
		}
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Millisecond))
	if err := out.Write(context.Background(), testRecord("retry")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(400)
	}))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(1))
	err := out.Write(context.Background(), testRecord("client-error"))

	if err == nil {
		t.Error("expected error for 400 response")
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 4xx, got %d", attempts.Load())
	}
}

func TestCustomHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("X-Custom-Auth")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	out := New(srv.URL,
		WithBatchSize(1),
		WithHeaders(map[string]string{"X-Custom-Auth": "secret123"}),
	)

	out.Write(context.Background(), testRecord("headers"))

	if gotAuth != "secret123" {
		t.Errorf("custom header = %q, want secret123", gotAuth)
	}
}

func TestTimerFlushErrorCallbackInvoked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
	}))
	defer srv.Close()

	var errCount atomic.Int64
	out := New(srv.URL,
		WithBatchSize(100),
		WithFlushInterval(50*time.Millisecond),
		WithOnError(func(err error) { errCount.Add(1) }),
	)

	out.Write(context.Background(), testRecord("timer-error"))

	// Wait for timer-triggered flush + HTTP round-trip.
	time.Sleep(300 * time.Millisecond)

	if errCount.Load() != 1 {
		t.Errorf("expected error callback called 1 time, got %d", errCount.Load())
	}

	out.Close()
}

func TestCloseFlushesRemaining(t *testing.T) {
	c := &collector{}
	srv := httptest.NewServer(http.HandlerFunc(c.handler))
	defer srv.Close()

	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(10*time.Second))

	out.Write(context.Background(), testRecord("close-flush"))
	out.Write(context.Background(), testRecord("close-flush"))

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := c.batches()
	if len(got) != 1 {
		t.Fatalf("expected 1 batch on Close, got %d", len(got))
	}
	if len(got[0]) != 2 {
		t.Errorf("batch size = %d, want 2", len(got[0]))
	}
}
