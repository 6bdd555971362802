package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/hejijunhao/amber/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockOutput struct {
	mu      sync.Mutex
	records []model.TurnRecord
	closed  bool
	err     error         // if set, Write returns this
	delay   time.Duration // if >0, Write sleeps first
}

func (m *mockOutput) Write(_ context.Context, rec model.TurnRecord) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return m.err
}

func (m *mockOutput) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *mockOutput) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func testRecord(query string) model.TurnRecord {
	return model.TurnRecord{ID: "t-" + query, SessionID: "s1", Query: query}
}

func TestRecordsFlowThrough(t *testing.T) {
	inner := &mockOutput{}
	a := New(inner, WithBufferSize(16))

	for i := 0; i < 10; i++ {
		if err := a.Write(context.Background(), testRecord("hello")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if inner.count() != 10 {
		t.Errorf("got %d records, want 10", inner.count())
	}
	if !inner.closed {
		t.Error("inner output not closed")
	}
}

func TestBackpressureBlocks(t *testing.T) {
	inner := &mockOutput{delay: 50 * time.Millisecond}
	a := New(inner, WithBufferSize(1))
	defer a.Close()

	a.Write(context.Background(), testRecord("first"))

	done := make(chan struct{})
	go func() {
		a.Write(context.Background(), testRecord("second"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Write blocked indefinitely (expected eventual unblock via drain)")
	}
}

func TestWriteHonorsContext(t *testing.T) {
	inner := &mockOutput{delay: 200 * time.Millisecond}
	a := New(inner, WithBufferSize(1))
	defer a.Close()

	// One record in flight, one buffered; the third has nowhere to go.
	a.Write(context.Background(), testRecord("a"))
	a.Write(context.Background(), testRecord("b"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Write(ctx, testRecord("c")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestDropOnFull(t *testing.T) {
	inner := &mockOutput{delay: 100 * time.Millisecond}
	a := New(inner, WithBufferSize(1), WithDropOnFull())

	for i := 0; i < 20; i++ {
		a.Write(context.Background(), testRecord("burst"))
	}

	a.Close()

	if inner.count() == 20 {
		t.Error("expected some records to be dropped in drop-on-full mode")
	}
	if inner.count() == 0 {
		t.Error("expected at least some records to be delivered")
	}
}

func TestCloseDrainsRemaining(t *testing.T) {
	inner := &mockOutput{}
	a := New(inner, WithBufferSize(100))

	for i := 0; i < 50; i++ {
		a.Write(context.Background(), testRecord("drain"))
	}

	a.Close()

	if inner.count() != 50 {
		t.Errorf("after Close, got %d records, want 50 (drain incomplete)", inner.count())
	}
}

func TestErrorCallbackInvoked(t *testing.T) {
	inner := &mockOutput{err: errors.New("write failed")}
	var errorCount atomic.Int64
	a := New(inner, WithBufferSize(16), WithOnError(func(err error) {
		errorCount.Add(1)
	}))

	for i := 0; i < 5; i++ {
		a.Write(context.Background(), testRecord("failing"))
	}

	a.Close()

	if errorCount.Load() != 5 {
		t.Errorf("error callback called %d times, want 5", errorCount.Load())
	}
}

func TestCloseIdempotent(t *testing.T) {
	inner := &mockOutput{}
	a := New(inner, WithBufferSize(16))

	a.Write(context.Background(), testRecord("idempotent"))

	if err := a.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}
