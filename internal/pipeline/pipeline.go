// Package pipeline connects the engine, the session manager and the
// transcript output into one request path shared by every transport.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output"
	"github.com/hejijunhao/amber/internal/session"
)

// Responder answers one user turn against a session state. *engine.Engine
// implements it.
type Responder interface {
	Turn(ctx context.Context, st *session.State, text string) ([]model.Reply, error)
}

// Answer is the result of one Ask.
type Answer struct {
	SessionID string        `json:"session"`
	TurnID    string        `json:"turn"`
	Replies   []model.Reply `json:"replies"`
}

// Texts returns the reply strings in sub-query order.
func (a Answer) Texts() []string {
	out := make([]string, len(a.Replies))
	for i, r := range a.Replies {
		out[i] = r.Text
	}
	return out
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the timestamp source for turn records.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs turns for any number of sessions.
type Pipeline struct {
	engine   Responder
	sessions *session.Manager
	output   output.Output
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Pipeline. out may be nil when no transcript is kept.
func New(eng Responder, sessions *session.Manager, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:   eng,
		sessions: sessions,
		output:   out,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "pipeline")
	return p
}

// Ask runs one turn for sessionID. An empty sessionID starts a new session
// whose id is returned in the Answer. The session's context is updated
// only when the turn succeeds. Every turn, failed ones included, is
// written to the transcript.
func (p *Pipeline) Ask(ctx context.Context, sessionID, query string) (Answer, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	ans := Answer{SessionID: sessionID, TurnID: uuid.NewString()}
	start := p.now()

	err := p.sessions.Do(ctx, sessionID, func(st *session.State) error {
		replies, err := p.engine.Turn(ctx, st, query)
		if err != nil {
			return err
		}
		ans.Replies = replies
		return nil
	})

	rec := model.TurnRecord{
		ID:        ans.TurnID,
		SessionID: sessionID,
		Timestamp: start,
		Query:     query,
		Replies:   ans.Replies,
		Duration:  p.now().Sub(start),
	}
	if err != nil {
		rec.Error = err.Error()
		rec.Replies = nil
	}
	p.record(ctx, rec)

	if err != nil {
		p.logger.Warn("turn failed", "session", sessionID, "error", err)
		return Answer{SessionID: sessionID, TurnID: ans.TurnID}, fmt.Errorf("pipeline: %w", err)
	}
	return ans, nil
}

// Reset forgets the context of sessionID.
func (p *Pipeline) Reset(ctx context.Context, sessionID string) error {
	if err := p.sessions.Reset(ctx, sessionID); err != nil {
		return fmt.Errorf("pipeline: reset %s: %w", sessionID, err)
	}
	return nil
}

// record writes the transcript entry. A transcript failure never fails the turn.
func (p *Pipeline) record(ctx context.Context, rec model.TurnRecord) {
	if p.output == nil {
		return
	}
	if err := p.output.Write(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Warn("transcript write failed", "session", rec.SessionID, "turn", rec.ID, "error", err)
	}
}

// Close shuts down the output and the session store.
func (p *Pipeline) Close() error {
	var outErr error
	if p.output != nil {
		outErr = p.output.Close()
	}
	if err := p.sessions.Close(); err != nil {
		return err
	}
	return outErr
}
