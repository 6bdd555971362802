package model

import "time"

// ReplyKind classifies how a sub-query was answered.
type ReplyKind string

const (
	ReplyAnswer  ReplyKind = "answer"  // leaf reached
	ReplyClarify ReplyKind = "clarify" // stalled at an internal node
	ReplyContext ReplyKind = "context" // resolved only by retrying from the context stack
	ReplyUnknown ReplyKind = "unknown" // nothing advanced
	ReplyCleared ReplyKind = "cleared" // reset intent recognized
)

// LevelScore is one step of a pass: the best child at that level and its score.
type LevelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Reply is the answer produced for one sub-query.
type Reply struct {
	// Query is the sub-query text after connector augmentation.
	Query string    `json:"query"`
	Text  string    `json:"text"`
	Kind  ReplyKind `json:"kind"`
	// Label names the node that produced Text.
	Label      string       `json:"label,omitempty"`
	Confidence float64      `json:"confidence,omitempty"`
	Augmented  bool         `json:"augmented,omitempty"`
	Trace      []LevelScore `json:"trace,omitempty"`
}

// TurnRecord is the transcript entry for one user turn.
type TurnRecord struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
	Query     string        `json:"query"`
	Replies   []Reply       `json:"replies,omitempty"`
	Duration  time.Duration `json:"duration_ns,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Texts returns the rendered reply strings in sub-query order.
func (r TurnRecord) Texts() []string {
	out := make([]string, len(r.Replies))
	for i, rep := range r.Replies {
		out[i] = rep.Text
	}
	return out
}
