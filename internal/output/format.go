package output

import (
	"fmt"
	"strings"

	"github.com/hejijunhao/amber/internal/model"
)

// Verbosity controls how much of a turn record reaches a sink.
type Verbosity int

const (
	// Minimal keeps the query, the reply texts and their kinds.
	Minimal Verbosity = iota
	// Standard adds labels, confidences, augmentation flags and turn duration.
	Standard
	// Full adds the per-level confidence trace of every reply.
	Full
)

func (v Verbosity) String() string {
	switch v {
	case Minimal:
		return "minimal"
	case Standard:
		return "standard"
	case Full:
		return "full"
	}
	return fmt.Sprintf("verbosity(%d)", int(v))
}

// ParseVerbosity maps a config string to a Verbosity. Empty means Standard.
func ParseVerbosity(s string) (Verbosity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return Minimal, nil
	case "", "standard":
		return Standard, nil
	case "full":
		return Full, nil
	}
	return Standard, fmt.Errorf("output: unknown verbosity %q", s)
}

// FormatRecord returns a copy of the record with fields stripped according to verbosity.
// At Minimal: Label, Confidence, Augmented, Trace and Duration are zeroed.
// At Standard: Trace is zeroed.
// At Full: all fields preserved.
// The input record is never modified.
func FormatRecord(r model.TurnRecord, verbosity Verbosity) model.TurnRecord {
	if verbosity >= Full || len(r.Replies) == 0 {
		if verbosity == Minimal {
			r.Duration = 0
		}
		return r
	}
	replies := make([]model.Reply, len(r.Replies))
	copy(replies, r.Replies)
	for i := range replies {
		replies[i].Trace = nil
		if verbosity == Minimal {
			replies[i].Label = ""
			replies[i].Confidence = 0
			replies[i].Augmented = false
		}
	}
	r.Replies = replies
	if verbosity == Minimal {
		r.Duration = 0
	}
	return r
}
