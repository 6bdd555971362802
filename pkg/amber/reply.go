package amber

import "github.com/hejijunhao/amber/internal/model"

// Reply kinds.
const (
	KindAnswer  = "answer"  // a leaf topic was reached
	KindClarify = "clarify" // stopped at a broad topic; the text asks to narrow down
	KindContext = "context" // resolved only through the conversation context
	KindUnknown = "unknown" // nothing matched
	KindCleared = "cleared" // the conversation context was reset
)

// Reply is the answer to one sentence of the user's message.
// This is the stable public type; internal representations may evolve
// independently.
type Reply struct {
	Text       string  `json:"text"`
	Kind       string  `json:"kind"`
	Topic      string  `json:"topic,omitempty"` // label of the answering topic
	Confidence float64 `json:"confidence,omitempty"`
}

func replyFromModel(r model.Reply) Reply {
	return Reply{
		Text:       r.Text,
		Kind:       string(r.Kind),
		Topic:      r.Label,
		Confidence: r.Confidence,
	}
}
