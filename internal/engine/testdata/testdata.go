// Package testdata holds a labeled conversation corpus for the built-in
// portfolio tree. Expectations are for the lexical embedder, so the corpus
// runs without model files.
package testdata

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed corpus.json
var corpusJSON []byte

// Expect is the expected reply to one sentence.
type Expect struct {
	Kind      string `json:"kind"`
	Label     string `json:"label,omitempty"`
	Augmented bool   `json:"augmented,omitempty"`
}

// Turn is one user message and the expected reply to its first sentence.
// More lists the expected replies to any further sentences, in order.
type Turn struct {
	Query string `json:"query"`
	Expect
	More []Expect `json:"more,omitempty"`
}

// Replies returns every expected reply of the turn in sentence order.
func (t Turn) Replies() []Expect {
	return append([]Expect{t.Expect}, t.More...)
}

// Conversation is a sequence of turns within one session.
type Conversation struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Turns       []Turn `json:"turns"`
}

// LoadCorpus parses the embedded corpus.json and returns all conversations.
func LoadCorpus() ([]Conversation, error) {
	var convs []Conversation
	if err := json.Unmarshal(corpusJSON, &convs); err != nil {
		return nil, fmt.Errorf("parse corpus.json: %w", err)
	}
	return convs, nil
}
