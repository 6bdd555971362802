// Package render turns resolved nodes into reply text.
package render

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/hejijunhao/amber/internal/model"
)

// Cleared is the reply to a recognized clear-context command.
const Cleared = "Cleared previous context"

// Clarify prefixes a stalled node's response with a question naming its
// topic. It is used when the match came only from remembered context.
func Clarify(topic, response string) string {
	return fmt.Sprintf("What are you looking for in %s? %s", topic, response)
}

// NotUnderstood is the reply when no pass advanced, echoing the sub-query.
func NotUnderstood(query string) string {
	return fmt.Sprintf("I don't quite understand what you are trying to ask by \"%s\"", query)
}

// Picker chooses one alternative from a multi-valued response. It is safe
// for concurrent use.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPicker creates a Picker. Seed 0 seeds from the clock.
func NewPicker(seed uint64) *Picker {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Picker{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Pick returns one entry of r chosen uniformly, or "" for an empty response.
func (p *Picker) Pick(r model.Response) string {
	switch len(r) {
	case 0:
		return ""
	case 1:
		return r[0]
	}
	p.mu.Lock()
	i := p.rng.IntN(len(r))
	p.mu.Unlock()
	return r[i]
}

// Truncate shortens s to at most n bytes, marking the cut with "...". The
// cut never splits a multi-byte character.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
