// Package threshold computes the acceptance bar applied to every similarity
// comparison made for one sub-query.
package threshold

import (
	"math"

	"github.com/hejijunhao/amber/internal/engine/utterance"
)

// Policy is an exponentially decaying threshold with a floor:
//
//	threshold(q) = max(Base * e^(-Decay * words(q)), Min)
//
// Longer utterances embed less crisply and score lower against short
// examples, so they get a lower bar.
type Policy struct {
	Base  float64
	Decay float64
	Min   float64
}

// Default returns the tuned policy for all-MiniLM-L12-v2.
func Default() Policy {
	return Policy{Base: 0.6, Decay: 0.03, Min: 0.25}
}

// For returns the threshold for an utterance of the given word count.
func (p Policy) For(words int) float64 {
	return math.Max(p.Base*math.Exp(-p.Decay*float64(words)), p.Min)
}

// Threshold returns the threshold for query.
func (p Policy) Threshold(query string) float64 {
	return p.For(utterance.WordCount(query))
}
