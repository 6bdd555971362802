// Package utterance prepares raw user text for matching: normalization,
// second-person substitution, sentence splitting and word counting.
package utterance

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultMentions are the second-person forms replaced by the bot's name, so
// that "what do you do" matches an example authored as "what does Amber AI do".
var DefaultMentions = []string{
	"you", "youre", "you're", "your", "yours", "yourself",
	"y'all", "y'all's", "y'all'self",
	"u", "ur", "urs", "urself",
}

// Normalizer lowercases, trims and collapses whitespace, then replaces
// whole-token second-person mentions with the bot name.
type Normalizer struct {
	botName  string
	mentions map[string]struct{}
}

// NewNormalizer creates a Normalizer. A nil mentions list uses DefaultMentions.
func NewNormalizer(botName string, mentions []string) *Normalizer {
	if mentions == nil {
		mentions = DefaultMentions
	}
	set := make(map[string]struct{}, len(mentions))
	for _, m := range mentions {
		set[strings.ToLower(m)] = struct{}{}
	}
	return &Normalizer{botName: botName, mentions: set}
}

// Normalize returns the canonical form of text. Mentions are matched only as
// complete tokens (runs of letters, digits and apostrophes), so "your" inside
// "yourselves" or "u" inside "menu" is left alone.
func (n *Normalizer) Normalize(text string) string {
	s := norm.NFC.String(text)
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), " ")
	if n.botName == "" || len(n.mentions) == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	start := -1
	flush := func(end int) {
		tok := s[start:end]
		if _, ok := n.mentions[tok]; ok {
			b.WriteString(n.botName)
		} else {
			b.WriteString(tok)
		}
		start = -1
	}
	for i, r := range s {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			flush(i)
		}
		b.WriteRune(r)
	}
	if start >= 0 {
		flush(len(s))
	}
	return b.String()
}

func isTokenRune(r rune) bool {
	return r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordCount returns the number of whitespace-separated words in s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
