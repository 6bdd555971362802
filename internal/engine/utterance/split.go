package utterance

import (
	"strings"
	"unicode"
)

// abbreviations never end a sentence even when followed by a space.
var abbreviations = map[string]struct{}{
	"mr": {}, "mrs": {}, "ms": {}, "dr": {}, "prof": {}, "sr": {}, "jr": {}, "st": {},
	"vs": {}, "etc": {}, "e.g": {}, "i.e": {}, "inc": {}, "ltd": {}, "no": {}, "approx": {},
}

// Split breaks text into sentences. A sentence ends at a run of '.', '!' or
// '?' followed by whitespace or end of text, unless the word before a single
// '.' is a known abbreviation or a lone letter (an initial). Terminal
// punctuation stays with its sentence; empty sentences are dropped.
func Split(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i
		for end+1 < len(runes) && isTerminal(runes[end+1]) {
			end++
		}
		if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}
		if end == i && runes[i] == '.' && isAbbreviation(runes[start:i]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
			out = append(out, s)
		}
		start = end + 1
		i = end
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isAbbreviation reports whether the last word of prefix is an abbreviation.
func isAbbreviation(prefix []rune) bool {
	j := len(prefix)
	for j > 0 && !unicode.IsSpace(prefix[j-1]) {
		j--
	}
	word := strings.ToLower(string(prefix[j:]))
	if word == "" {
		return false
	}
	if r := []rune(word); len(r) == 1 && unicode.IsLetter(r[0]) {
		return true
	}
	_, ok := abbreviations[word]
	return ok
}
