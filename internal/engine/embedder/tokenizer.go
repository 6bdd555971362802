package embedder

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// defaultMaxSeqLen matches the max_seq_length of the MiniLM sentence models.
// Utterances and example phrases are far shorter, so truncation is rare.
const defaultMaxSeqLen = 128

// maxWordRunes is the longest word WordPiece will try to split; longer words
// become [UNK], as in the reference tokenizer.
const maxWordRunes = 200

// batch is a padded encoder input. All slices are flat [size * seqLen].
type batch struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	size          int64
	seqLen        int64
}

// tokenizer is a BERT uncased WordPiece tokenizer.
type tokenizer struct {
	vocab  *vocab
	maxLen int
}

// newTokenizer loads vocabPath. Sequences are truncated to maxLen ids
// including [CLS] and [SEP].
func newTokenizer(vocabPath string, maxLen int) (*tokenizer, error) {
	v, err := loadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	return newTokenizerFromVocab(v, maxLen), nil
}

func newTokenizerFromVocab(v *vocab, maxLen int) *tokenizer {
	if maxLen < 3 {
		maxLen = defaultMaxSeqLen
	}
	return &tokenizer{vocab: v, maxLen: maxLen}
}

// encode returns the ids of text framed by [CLS] and [SEP], unpadded.
func (t *tokenizer) encode(text string) []int64 {
	ids := []int64{t.vocab.cls}
	limit := t.maxLen - 1
	for _, word := range basicTokens(text) {
		for _, id := range t.wordpiece(word) {
			if len(ids) == limit {
				return append(ids, t.vocab.sep)
			}
			ids = append(ids, id)
		}
	}
	return append(ids, t.vocab.sep)
}

// encodeBatch encodes texts and pads every sequence to the longest one.
// Example phrases are short, so padding to the batch maximum instead of
// maxLen keeps cache builds cheap.
func (t *tokenizer) encodeBatch(texts []string) batch {
	if len(texts) == 0 {
		return batch{}
	}
	seqs := make([][]int64, len(texts))
	seqLen := 0
	for i, text := range texts {
		seqs[i] = t.encode(text)
		seqLen = max(seqLen, len(seqs[i]))
	}

	total := len(texts) * seqLen
	b := batch{
		inputIDs:      make([]int64, total),
		attentionMask: make([]int64, total),
		tokenTypeIDs:  make([]int64, total),
		size:          int64(len(texts)),
		seqLen:        int64(seqLen),
	}
	for i, seq := range seqs {
		row := i * seqLen
		for j := range seqLen {
			if j < len(seq) {
				b.inputIDs[row+j] = seq[j]
				b.attentionMask[row+j] = 1
			} else {
				b.inputIDs[row+j] = t.vocab.pad
			}
		}
	}
	return b
}

// wordpiece splits one basic token into subword ids by greedy longest match.
// A word with any unmatchable remainder becomes a single [UNK].
func (t *tokenizer) wordpiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordRunes {
		return []int64{t.vocab.unk}
	}
	var ids []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		for ; end > start; end-- {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab.id(piece); ok {
				ids = append(ids, id)
				break
			}
		}
		if end == start {
			return []int64{t.vocab.unk}
		}
		start = end
	}
	return ids
}

// basicTokens is BERT's BasicTokenizer for uncased models: drop control
// characters, isolate CJK ideographs, lowercase, strip accents, then split on
// whitespace and around every punctuation rune.
func basicTokens(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch classify(r) {
		case charDrop:
		case charSpace:
			b.WriteByte(' ')
		case charCJK:
			b.WriteByte(' ')
			b.WriteRune(r)
			b.WriteByte(' ')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}

	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range norm.NFD.String(b.String()) {
		switch {
		case unicode.In(r, unicode.Mn):
			// combining accent
		case r == ' ':
			flush()
		case classify(r) == charPunct:
			flush()
			tokens = append(tokens, string(r))
		default:
			word.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type charClass int

const (
	charOther charClass = iota
	charDrop            // NUL, U+FFFD and control characters
	charSpace
	charPunct
	charCJK
)

// classify follows the character tests of the reference BasicTokenizer.
// BERT counts every non-alphanumeric printable ASCII rune as punctuation.
func classify(r rune) charClass {
	switch {
	case r == ' ' || r == '\t' || r == '\n' || r == '\r' || unicode.Is(unicode.Zs, r):
		return charSpace
	case r == 0 || r == unicode.ReplacementChar || unicode.IsControl(r):
		return charDrop
	case r >= 33 && r <= 47, r >= 58 && r <= 64, r >= 91 && r <= 96, r >= 123 && r <= 126:
		return charPunct
	case unicode.IsPunct(r):
		return charPunct
	case isCJK(r):
		return charCJK
	}
	return charOther
}

var cjkRanges = [][2]rune{
	{0x4E00, 0x9FFF},
	{0x3400, 0x4DBF},
	{0x20000, 0x2A6DF},
	{0x2A700, 0x2B73F},
	{0x2B740, 0x2B81F},
	{0x2B820, 0x2CEAF},
	{0xF900, 0xFAFF},
	{0x2F800, 0x2FA1F},
}

func isCJK(r rune) bool {
	for _, rg := range cjkRanges {
		if r >= rg[0] && r <= rg[1] {
			return true
		}
	}
	return false
}
