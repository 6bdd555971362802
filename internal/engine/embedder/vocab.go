package embedder

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// vocab is a WordPiece vocabulary: one token per line, the 0-based line
// number is the token id. all-MiniLM-L12-v2 ships the bert-base-uncased list.
type vocab struct {
	ids  map[string]int64
	size int

	pad, unk, cls, sep int64
}

func loadVocab(path string) (*vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()
	v, err := parseVocab(f)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	return v, nil
}

// parseVocab reads a vocabulary from r. CRLF line endings are accepted; a
// token listed twice keeps its first id.
func parseVocab(r io.Reader) (*vocab, error) {
	v := &vocab{ids: make(map[string]int64, 32000)}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := v.ids[tok]; !dup {
			v.ids[tok] = int64(v.size)
		}
		v.size++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read: %w", err)
	}
	if v.size == 0 {
		return nil, errors.New("vocab: empty")
	}

	for name, dst := range map[string]*int64{
		"[PAD]": &v.pad,
		"[UNK]": &v.unk,
		"[CLS]": &v.cls,
		"[SEP]": &v.sep,
	} {
		id, ok := v.ids[name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", name)
		}
		*dst = id
	}
	return v, nil
}

// id returns the id of tok and whether it is in the vocabulary.
func (v *vocab) id(tok string) (int64, bool) {
	id, ok := v.ids[tok]
	return id, ok
}
