package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/dgraph-io/badger/v4"
)

// Cached persists vectors produced by an inner provider in BadgerDB, keyed by
// namespace and text hash. Rebuilding a tree after a restart then only embeds
// examples that changed. The namespace must change whenever the inner model
// does, or stale vectors will be served.
type Cached struct {
	inner     Embedder
	db        *badger.DB
	namespace string
}

// NewCached wraps inner. The DB is owned by the caller and is not closed by Close.
func NewCached(inner Embedder, db *badger.DB, namespace string) *Cached {
	return &Cached{inner: inner, db: db, namespace: namespace}
}

func (c *Cached) key(text string) []byte {
	sum := sha256.Sum256([]byte(text))
	k := make([]byte, 0, len(c.namespace)+1+len(sum))
	k = append(k, c.namespace...)
	k = append(k, '/')
	return append(k, sum[:]...)
}

// Embed returns the cached vector for text, embedding and storing it on a miss.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch serves hits from the store and embeds all misses in one inner batch.
func (c *Cached) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	var missText []string

	err := c.db.View(func(txn *badger.Txn) error {
		for i, t := range texts {
			item, err := txn.Get(c.key(t))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missIdx = append(missIdx, i)
				missText = append(missText, t)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				v, err := decodeVector(val)
				out[i] = v
				return err
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: cache read: %w", err)
	}
	if len(missText) == 0 {
		return out, nil
	}

	fresh, err := c.inner.EmbedBatch(ctx, missText)
	if err != nil {
		return nil, err
	}
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for j, i := range missIdx {
		out[i] = fresh[j]
		if err := wb.Set(c.key(missText[j]), encodeVector(fresh[j])); err != nil {
			return nil, fmt.Errorf("embedder: cache write: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("embedder: cache write: %w", err)
	}
	return out, nil
}

// Close closes the inner provider.
func (c *Cached) Close() error { return c.inner.Close() }

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("cached vector has odd length %d", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
