package taxonomy

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hejijunhao/amber/internal/model"
)

const snapshotVersion = 2

// SnapshotInfo identifies the embedder that produced a snapshot's vectors.
// Embedder is an opaque provider key (provider, model and projection);
// Dim is the vector width, 0 for an uncached tree.
type SnapshotInfo struct {
	Embedder string
	Dim      int
}

// snapshot is the on-disk form of a built tree. gob drops empty slices, so
// Cached records whether nil vector caches must be restored as empty ones.
type snapshot struct {
	Version  int
	Embedder string
	Dim      int
	Cached   bool
	Nodes    []model.Node
}

// WriteSnapshot encodes t, including any embedding cache, to w. embedderID
// names the provider that built the cache.
func WriteSnapshot(w io.Writer, t *model.Tree, embedderID string) error {
	snap := snapshot{
		Version:  snapshotVersion,
		Embedder: embedderID,
		Dim:      t.VectorDim(),
		Cached:   t.Cached(),
		Nodes:    t.Nodes,
	}
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("taxonomy: write snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a tree written by WriteSnapshot.
func ReadSnapshot(r io.Reader) (*model.Tree, SnapshotInfo, error) {
	var snap snapshot
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("taxonomy: read snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, SnapshotInfo{}, fmt.Errorf("taxonomy: snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	if len(snap.Nodes) == 0 || snap.Nodes[0].Parent != model.NoNode {
		return nil, SnapshotInfo{}, fmt.Errorf("%w: snapshot has no root", ErrInvalidTree)
	}
	for i := range snap.Nodes {
		n := &snap.Nodes[i]
		if n.ID != model.NodeID(i) {
			return nil, SnapshotInfo{}, fmt.Errorf("%w: snapshot node %d has id %d", ErrInvalidTree, i, n.ID)
		}
		for _, v := range n.Vectors {
			if len(v) != snap.Dim {
				return nil, SnapshotInfo{}, fmt.Errorf("%w: node %q has a %d-wide vector in a %d-wide snapshot",
					ErrInvalidTree, n.Label, len(v), snap.Dim)
			}
		}
		if snap.Cached && n.Vectors == nil {
			n.Vectors = [][]float32{}
		}
	}
	tree := &model.Tree{Nodes: snap.Nodes}
	return tree, SnapshotInfo{Embedder: snap.Embedder, Dim: snap.Dim}, nil
}

// SaveSnapshot writes t to path atomically via a temp file and rename.
func SaveSnapshot(path string, t *model.Tree, embedderID string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteSnapshot(tmp, t, embedderID); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("taxonomy: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file.
func LoadSnapshot(path string) (*model.Tree, SnapshotInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, SnapshotInfo{}, fmt.Errorf("taxonomy: %w", err)
	}
	defer f.Close()
	return ReadSnapshot(f)
}
