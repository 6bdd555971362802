// Package session holds per-conversation context between turns and the
// stores that keep it.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/hejijunhao/amber/internal/model"
)

// ErrNotFound is returned by a Store for an unknown session id.
var ErrNotFound = errors.New("session: not found")

// State is the context one conversation carries between turns.
type State struct {
	// Stack is the ancestor chain of the last resolved node, most specific
	// first, root excluded.
	Stack []model.NodeID `json:"stack,omitempty"`
	// LastLabel is the label of the last resolved node, appended to
	// sub-queries recognized as connector references.
	LastLabel string `json:"last_label,omitempty"`
	// Generation is the tree generation Stack refers to.
	Generation uint64 `json:"generation"`
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	s.Stack = slices.Clone(s.Stack)
	return s
}

// Store persists session state by id.
type Store interface {
	Get(ctx context.Context, id string) (State, error)
	Put(ctx context.Context, id string, st State) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Manager serializes turns per session and commits state only when a turn
// succeeds. Different sessions proceed in parallel.
type Manager struct {
	store Store

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a Manager over store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, locks: make(map[string]*keyLock)}
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &keyLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Do loads the state of session id (empty if unknown), runs fn on a private
// copy and stores the copy only if fn returns nil. Calls for the same id run
// one at a time.
func (m *Manager) Do(ctx context.Context, id string, fn func(*State) error) error {
	unlock := m.lock(id)
	defer unlock()

	st, err := m.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		st = State{}
	} else if err != nil {
		return err
	}

	work := st.Clone()
	if err := fn(&work); err != nil {
		return err
	}
	return m.store.Put(ctx, id, work)
}

// Get returns a copy of the state of session id.
func (m *Manager) Get(ctx context.Context, id string) (State, error) {
	st, err := m.store.Get(ctx, id)
	if err != nil {
		return State{}, err
	}
	return st.Clone(), nil
}

// Reset forgets session id.
func (m *Manager) Reset(ctx context.Context, id string) error {
	unlock := m.lock(id)
	defer unlock()
	return m.store.Delete(ctx, id)
}

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }
