package embedder

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownProvider is returned by Open for an unregistered provider name.
var ErrUnknownProvider = errors.New("embedder: unknown provider")

// Options carries every provider's settings; each constructor reads the
// fields it needs.
type Options struct {
	ModelPath      string
	VocabPath      string
	ProjectionPath string
	BaseURL        string
	Model          string
	APIKey         string
	Dim            int
}

// Constructor creates a provider from Options.
type Constructor func(Options) (Embedder, error)

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{}
)

func init() {
	Register("onnx", func(o Options) (Embedder, error) {
		return New(o.ModelPath, o.VocabPath, o.ProjectionPath)
	})
	Register("openai", func(o Options) (Embedder, error) {
		if o.APIKey == "" && o.BaseURL == "" {
			return nil, errors.New("embedder: openai: API key or base URL required")
		}
		return NewOpenAI(o.APIKey, o.BaseURL, o.Model), nil
	})
	Register("tei", func(o Options) (Embedder, error) {
		if o.BaseURL == "" {
			return nil, errors.New("embedder: tei: base URL required")
		}
		return NewTEI(o.BaseURL, o.APIKey), nil
	})
	Register("lexical", func(o Options) (Embedder, error) {
		return NewLexical(o.Dim), nil
	})
}

// Register adds a provider constructor under name, replacing any previous one.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Open constructs the provider registered under name.
func Open(name string, opts Options) (Embedder, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return ctor(opts)
}

// Providers returns the registered provider names, sorted.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
