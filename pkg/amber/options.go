package amber

import (
	"context"
	"path/filepath"
	"time"
)

// Embedder turns text into vectors. Supply one with WithEmbedder to use a
// provider other than the built-in ones.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

type options struct {
	modelDir       string
	modelPath      string
	vocabPath      string
	projectionPath string
	lexical        bool
	embedder       Embedder

	treePath string

	base, decay, min float64
	botName          string
	seed             uint64
	turnTimeout      time.Duration
	sessionTTL       time.Duration

	connectors []string
	clears     []string
}

// Option configures a Bot.
type Option func(*options)

// WithModelDir sets the directory holding model.onnx and vocab.txt of a
// sentence-transformer export (all-MiniLM-L12-v2 by default).
func WithModelDir(dir string) Option {
	return func(o *options) { o.modelDir = dir }
}

// WithModelPaths sets explicit model, vocabulary and optional dense
// projection paths.
func WithModelPaths(model, vocab, projection string) Option {
	return func(o *options) {
		o.modelPath = model
		o.vocabPath = vocab
		o.projectionPath = projection
	}
}

// WithLexicalEmbedder uses a model-free bag-of-words embedder. Matching is
// purely on shared words; useful for tests and demos.
func WithLexicalEmbedder() Option {
	return func(o *options) { o.lexical = true }
}

// WithEmbedder uses e for every embedding. The Bot closes e on Close.
func WithEmbedder(e Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithTreeFile loads the intent tree from a JSON or YAML source. The root
// topic is the file name without extension. Default: the built-in
// portfolio tree.
func WithTreeFile(path string) Option {
	return func(o *options) { o.treePath = path }
}

// WithThreshold sets the confidence threshold curve
// max(base·e^(−decay·words), min). Default: 0.6, 0.03, 0.25.
func WithThreshold(base, decay, min float64) Option {
	return func(o *options) {
		o.base, o.decay, o.min = base, decay, min
	}
}

// WithBotName sets the name that replaces "you", "your" and friends in
// user input. Default: "Amber AI".
func WithBotName(name string) Option {
	return func(o *options) { o.botName = name }
}

// WithSeed makes the choice among alternative responses reproducible.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithTurnTimeout bounds each Ask. Default: 10s.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *options) { o.turnTimeout = d }
}

// WithSessionTTL sets how long an idle session keeps its context.
// Default: 24h. 0 keeps sessions forever.
func WithSessionTTL(d time.Duration) Option {
	return func(o *options) { o.sessionTTL = d }
}

// WithConnectorPhrases replaces the phrases that mark a follow-up as
// referring to the previous topic ("for that", "similarly", ...).
func WithConnectorPhrases(p []string) Option {
	return func(o *options) { o.connectors = p }
}

// WithClearPhrases replaces the phrases that reset the conversation
// ("clear context", "forget all", ...).
func WithClearPhrases(p []string) Option {
	return func(o *options) { o.clears = p }
}

func defaultOptions() options {
	return options{
		base:        0.6,
		decay:       0.03,
		min:         0.25,
		turnTimeout: 10 * time.Second,
		sessionTTL:  24 * time.Hour,
	}
}

// resolvePaths determines the model, vocab and projection file paths.
// Explicit paths take precedence over modelDir.
func resolvePaths(o options) (model, vocab, projection string) {
	if o.modelPath != "" {
		return o.modelPath, o.vocabPath, o.projectionPath
	}
	dir := o.modelDir
	if dir == "" {
		dir = filepath.Join("models", "all-MiniLM-L12-v2")
	}
	return filepath.Join(dir, "model.onnx"), filepath.Join(dir, "vocab.txt"), ""
}
