package amber

import (
	"context"
	"fmt"

	"github.com/hejijunhao/amber/internal/engine"
	"github.com/hejijunhao/amber/internal/engine/embedder"
	"github.com/hejijunhao/amber/internal/engine/taxonomy"
	"github.com/hejijunhao/amber/internal/engine/threshold"
	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/pipeline"
	"github.com/hejijunhao/amber/internal/session"
)

// Bot answers user messages against an intent tree.
// Safe for concurrent use.
type Bot struct {
	engine   *engine.Engine
	embedder embedder.Embedder
	pipeline *pipeline.Pipeline
}

// New creates a Bot: it loads the embedder and the tree and embeds every
// example phrase up front. With the ONNX model this takes a moment, so
// create once and reuse.
func New(opts ...Option) (*Bot, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emb, err := openEmbedder(o)
	if err != nil {
		return nil, fmt.Errorf("amber: %w", err)
	}

	tree := taxonomy.Default()
	if o.treePath != "" {
		if tree, err = taxonomy.LoadFile(o.treePath); err != nil {
			emb.Close()
			return nil, fmt.Errorf("amber: %w", err)
		}
	}

	ctx := context.Background()
	if err := taxonomy.CacheEmbeddings(ctx, tree, emb); err != nil {
		emb.Close()
		return nil, fmt.Errorf("amber: %w", err)
	}

	engOpts := []engine.Option{
		engine.WithPolicy(threshold.Policy{Base: o.base, Decay: o.decay, Min: o.min}),
		engine.WithSeed(o.seed),
		engine.WithTurnTimeout(o.turnTimeout),
	}
	if o.botName != "" {
		engOpts = append(engOpts, engine.WithBotName(o.botName))
	}
	if o.connectors != nil {
		engOpts = append(engOpts, engine.WithConnectorPhrases(o.connectors))
	}
	if o.clears != nil {
		engOpts = append(engOpts, engine.WithClearPhrases(o.clears))
	}
	eng, err := engine.New(ctx, emb, tree, engOpts...)
	if err != nil {
		emb.Close()
		return nil, fmt.Errorf("amber: %w", err)
	}

	sessions := session.NewManager(session.NewMemoryStore(o.sessionTTL))
	return &Bot{
		engine:   eng,
		embedder: emb,
		pipeline: pipeline.New(eng, sessions, nil),
	}, nil
}

func openEmbedder(o options) (embedder.Embedder, error) {
	switch {
	case o.embedder != nil:
		return o.embedder, nil
	case o.lexical:
		return embedder.NewLexical(0), nil
	}
	modelPath, vocabPath, projPath := resolvePaths(o)
	return embedder.New(modelPath, vocabPath, projPath)
}

// Ask answers one user message within session sessionID, returning one
// reply per sentence. The session's context moves only when Ask succeeds.
func (b *Bot) Ask(ctx context.Context, sessionID, message string) ([]Reply, error) {
	ans, err := b.pipeline.Ask(ctx, sessionID, message)
	if err != nil {
		return nil, err
	}
	out := make([]Reply, len(ans.Replies))
	for i, r := range ans.Replies {
		out[i] = replyFromModel(r)
	}
	return out, nil
}

// Reset forgets the conversation context of sessionID.
func (b *Bot) Reset(ctx context.Context, sessionID string) error {
	return b.pipeline.Reset(ctx, sessionID)
}

// Reload swaps in a new tree from a JSON or YAML source. Sessions keep
// working; their context restarts on their next message.
func (b *Bot) Reload(ctx context.Context, path string) error {
	tree, err := taxonomy.LoadFile(path)
	if err != nil {
		return fmt.Errorf("amber: %w", err)
	}
	return b.reload(ctx, tree)
}

func (b *Bot) reload(ctx context.Context, tree *model.Tree) error {
	if err := taxonomy.CacheEmbeddings(ctx, tree, b.embedder); err != nil {
		return fmt.Errorf("amber: %w", err)
	}
	if _, err := b.engine.Reload(tree); err != nil {
		return fmt.Errorf("amber: %w", err)
	}
	return nil
}

// Close releases the embedder (ONNX runtime, memory) and session state.
func (b *Bot) Close() error {
	perr := b.pipeline.Close()
	if err := b.embedder.Close(); err != nil {
		return err
	}
	return perr
}
