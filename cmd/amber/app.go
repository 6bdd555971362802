package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/hejijunhao/amber/internal/config"
	"github.com/hejijunhao/amber/internal/engine"
	"github.com/hejijunhao/amber/internal/engine/embedder"
	"github.com/hejijunhao/amber/internal/engine/taxonomy"
	"github.com/hejijunhao/amber/internal/engine/threshold"
	"github.com/hejijunhao/amber/internal/metrics"
	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output"
	"github.com/hejijunhao/amber/internal/output/async"
	"github.com/hejijunhao/amber/internal/output/file"
	"github.com/hejijunhao/amber/internal/output/multi"
	"github.com/hejijunhao/amber/internal/output/sqlite"
	"github.com/hejijunhao/amber/internal/output/stdout"
	"github.com/hejijunhao/amber/internal/output/webhook"
	"github.com/hejijunhao/amber/internal/pipeline"
	"github.com/hejijunhao/amber/internal/session"
	"github.com/hejijunhao/amber/internal/store/badger"
)

// app is the wired runtime shared by every command.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	embedder embedder.Embedder
	cacheDB  *badgerdb.DB
	engine   *engine.Engine
	memory   *session.MemoryStore // nil with a redis store
	history  *sqlite.Output       // nil without a sqlite sink
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	// transcriptOut receives the stdout sink. The stdio transport points it
	// at stderr so stdout carries only protocol lines.
	transcriptOut io.Writer
	metrics       *metrics.Metrics
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.embedder, a.cacheDB, err = openEmbedder(cfg.Embedder, logger); err != nil {
		return nil, err
	}

	tree, err := loadTree(ctx, cfg.Tree, cacheNamespace(cfg.Embedder), a.embedder, logger)
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{
		engine.WithPolicy(threshold.Policy{
			Base:  cfg.Engine.ThresholdBase,
			Decay: cfg.Engine.ThresholdDecay,
			Min:   cfg.Engine.ThresholdMin,
		}),
		engine.WithBotName(cfg.Engine.BotName),
		engine.WithSeed(cfg.Engine.Seed),
		engine.WithTurnTimeout(cfg.Engine.TurnTimeout),
		engine.WithLogger(logger),
	}
	if opts.metrics != nil {
		engOpts = append(engOpts, engine.WithMetrics(opts.metrics))
	}
	if a.engine, err = engine.New(ctx, a.embedder, tree, engOpts...); err != nil {
		return nil, err
	}

	store, err := openSessionStore(ctx, cfg.Session)
	if err != nil {
		return nil, err
	}
	a.memory, _ = store.(*session.MemoryStore)

	out, history, err := openTranscript(cfg.Transcript, opts.transcriptOut, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	a.history = history

	a.pipeline = pipeline.New(a.engine, session.NewManager(store), out, pipeline.WithLogger(logger))
	return a, nil
}

// openEmbedder opens the configured provider, wrapped in the persistent
// vector cache when a cache directory is set and in the per-call timeout.
func openEmbedder(cfg config.EmbedderConfig, logger *slog.Logger) (embedder.Embedder, *badgerdb.DB, error) {
	emb, err := embedder.Open(cfg.Provider, embedder.Options{
		ModelPath:      cfg.ModelPath,
		VocabPath:      cfg.VocabPath,
		ProjectionPath: cfg.ProjectionPath,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		APIKey:         cfg.APIKey,
	})
	if err != nil {
		return nil, nil, err
	}

	var db *badgerdb.DB
	if cfg.CacheDir != "" {
		if db, err = badger.OpenPath(cfg.CacheDir, logger.With("component", "badger")); err != nil {
			emb.Close()
			return nil, nil, err
		}
		emb = embedder.NewCached(emb, db, cacheNamespace(cfg))
	}
	if cfg.Timeout > 0 {
		emb = embedder.NewBounded(emb, cfg.Timeout)
	}
	return emb, db, nil
}

// cacheNamespace keys cached vectors by the model that produced them.
func cacheNamespace(cfg config.EmbedderConfig) string {
	switch cfg.Provider {
	case "onnx":
		return "onnx:" + cfg.ModelPath + ":" + cfg.ProjectionPath
	case "openai", "tei":
		return cfg.Provider + ":" + cfg.BaseURL + ":" + cfg.Model
	}
	return cfg.Provider
}

// loadTree returns a cached tree: the snapshot if one is configured, else the
// tree source, else the built-in tree. A snapshot cached by another embedder
// than embedderID keeps its structure but is re-embedded.
func loadTree(ctx context.Context, cfg config.TreeConfig, embedderID string, emb embedder.Embedder, logger *slog.Logger) (*model.Tree, error) {
	if cfg.Snapshot != "" {
		tree, info, err := taxonomy.LoadSnapshot(cfg.Snapshot)
		switch {
		case err == nil && tree.Cached() && info.Embedder == embedderID:
			logger.Info("tree loaded from snapshot", "path", cfg.Snapshot, "nodes", tree.Len())
			return tree, nil
		case err == nil:
			if tree.Cached() {
				logger.Warn("snapshot built by another embedder, re-embedding",
					"path", cfg.Snapshot, "snapshot_embedder", info.Embedder, "embedder", embedderID)
			}
			if err := taxonomy.CacheEmbeddings(ctx, tree, emb); err != nil {
				return nil, err
			}
			return tree, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
		logger.Warn("snapshot missing, building tree from source", "path", cfg.Snapshot)
	}
	return buildTree(ctx, cfg.Path, emb)
}

// buildTree parses path (or the built-in tree when empty) and caches its
// embeddings.
func buildTree(ctx context.Context, path string, emb embedder.Embedder) (*model.Tree, error) {
	tree := taxonomy.Default()
	if path != "" {
		var err error
		if tree, err = taxonomy.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := taxonomy.CacheEmbeddings(ctx, tree, emb); err != nil {
		return nil, err
	}
	return tree, nil
}

func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, error) {
	if cfg.Store == "redis" {
		return session.NewRedisStore(ctx, cfg.RedisAddr, cfg.TTL)
	}
	return session.NewMemoryStore(cfg.TTL), nil
}

// openTranscript builds the transcript fan-out. Each sink runs behind its
// own async buffer so a slow sink never delays a reply. The sqlite sink is
// also returned for history queries.
func openTranscript(cfg config.TranscriptConfig, stdoutW io.Writer, logger *slog.Logger) (output.Output, *sqlite.Output, error) {
	if len(cfg.Sinks) == 0 {
		return nil, nil, nil
	}
	verbosity, err := output.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, nil, err
	}
	if stdoutW == nil {
		stdoutW = os.Stdout
	}
	onError := func(sink string) func(error) {
		return func(err error) {
			logger.Warn("transcript sink failed", "sink", sink, "error", err)
		}
	}

	var (
		sinks   []output.Output
		history *sqlite.Output
	)
	closeAll := func() {
		for _, s := range sinks {
			s.Close()
		}
	}
	for _, name := range cfg.Sinks {
		var sink output.Output
		switch name {
		case "stdout":
			sink = stdout.NewWriter(stdoutW, verbosity, cfg.Pretty)
		case "file":
			f, err := file.New(cfg.File, verbosity)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			sink = f
		case "sqlite":
			db, err := sqlite.New(cfg.DB)
			if err != nil {
				closeAll()
				return nil, nil, err
			}
			history, sink = db, db
		case "webhook":
			sink = webhook.New(cfg.Webhook, webhook.WithVerbosity(verbosity), webhook.WithOnError(onError(name)))
		default:
			closeAll()
			return nil, nil, fmt.Errorf("unknown transcript sink %q", name)
		}
		sinks = append(sinks, async.New(sink, async.WithOnError(onError(name))))
	}
	return multi.New(sinks...), history, nil
}

// reload rebuilds the tree from path and swaps it into the engine. On
// failure the active tree stays.
func (a *app) reload(ctx context.Context, path string, m *metrics.Metrics) error {
	tree, err := buildTree(ctx, path, a.embedder)
	if err != nil {
		m.Reload(err, 0)
		return err
	}
	if _, err := a.engine.Reload(tree); err != nil {
		return err
	}
	return nil
}

// Close releases everything newApp opened.
func (a *app) Close() error {
	var errs []error
	if a.pipeline != nil {
		errs = append(errs, a.pipeline.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.cacheDB != nil {
		errs = append(errs, a.cacheDB.Close())
	}
	return errors.Join(errs...)
}
