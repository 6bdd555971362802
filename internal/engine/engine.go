package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hejijunhao/amber/internal/engine/classifier"
	"github.com/hejijunhao/amber/internal/engine/embedder"
	"github.com/hejijunhao/amber/internal/engine/phrases"
	"github.com/hejijunhao/amber/internal/engine/render"
	"github.com/hejijunhao/amber/internal/engine/threshold"
	"github.com/hejijunhao/amber/internal/engine/traverse"
	"github.com/hejijunhao/amber/internal/engine/utterance"
	"github.com/hejijunhao/amber/internal/metrics"
	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/session"
)

// ErrEmptyQuery is returned for input that is blank after normalization.
var ErrEmptyQuery = errors.New("engine: empty query")

// DefaultBotName replaces second-person mentions in user input.
const DefaultBotName = "Amber AI"

const maxLoggedQuery = 120

// Engine resolves user turns against an intent tree. It holds no
// conversation state of its own: every turn reads and updates a
// session.State passed in by the caller. Safe for concurrent use.
type Engine struct {
	emb         embedder.Embedder
	policy      threshold.Policy
	norm        *utterance.Normalizer
	picker      *render.Picker
	turnTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics

	dim              int
	botName          string
	mentions         []string
	seed             uint64
	connectorPhrases []string
	clearPhrases     []string

	mu         sync.RWMutex
	tree       *model.Tree
	generation uint64
	connectors *phrases.Set
	clears     *phrases.Set
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the confidence threshold policy.
func WithPolicy(p threshold.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithBotName sets the name substituted for second-person mentions.
func WithBotName(name string) Option {
	return func(e *Engine) { e.botName = name }
}

// WithMentions replaces the list of second-person forms.
func WithMentions(m []string) Option {
	return func(e *Engine) { e.mentions = m }
}

// WithSeed makes response selection reproducible. 0 seeds from the clock.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithTurnTimeout bounds each turn, embedding calls included. 0 disables.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.turnTimeout = d }
}

// WithLogger sets the logger. Per-candidate traces are logged at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records turn metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConnectorPhrases replaces the connector phrase list.
func WithConnectorPhrases(p []string) Option {
	return func(e *Engine) { e.connectorPhrases = p }
}

// WithClearPhrases replaces the clear-context phrase list.
func WithClearPhrases(p []string) Option {
	return func(e *Engine) { e.clearPhrases = p }
}

// New creates an Engine over a tree whose embedding cache has been built.
// It embeds the connector and clear phrase sets up front.
func New(ctx context.Context, emb embedder.Embedder, tree *model.Tree, opts ...Option) (*Engine, error) {
	e := &Engine{
		emb:              emb,
		policy:           threshold.Default(),
		turnTimeout:      10 * time.Second,
		logger:           slog.Default(),
		botName:          DefaultBotName,
		connectorPhrases: phrases.DefaultConnectors,
		clearPhrases:     phrases.DefaultClears,
		tree:             tree,
		generation:       1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.norm = utterance.NewNormalizer(e.botName, e.mentions)
	e.picker = render.NewPicker(e.seed)

	var err error
	if e.connectors, err = phrases.Embed(ctx, emb, e.connectorPhrases); err != nil {
		return nil, fmt.Errorf("engine: connector phrases: %w", err)
	}
	if e.clears, err = phrases.Embed(ctx, emb, e.clearPhrases); err != nil {
		return nil, fmt.Errorf("engine: clear phrases: %w", err)
	}
	probe, err := emb.Embed(ctx, tree.Node(tree.Root()).Topic)
	if err != nil {
		return nil, fmt.Errorf("engine: probe embedder: %w", err)
	}
	e.dim = len(probe)
	if err := e.checkDim(tree); err != nil {
		return nil, err
	}
	e.metrics.TreeNodes(tree.Len())
	return e, nil
}

// checkDim rejects a tree cached by an embedder of another width, which
// would otherwise score every query 0.
func (e *Engine) checkDim(t *model.Tree) error {
	if d := t.VectorDim(); d != 0 && d != e.dim {
		return fmt.Errorf("engine: %w: tree vectors have %d dimensions, embedder produces %d",
			classifier.ErrDimension, d, e.dim)
	}
	return nil
}

// Tree returns the active tree and its generation. The tree must be
// treated as read-only.
func (e *Engine) Tree() (*model.Tree, uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree, e.generation
}

// Reload swaps in a new cached tree and returns its generation. Turns
// already running finish on the old tree; sessions built against the old
// tree lose their context on their next turn. A tree cached by an embedder
// of another width is rejected and the active tree stays.
func (e *Engine) Reload(t *model.Tree) (uint64, error) {
	if err := e.checkDim(t); err != nil {
		e.metrics.Reload(err, 0)
		return 0, err
	}
	e.mu.Lock()
	e.tree = t
	e.generation++
	gen := e.generation
	e.mu.Unlock()
	e.metrics.Reload(nil, t.Len())
	e.logger.Info("tree reloaded", "generation", gen, "nodes", t.Len())
	return gen, nil
}

// Turn answers one user utterance, returning one reply per sub-query in
// order. st is read for the conversation context and, only when the whole
// turn succeeds, replaced with the updated context. On error st is left
// untouched.
func (e *Engine) Turn(ctx context.Context, st *session.State, text string) ([]model.Reply, error) {
	start := time.Now()
	if e.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.turnTimeout)
		defer cancel()
	}

	e.mu.RLock()
	tree, gen := e.tree, e.generation
	e.mu.RUnlock()

	work := st.Clone()
	if work.Generation != gen || !validStack(tree, work.Stack) {
		work = session.State{Generation: gen}
	}

	replies, err := e.turn(ctx, tree, &work, text)
	if err != nil {
		e.metrics.Turn("error", time.Since(start))
		return nil, err
	}
	*st = work

	result := "ok"
	if len(replies) == 1 && replies[0].Kind == model.ReplyCleared {
		result = "cleared"
	}
	e.metrics.Turn(result, time.Since(start))
	for _, r := range replies {
		e.metrics.Reply(string(r.Kind), r.Confidence)
	}
	return replies, nil
}

func validStack(t *model.Tree, stack []model.NodeID) bool {
	for _, id := range stack {
		if !t.Valid(id) || id == t.Root() {
			return false
		}
	}
	return true
}

func (e *Engine) turn(ctx context.Context, tree *model.Tree, st *session.State, text string) ([]model.Reply, error) {
	query := e.norm.Normalize(text)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := e.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("engine: embed query: %w", err)
	}
	if e.clears.Match(vec) > e.policy.Threshold(query) {
		st.Stack = nil
		st.LastLabel = ""
		e.logger.Debug("context cleared", "query", render.Truncate(query, maxLoggedQuery))
		return []model.Reply{{Query: query, Text: render.Cleared, Kind: model.ReplyCleared}}, nil
	}

	subs := utterance.Split(query)
	replies := make([]model.Reply, 0, len(subs))
	for _, sub := range subs {
		r, err := e.resolve(ctx, tree, st, sub)
		if err != nil {
			return nil, err
		}
		replies = append(replies, r)
	}
	return replies, nil
}

// resolve answers one sub-query, updating st when it resolves to a node.
func (e *Engine) resolve(ctx context.Context, tree *model.Tree, st *session.State, sub string) (model.Reply, error) {
	thr := e.policy.Threshold(sub)
	q := sub
	vec, err := e.emb.Embed(ctx, sub)
	if err != nil {
		return model.Reply{}, fmt.Errorf("engine: embed sub-query: %w", err)
	}

	augmented := false
	if st.LastLabel != "" && e.connectors.Match(vec) > thr {
		q = sub + " " + st.LastLabel
		if vec, err = e.emb.Embed(ctx, q); err != nil {
			return model.Reply{}, fmt.Errorf("engine: embed augmented sub-query: %w", err)
		}
		augmented = true
	}

	// Root first, so it wins ties; then the context stack, most specific first.
	candidates := make([]traverse.Outcome, 0, 1+len(st.Stack))
	for _, startID := range append([]model.NodeID{tree.Root()}, st.Stack...) {
		out, err := traverse.Pass(tree, startID, vec, thr)
		if err != nil {
			return model.Reply{}, err
		}
		candidates = append(candidates, out)
	}
	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > chosen.Confidence {
			chosen = c
		}
	}
	e.logCandidates(tree, q, thr, candidates)

	reply := model.Reply{Query: q, Augmented: augmented}
	if chosen.Advanced {
		e.answer(tree, st, chosen, false, &reply)
		return reply, nil
	}
	for _, c := range candidates[1:] {
		if c.Advanced {
			e.answer(tree, st, c, true, &reply)
			return reply, nil
		}
	}
	reply.Kind = model.ReplyUnknown
	reply.Text = render.NotUnderstood(q)
	reply.Confidence = chosen.Confidence
	reply.Trace = chosen.Trace
	return reply, nil
}

// answer renders an advanced pass and moves the conversation context to it.
func (e *Engine) answer(tree *model.Tree, st *session.State, out traverse.Outcome, fromContext bool, r *model.Reply) {
	node := tree.Node(out.Resolved())
	text := e.picker.Pick(node.Response)
	switch {
	case out.Leaf && !fromContext:
		r.Kind = model.ReplyAnswer
	case out.Leaf:
		r.Kind = model.ReplyContext
	case !fromContext:
		r.Kind = model.ReplyClarify
	default:
		r.Kind = model.ReplyContext
		text = render.Clarify(node.Topic, text)
	}
	r.Text = text
	r.Label = node.Label
	r.Confidence = out.Confidence
	r.Trace = out.Trace

	st.Stack = tree.Ancestry(node.ID)
	st.LastLabel = node.Label
}

func (e *Engine) logCandidates(tree *model.Tree, q string, thr float64, candidates []traverse.Outcome) {
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	traces := make([]string, len(candidates))
	for i, c := range candidates {
		var b strings.Builder
		b.WriteString(tree.Node(c.Start).Label)
		for _, s := range c.Trace {
			fmt.Fprintf(&b, " > %s(%.3f)", s.Label, s.Score)
		}
		traces[i] = b.String()
	}
	e.logger.Debug("sub-query candidates", "query", render.Truncate(q, maxLoggedQuery), "threshold", thr, "candidates", traces)
}
