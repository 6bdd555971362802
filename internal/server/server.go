// Package server exposes the pipeline over HTTP.
//
// Routes:
//
//	POST   /ask                    one turn: {"query": "...", "session": "..."}
//	DELETE /sessions/:id           forget a conversation's context
//	GET    /sessions/:id/messages  transcript of a conversation (when a history source is set)
//	GET    /topics                 the active intent tree
//	GET    /healthz                liveness and active tree generation
//	GET    /metrics                Prometheus exposition
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hejijunhao/amber/internal/engine"
	"github.com/hejijunhao/amber/internal/model"
	"github.com/hejijunhao/amber/internal/output/sqlite"
	"github.com/hejijunhao/amber/internal/pipeline"
)

// Asker runs turns and resets sessions. *pipeline.Pipeline implements it.
type Asker interface {
	Ask(ctx context.Context, sessionID, query string) (pipeline.Answer, error)
	Reset(ctx context.Context, sessionID string) error
}

// TreeSource reports the active tree. *engine.Engine implements it.
type TreeSource interface {
	Tree() (*model.Tree, uint64)
}

// History returns a session's stored transcript. *sqlite.Output implements it.
type History interface {
	History(ctx context.Context, sessionID string, limit int) ([]sqlite.Message, error)
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer serves /metrics from g. Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithHistory enables GET /sessions/:id/messages.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is the HTTP transport.
type Server struct {
	asker    Asker
	tree     TreeSource
	history  History
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	router   *gin.Engine
}

// New builds the router.
func New(asker Asker, tree TreeSource, opts ...Option) *Server {
	s := &Server{
		asker:    asker,
		tree:     tree,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "server")

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())
	r.POST("/ask", s.handleAsk)
	r.DELETE("/sessions/:id", s.handleReset)
	if s.history != nil {
		r.GET("/sessions/:id/messages", s.handleMessages)
	}
	r.GET("/topics", s.handleTopics)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("ready", "transport", "http", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type askRequest struct {
	Query   *string `json:"query"`
	Session string  `json:"session"`
}

type askResponse struct {
	Session  string        `json:"session"`
	Turn     string        `json:"turn"`
	Response []string      `json:"response"`
	Replies  []model.Reply `json:"replies"`
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Query == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `invalid request: missing "query"`})
		return
	}

	ans, err := s.asker.Ask(c.Request.Context(), req.Session, *req.Query)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "session": ans.SessionID})
		return
	}
	c.JSON(http.StatusOK, askResponse{
		Session:  ans.SessionID,
		Turn:     ans.TurnID,
		Response: ans.Texts(),
		Replies:  ans.Replies,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

func (s *Server) handleReset(c *gin.Context) {
	if err := s.asker.Reset(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleMessages(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	msgs, err := s.history.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []sqlite.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"session": c.Param("id"), "messages": msgs})
}

type topicView struct {
	Topic    string      `json:"topic"`
	Label    string      `json:"label"`
	Examples int         `json:"examples"`
	Children []topicView `json:"children,omitempty"`
}

func viewOf(t *model.Tree, id model.NodeID) topicView {
	n := t.Node(id)
	v := topicView{Topic: n.Topic, Label: n.Label, Examples: len(n.Examples)}
	for _, c := range n.Children {
		v.Children = append(v.Children, viewOf(t, c))
	}
	return v
}

func (s *Server) handleTopics(c *gin.Context) {
	t, gen := s.tree.Tree()
	c.JSON(http.StatusOK, gin.H{"generation": gen, "root": viewOf(t, t.Root())})
}

func (s *Server) handleHealth(c *gin.Context) {
	t, gen := s.tree.Tree()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "generation": gen, "nodes": t.Len()})
}
