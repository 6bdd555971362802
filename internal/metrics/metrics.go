// Package metrics exposes Prometheus collectors for turns, replies, tree
// reloads and embedding calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns        *prometheus.CounterVec
	replies      *prometheus.CounterVec
	turnDuration prometheus.Histogram
	confidence   prometheus.Histogram
	reloads      *prometheus.CounterVec
	treeNodes    prometheus.Gauge
	sessions     prometheus.Gauge
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		turns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amber_turns_total",
			Help: "Turns processed by result (ok, cleared, error).",
		}, []string{"result"}),
		replies: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amber_replies_total",
			Help: "Sub-query replies by kind.",
		}, []string{"kind"}),
		turnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "amber_turn_duration_seconds",
			Help:    "Wall time of one turn including embedding calls.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		confidence: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "amber_reply_confidence",
			Help:    "Confidence of the chosen pass per sub-query.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "amber_tree_reloads_total",
			Help: "Tree reload attempts by result.",
		}, []string{"result"}),
		treeNodes: f.NewGauge(prometheus.GaugeOpts{
			Name: "amber_tree_nodes",
			Help: "Nodes in the active intent tree, root included.",
		}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "amber_sessions",
			Help: "Sessions held by the in-memory store.",
		}),
	}
}

// Turn records one finished turn.
func (m *Metrics) Turn(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(result).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// Reply records one sub-query reply.
func (m *Metrics) Reply(kind string, confidence float64) {
	if m == nil {
		return
	}
	m.replies.WithLabelValues(kind).Inc()
	m.confidence.Observe(confidence)
}

// Reload records a tree reload attempt and, on success, the new tree size.
func (m *Metrics) Reload(err error, nodes int) {
	if m == nil {
		return
	}
	if err != nil {
		m.reloads.WithLabelValues("error").Inc()
		return
	}
	m.reloads.WithLabelValues("ok").Inc()
	m.treeNodes.Set(float64(nodes))
}

// TreeNodes sets the active tree size.
func (m *Metrics) TreeNodes(n int) {
	if m == nil {
		return
	}
	m.treeNodes.Set(float64(n))
}

// Sessions sets the number of live sessions.
func (m *Metrics) Sessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}
