// ABOUTME: Prometheus recorder for tool calls, session lifecycle and denials
// ABOUTME: Owns a private registry served over HTTP by the gateway

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "books_mcp"

// Recorder records books-mcp metrics.
type Recorder struct {
	registry *prometheus.Registry

	toolCalls       *prometheus.CounterVec
	toolDuration    *prometheus.HistogramVec
	sessionsCreated prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	denials         *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool calls by tool and outcome (ok, denied, failed, error)",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool call latency",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"tool"}),
		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created by authenticate",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended by reason (logout, expired, released, swept)",
		}, []string{"reason"}),
		denials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_denials_total",
			Help:      "Authorization denials by kind",
		}, []string{"kind"}),
	}

	r.registry.MustRegister(
		r.toolCalls,
		r.toolDuration,
		r.sessionsCreated,
		r.sessionsEnded,
		r.denials,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// TrackConnections exports the number of connections holding an active
// session, sampled from fn at scrape time. Call it at most once.
func (r *Recorder) TrackConnections(fn func() int) {
	r.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_connections",
		Help:      "Connections with an active session pointer",
	}, func() float64 { return float64(fn()) }))
}

// ToolCall implements packs.Recorder.
func (r *Recorder) ToolCall(tool, outcome string, elapsed time.Duration) {
	r.toolCalls.WithLabelValues(tool, outcome).Inc()
	r.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// SessionCreated implements auth.Observer.
func (r *Recorder) SessionCreated() {
	r.sessionsCreated.Inc()
}

// SessionEnded implements auth.Observer.
func (r *Recorder) SessionEnded(reason string) {
	r.sessionsEnded.WithLabelValues(reason).Inc()
}

// Denied implements auth.Observer.
func (r *Recorder) Denied(kind string) {
	r.denials.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
