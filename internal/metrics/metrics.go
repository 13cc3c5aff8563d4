// Package metrics holds the agent host's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Message directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Metrics holds all collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// WebSocket
	Clients  prometheus.Gauge
	Messages *prometheus.CounterVec

	// Agent and browser
	InterventionActions *prometheus.CounterVec
	Screenshots         *prometheus.CounterVec
	AgentRestarts       prometheus.Counter
	DocumentsIngested   prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		Clients: f.NewGauge(prometheus.GaugeOpts{
			Name: "agentd_ws_clients",
			Help: "Number of connected operator clients",
		}),
		Messages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_ws_messages_total",
				Help: "Total number of websocket messages",
			},
			[]string{"direction", "type"},
		),

		InterventionActions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_intervention_actions_total",
				Help: "Total number of intervention actions by action and status",
			},
			[]string{"action", "status"},
		),
		Screenshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentd_screenshots_total",
				Help: "Total number of captured screenshots by trigger",
			},
			[]string{"trigger"},
		),
		AgentRestarts: f.NewCounter(prometheus.CounterOpts{
			Name: "agentd_agent_restarts_total",
			Help: "Total number of agent process restarts",
		}),
		DocumentsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "agentd_documents_ingested_total",
			Help: "Total number of ingested documents",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and durations by route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordMessage counts one websocket message.
func (m *Metrics) RecordMessage(direction, msgType string) {
	m.Messages.WithLabelValues(direction, msgType).Inc()
}
