package observability

import (
	"context"
	"net/http"

	"github.com/goflowspace/goflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of an editor process.
type Metrics struct {
	Commands     *prometheus.CounterVec
	Refusals     *prometheus.CounterVec
	HistoryDepth *prometheus.GaugeVec
	PortSyncs    prometheus.Counter
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goflow_commands_total",
			Help: "Commands executed, undone and redone",
		}, []string{"event"}),
		Refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goflow_history_refusals_total",
			Help: "Undo and redo attempts refused by a safety gate",
		}, []string{"action", "reason"}),
		HistoryDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goflow_history_depth",
			Help: "Entries on the undo and redo stacks after the last transition",
		}, []string{"stack"}),
		PortSyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goflow_port_syncs_total",
			Help: "Layer port lists recomputed",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goflow_http_requests_total",
			Help: "Total number of HTTP requests processed",
		}, []string{"method", "route", "status"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"method", "route"}),
	}
	if reg != nil {
		reg.MustRegister(m.Commands, m.Refusals, m.HistoryDepth, m.PortSyncs, m.Requests, m.Latency)
	}
	return m
}

// Hooks returns lifecycle hooks that record into m.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	command := func(_ context.Context, e *domain.CommandEvent) {
		m.Commands.WithLabelValues(string(e.Type)).Inc()
		m.HistoryDepth.WithLabelValues("undo").Set(float64(e.UndoDepth))
		m.HistoryDepth.WithLabelValues("redo").Set(float64(e.RedoDepth))
	}
	return domain.LifecycleHooks{
		OnCommandExecuted: command,
		OnCommandUndone:   command,
		OnCommandRedone:   command,
		OnCommandRefused: func(_ context.Context, e *domain.RefusalEvent) {
			m.Refusals.WithLabelValues(e.Action, string(e.Reason)).Inc()
		},
		OnPortsSynced: func(context.Context, *domain.PortsEvent) {
			m.PortSyncs.Inc()
		},
	}
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
