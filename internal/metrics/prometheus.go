// Package metrics exposes Prometheus instrumentation for the bot and its
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects bot and HTTP metrics on its own registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	signalsGenerated *prometheus.CounterVec
	tradesExecuted   *prometheus.CounterVec
	operations       *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	botActive        prometheus.Gauge
	riskLevel        prometheus.Gauge
	eventsPublished  *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a Recorder backed by a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		signalsGenerated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_signals_generated_total",
				Help: "Total number of trade signals generated",
			},
			[]string{"action"},
		),
		tradesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_trades_executed_total",
				Help: "Total number of trades executed",
			},
			[]string{"action"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_operations_total",
				Help: "Total number of bot operations by outcome",
			},
			[]string{"operation", "result"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_operation_duration_seconds",
				Help:    "Duration of bot operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		botActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_bot_active",
			Help: "1 when the bot is allowed to execute trades",
		}),
		riskLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "signalbot_risk_level",
			Help: "Configured risk level",
		}),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_events_published_total",
				Help: "Total number of bot events handed to notification channels",
			},
			[]string{"type", "result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method", "class"},
		),
	}
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// RecordSignal counts a generated signal. Pairs are caller supplied and
// stay out of the labels.
func (r *Recorder) RecordSignal(action string) {
	if r == nil {
		return
	}
	r.signalsGenerated.WithLabelValues(action).Inc()
}

// RecordTrade counts an executed trade.
func (r *Recorder) RecordTrade(action string) {
	if r == nil {
		return
	}
	r.tradesExecuted.WithLabelValues(action).Inc()
}

// RecordOperation records the outcome and latency of a bot operation.
func (r *Recorder) RecordOperation(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.operations.WithLabelValues(op, result).Inc()
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// SetBotState mirrors the bot's activity flag and risk level.
func (r *Recorder) SetBotState(active bool, risk float64) {
	if r == nil {
		return
	}
	if active {
		r.botActive.Set(1)
	} else {
		r.botActive.Set(0)
	}
	r.riskLevel.Set(risk)
}

// RecordEvent counts a published notification event.
func (r *Recorder) RecordEvent(eventType string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.eventsPublished.WithLabelValues(eventType, result).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (r *Recorder) RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method, statusClass(status)).Observe(duration.Seconds())
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
