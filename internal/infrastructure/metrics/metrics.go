// Package metrics exposes Prometheus counters for the emulator.
package metrics

import (
	"domoticz-hue-emulator/internal/domain/model"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	backendCalls   *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
	commands       *prometheus.CounterVec
	ssdpMessages   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_emulator_http_requests_total",
			Help: "Hue API requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		backendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_emulator_backend_calls_total",
			Help: "Domoticz API calls by param and result.",
		}, []string{"param", "result"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hue_emulator_backend_call_duration_seconds",
			Help:    "Domoticz API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"param"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_emulator_light_commands_total",
			Help: "Light commands by kind and result.",
		}, []string{"command", "result"}),
		ssdpMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hue_emulator_ssdp_messages_total",
			Help: "SSDP messages sent, by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.backendCalls, m.backendLatency, m.commands, m.ssdpMessages,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by chi route pattern, so light ids do not
// explode the label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
	})
}

func (m *Metrics) ObserveBackendCall(param string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(param, Result(err)).Inc()
	m.backendLatency.WithLabelValues(param).Observe(d.Seconds())
}

func (m *Metrics) ObserveCommand(cmd model.Command, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(commandName(cmd), Result(err)).Inc()
}

// SSDPMessage counts one sent discovery message; kind is "response" or "notify".
func (m *Metrics) SSDPMessage(kind string) {
	if m == nil {
		return
	}
	m.ssdpMessages.WithLabelValues(kind).Inc()
}

// Result is the label value for an outcome.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrBackendAuth):
		return "auth"
	case errors.Is(err, model.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, model.ErrBackendRejected):
		return "rejected"
	case errors.Is(err, model.ErrInvalidValue):
		return "invalid"
	default:
		return "error"
	}
}

func commandName(cmd model.Command) string {
	switch cmd.(type) {
	case model.SwitchCommand:
		return "switch"
	case model.LevelCommand:
		return "level"
	case model.ColorCommand:
		return "color"
	case model.SceneCommand:
		return "scene"
	default:
		return "unknown"
	}
}
