package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments exposed at /metrics.
type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobledger_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobledger_transitions_total",
			Help: "Proposed transitions by command and outcome.",
		}, []string{"command", "outcome"}),
	}
	reg.MustRegister(m.requests, m.transitions)
	return m
}

func (m *Metrics) observeCommand(command string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	m.transitions.WithLabelValues(command, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (m *Metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, req)
		m.requests.WithLabelValues(req.Method, strconv.Itoa(rec.status)).Inc()
	})
}

func registerMetrics(r chi.Router, m *Metrics) {
	r.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
