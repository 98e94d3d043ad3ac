package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// fallbackFloor is the engine's published confidence floor: results at or
// below it carry a substituted fallback record.
const fallbackFloor = 0.3

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractionConfidence *prometheus.HistogramVec
	fallbackTotal        *prometheus.CounterVec
	interactionsStored   *prometheus.CounterVec
	dealsExtracted       *prometheus.CounterVec
	agentRunsTotal       *prometheus.CounterVec
	agentIterations      *prometheus.HistogramVec
	agentToolCallsTotal  *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmparse",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crmparse",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	extractionConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmparse",
			Subsystem: "pipeline",
			Name:      "extraction_confidence",
			Help:      "Distribution of extraction confidence scores.",
			Buckets:   []float64{0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95},
		},
		[]string{"service", "channel"},
	)
	fallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "pipeline",
			Name:      "fallback_total",
			Help:      "Total extractions that degraded to the deterministic fallback record.",
		},
		[]string{"service", "channel"},
	)
	interactionsStored := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "pipeline",
			Name:      "interactions_stored_total",
			Help:      "Total interaction rows written by the pipeline.",
		},
		[]string{"service", "channel"},
	)
	dealsExtracted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "pipeline",
			Name:      "deals_extracted_total",
			Help:      "Total extractions carrying a positive deal value.",
		},
		[]string{"service"},
	)
	agentRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total completed agent runs by status.",
		},
		[]string{"service", "status"},
	)
	agentIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmparse",
			Subsystem: "agent",
			Name:      "iterations",
			Help:      "Distribution of agent loop iterations per run.",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
		[]string{"service"},
	)
	agentToolCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Total tool calls performed by the agent.",
		},
		[]string{"service", "tool", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		extractionConfidence,
		fallbackTotal,
		interactionsStored,
		dealsExtracted,
		agentRunsTotal,
		agentIterations,
		agentToolCallsTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		extractionConfidence: extractionConfidence,
		fallbackTotal:        fallbackTotal,
		interactionsStored:   interactionsStored,
		dealsExtracted:       dealsExtracted,
		agentRunsTotal:       agentRunsTotal,
		agentIterations:      agentIterations,
		agentToolCallsTotal:  agentToolCallsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/interactions/"):
		return "/v1/interactions/{interaction_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordExtraction(service, channel string, confidence float64) {
	if channel == "" {
		channel = "unknown"
	}
	m.extractionConfidence.WithLabelValues(service, channel).Observe(confidence)
	if confidence <= fallbackFloor {
		m.fallbackTotal.WithLabelValues(service, channel).Inc()
	}
}

func (m *HTTPServerMetrics) RecordInteractionStored(service, channel string) {
	if channel == "" {
		channel = "unknown"
	}
	m.interactionsStored.WithLabelValues(service, channel).Inc()
}

func (m *HTTPServerMetrics) RecordDealExtracted(service string) {
	m.dealsExtracted.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordAgentRun(service, status string, iterations int) {
	if status == "" {
		status = "unknown"
	}
	m.agentRunsTotal.WithLabelValues(service, status).Inc()
	if iterations > 0 {
		m.agentIterations.WithLabelValues(service).Observe(float64(iterations))
	}
}

func (m *HTTPServerMetrics) RecordAgentToolCall(service, tool, status string) {
	if tool == "" {
		tool = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.agentToolCallsTotal.WithLabelValues(service, tool, status).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
