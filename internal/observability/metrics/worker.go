package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	eventAge        *prometheus.HistogramVec
	deadLetterTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "worker",
			Name:      "event_process_total",
			Help:      "Total processed interaction events by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmparse",
			Subsystem: "worker",
			Name:      "event_process_duration_seconds",
			Help:      "Event processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "crmparse",
			Subsystem: "worker",
			Name:      "event_process_in_flight",
			Help:      "Number of in-flight event processing tasks.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	eventAge := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "crmparse",
			Subsystem: "worker",
			Name:      "event_age_seconds",
			Help:      "Age of the event, from occurrence to processing start.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 3600, 14400, 86400},
		},
		[]string{"service"},
	)
	deadLetterTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "crmparse",
			Subsystem: "worker",
			Name:      "dead_letter_total",
			Help:      "Total events published to the dead letter subject.",
		},
		[]string{"service"},
	)

	registry.MustRegister(processTotal, processDuration, processInFlight, eventAge, deadLetterTotal)

	return &WorkerMetrics{
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		eventAge:        eventAge,
		deadLetterTotal: deadLetterTotal,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEvent() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishEvent(service string, duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.processTotal.WithLabelValues(service, status).Inc()
	m.processDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveEventAge(service string, age time.Duration) {
	if age < 0 {
		return
	}
	m.eventAge.WithLabelValues(service).Observe(age.Seconds())
}

func (m *WorkerMetrics) RecordDeadLetter(service string) {
	m.deadLetterTotal.WithLabelValues(service).Inc()
}
