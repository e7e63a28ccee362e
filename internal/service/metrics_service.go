package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the
// turn lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	turnTransitions *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	displayClients  prometheus.GaugeFunc
}

// NewMetricsService registers the core collectors. clientCount reports the
// number of currently connected displays.
func NewMetricsService(clientCount func() int) *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	turnTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "turn_transitions_total",
		Help: "Total turn lifecycle transitions by action and department",
	}, []string{"action", "department"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Active turns waiting per department, sampled on queue reads",
	}, []string{"department"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	displayClients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "display_clients",
		Help: "Connected public display clients",
	}, func() float64 {
		if clientCount == nil {
			return 0
		}
		return float64(clientCount())
	})

	registry.MustRegister(requestDuration, requestTotal, turnTransitions, queueDepth, goroutines, displayClients)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		turnTransitions: turnTransitions,
		queueDepth:      queueDepth,
		displayClients:  displayClients,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"method": method, "path": path, "status": strconv.Itoa(status)}
	m.requestDuration.With(labels).Observe(duration.Seconds())
	m.requestTotal.With(labels).Inc()
}

// ObserveTransition counts one lifecycle transition.
func (m *MetricsService) ObserveTransition(action, departmentID string) {
	if m == nil {
		return
	}
	m.turnTransitions.WithLabelValues(action, departmentID).Inc()
}

// SetQueueDepth records the last observed queue length for a department.
func (m *MetricsService) SetQueueDepth(departmentID string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(departmentID).Set(float64(depth))
}
