package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	uploadsTotal    prometheus.Counter
	uploadBytes     prometheus.Counter
	messagesTotal   prometheus.Counter
	searchesTotal   prometheus.Counter
	searchHits      prometheus.Histogram
}

// NewMetricsService registers the application's Prometheus collectors.
func NewMetricsService() *MetricsService {
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

	uploadsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_uploads_total",
		Help: "Total number of accepted file uploads",
	})

	uploadBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "file_upload_bytes_total",
		Help: "Total bytes accepted across file uploads",
	})

	messagesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messages_sent_total",
		Help: "Total number of messages sent",
	})

	searchesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "searches_total",
		Help: "Total number of search queries",
	})

	searchHits := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_result_count",
		Help:    "Distribution of result counts per search",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
	})

	registry.MustRegister(requestDuration, requestTotal, uploadsTotal, uploadBytes, messagesTotal, searchesTotal, searchHits)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		uploadsTotal:    uploadsTotal,
		uploadBytes:     uploadBytes,
		messagesTotal:   messagesTotal,
		searchesTotal:   searchesTotal,
		searchHits:      searchHits,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records per-request latency and volume.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": fmt.Sprintf("%d", status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveUpload records an accepted upload and its size.
func (s *MetricsService) ObserveUpload(sizeBytes int64) {
	s.uploadsTotal.Inc()
	if sizeBytes > 0 {
		s.uploadBytes.Add(float64(sizeBytes))
	}
}

// ObserveMessage records a sent message.
func (s *MetricsService) ObserveMessage() {
	s.messagesTotal.Inc()
}

// ObserveSearch records a query and the size of its result set.
func (s *MetricsService) ObserveSearch(resultCount int) {
	s.searchesTotal.Inc()
	s.searchHits.Observe(float64(resultCount))
}
