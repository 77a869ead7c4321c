package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FileBackendOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_file_backend_operations_total",
			Help: "File storage backend operations by backend, operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	FileUploadsByLocation = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_file_uploads_total",
			Help: "Completed uploads by resulting storage location",
		},
		[]string{"location"},
	)

	FileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_file_cache_lookups_total",
			Help: "File record cache lookups by result",
		},
		[]string{"result"},
	)

	NotificationDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_notification_dispatch_total",
			Help: "Notification delivery attempts by event, channel and result",
		},
		[]string{"event", "channel", "result"},
	)

	DeletionRequestTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_deletion_request_transitions_total",
			Help: "Deletion request state changes by resulting status",
		},
		[]string{"status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Result maps an error to the "success"/"failure" label value.
func Result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
