package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce      sync.Once
	requestsTotal     *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	requestErrors     *prometheus.CounterVec
	pollRoundsTotal   prometheus.Counter
	pollFetchErrors   prometheus.Counter
	pollSessionsTotal *prometheus.CounterVec
	uploadFilesTotal  *prometheus.CounterVec
	uploadLatencySecs prometheus.Histogram
	batchesCompleted  prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeflow_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gradeflow_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeflow_request_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		pollRoundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_poll_rounds_total",
			Help: "Number of polling rounds executed.",
		})

		pollFetchErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_poll_fetch_errors_total",
			Help: "Number of status fetches that failed during polling rounds.",
		})

		pollSessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeflow_poll_sessions_total",
			Help: "Number of finished polling sessions, by outcome.",
		}, []string{"outcome"})

		uploadFilesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradeflow_upload_files_total",
			Help: "Number of batch upload files processed, by final status.",
		}, []string{"status"})

		uploadLatencySecs = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gradeflow_upload_file_latency_seconds",
			Help:    "Latency distribution for individual file uploads.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		})

		batchesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gradeflow_batches_completed_total",
			Help: "Number of upload batches that reached a terminal state.",
		})

		prometheus.MustRegister(
			requestsTotal, requestLatency, requestErrors,
			pollRoundsTotal, pollFetchErrors, pollSessionsTotal,
			uploadFilesTotal, uploadLatencySecs, batchesCompleted,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatency
}

// RequestErrors exposes the counter for API error responses.
func RequestErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return requestErrors
}

// PollRounds exposes the counter for executed polling rounds.
func PollRounds() prometheus.Counter {
	RegisterMetrics()
	return pollRoundsTotal
}

// PollFetchErrors exposes the counter for failed status fetches.
func PollFetchErrors() prometheus.Counter {
	RegisterMetrics()
	return pollFetchErrors
}

// PollSessions exposes the counter for finished polling sessions.
func PollSessions() *prometheus.CounterVec {
	RegisterMetrics()
	return pollSessionsTotal
}

// UploadFiles exposes the counter for processed upload files.
func UploadFiles() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadFilesTotal
}

// UploadLatency exposes the histogram for individual file upload latency.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySecs
}

// BatchesCompleted exposes the counter for terminal upload batches.
func BatchesCompleted() prometheus.Counter {
	RegisterMetrics()
	return batchesCompleted
}
