package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsFinishedTotal, jobSubmitRetriesTotal, queueDepth) }

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcription_jobs_finished_total",
		Help: "Jobs that reached a terminal state, labeled by provider and status.",
	},
	[]string{"provider", "status"}, // 'completed', 'failed', 'cancelled'
)

var jobSubmitRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "transcription_submit_retries_total",
		Help: "Submit attempts retried after a transient provider failure.",
	},
	[]string{"provider"},
)

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "transcription_queue_depth",
		Help: "Job records by non-terminal status.",
	},
	[]string{"status"}, // 'queued', 'processing'
)

func IncJobFinished(provider, status string) {
	jobsFinishedTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func IncSubmitRetry(provider string) {
	jobSubmitRetriesTotal.WithLabelValues(norm(provider)).Inc()
}

func SetQueueDepth(queued, processing int) {
	queueDepth.WithLabelValues("queued").Set(float64(queued))
	queueDepth.WithLabelValues("processing").Set(float64(processing))
}
