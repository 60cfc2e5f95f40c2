package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Controller metrics
var (
	// Turn counters by trigger (user_turn, silent_continue, fast_forward, retry) and status
	// (ok, failed, discarded)
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "turns_total",
			Help:      "Total turn service calls",
		},
		[]string{"trigger", "status"},
	)

	// Turn service round trip
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "persona",
			Name:      "turn_duration_seconds",
			Help:      "Turn service call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"trigger"},
	)

	// Image jobs by outcome (generated, fallback, rejected when the queue refuses a job)
	ImageJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "image_jobs_total",
			Help:      "Total image generation jobs",
		},
		[]string{"status"},
	)

	// Current engagement score
	Engagement = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "persona",
			Name:      "engagement",
			Help:      "Current engagement score (0-100)",
		},
	)

	// Conversation endings by reason
	ConversationsEndedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "conversations_ended_total",
			Help:      "Total conversations ended",
		},
		[]string{"reason"},
	)

	// End checks that fired, by check name
	EndChecksTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "persona",
			Name:      "end_checks_triggered_total",
			Help:      "Total end-of-conversation checks that fired",
		},
		[]string{"check"},
	)
)

// RecordTurn records one turn service call.
func RecordTurn(trigger, status string, d time.Duration) {
	TurnsTotal.WithLabelValues(trigger, status).Inc()
	TurnDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// RecordImageJob records the outcome of one image job.
func RecordImageJob(status string) {
	ImageJobsTotal.WithLabelValues(status).Inc()
}

// RecordEngagement publishes the current engagement score.
func RecordEngagement(score int) {
	Engagement.Set(float64(score))
}

// RecordEnded records a conversation end.
func RecordEnded(reason string) {
	ConversationsEndedTotal.WithLabelValues(reason).Inc()
}

// RecordEndCheck records one triggered end-of-conversation check.
func RecordEndCheck(name string) {
	EndChecksTriggeredTotal.WithLabelValues(name).Inc()
}
