// Package metrics provides Prometheus exporters for engagement metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the practice engagement engine.
var (
	// Counters.
	SessionsLoggedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "practice_sessions_logged_total",
			Help: "Total number of practice sessions logged",
		},
		[]string{"sentiment"},
	)

	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP awarded, by source",
		},
		[]string{"source"},
	)

	LevelUpsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "level_ups_total",
			Help: "Total number of level-ups",
		},
	)

	StreaksExtendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streaks_extended_total",
			Help: "Total number of streak extensions",
		},
	)

	StreaksBrokenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streaks_broken_total",
			Help: "Total number of streaks reset to zero",
		},
	)

	ShieldsConsumedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_shields_consumed_total",
			Help: "Total number of streak shields consumed absorbing a break",
		},
	)

	ShieldsPurchasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streak_shields_purchased_total",
			Help: "Total number of streak shields purchased with gems",
		},
	)

	BadgesAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badges_awarded_total",
			Help: "Total number of badges awarded",
		},
		[]string{"badge"},
	)

	GemsGrantedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gems_granted_total",
			Help: "Total gems moved through the ledger",
		},
		[]string{"type"},
	)

	NotificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "achievement_notification_failures_total",
			Help: "Total achievement webhook deliveries that failed",
		},
	)

	// Histograms.
	SessionDurationMinutes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "practice_session_duration_minutes",
			Help:    "Duration of logged practice sessions in minutes",
			Buckets: prometheus.LinearBuckets(5, 10, 12), // 5 to 115 minutes
		},
	)

	SchedulerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_job_duration_seconds",
			Help:    "Duration of scheduled maintenance jobs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"job"},
	)

	// Gauges.
	SchedulerLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scheduler_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last scheduler job run",
		},
		[]string{"job"},
	)

	SchedulerJobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_job_runs_total",
			Help: "Total scheduler job runs by result",
		},
		[]string{"job", "status"},
	)
)

// RecordSessionLogged records a logged session and its duration.
func RecordSessionLogged(sentiment string, durationMinutes int) {
	SessionsLoggedTotal.WithLabelValues(sentiment).Inc()
	SessionDurationMinutes.Observe(float64(durationMinutes))
}

// RecordXPAwarded records XP granted from a session or a badge reward.
func RecordXPAwarded(source string, amount int) {
	XPAwardedTotal.WithLabelValues(source).Add(float64(amount))
}

// RecordBadgeAwarded records a badge award.
func RecordBadgeAwarded(badgeKey string) {
	BadgesAwardedTotal.WithLabelValues(badgeKey).Inc()
}

// RecordGems records ledger movement.
func RecordGems(txType string, amount int) {
	GemsGrantedTotal.WithLabelValues(txType).Add(float64(amount))
}

// ObserveSchedulerJob records a finished scheduler job.
func ObserveSchedulerJob(job, status string, duration time.Duration) {
	SchedulerJobDuration.WithLabelValues(job).Observe(duration.Seconds())
	SchedulerJobRunsTotal.WithLabelValues(job, status).Inc()
	SchedulerLastRun.WithLabelValues(job).SetToCurrentTime()
}
