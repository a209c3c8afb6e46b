package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSessionLogged(t *testing.T) {
	// Reset the counter before test
	SessionsLoggedTotal.Reset()

	RecordSessionLogged("5", 30)
	RecordSessionLogged("5", 45)
	RecordSessionLogged("3", 10)

	count := testutil.ToFloat64(SessionsLoggedTotal.WithLabelValues("5"))
	if count != 2 {
		t.Errorf("Expected sentiment 5 count = 2, got %f", count)
	}

	count = testutil.ToFloat64(SessionsLoggedTotal.WithLabelValues("3"))
	if count != 1 {
		t.Errorf("Expected sentiment 3 count = 1, got %f", count)
	}
}

func TestRecordXPAwarded(t *testing.T) {
	// Reset the counter before test
	XPAwardedTotal.Reset()

	RecordXPAwarded("session", 33)
	RecordXPAwarded("session", 10)
	RecordXPAwarded("badge", 50)

	total := testutil.ToFloat64(XPAwardedTotal.WithLabelValues("session"))
	if total != 43 {
		t.Errorf("Expected session xp total = 43, got %f", total)
	}

	total = testutil.ToFloat64(XPAwardedTotal.WithLabelValues("badge"))
	if total != 50 {
		t.Errorf("Expected badge xp total = 50, got %f", total)
	}
}

func TestRecordBadgeAwarded(t *testing.T) {
	// Reset the counter before test
	BadgesAwardedTotal.Reset()

	RecordBadgeAwarded("first_steps")
	RecordBadgeAwarded("first_steps")
	RecordBadgeAwarded("week_streak")

	count := testutil.ToFloat64(BadgesAwardedTotal.WithLabelValues("first_steps"))
	if count != 2 {
		t.Errorf("Expected first_steps count = 2, got %f", count)
	}
}

func TestRecordGems(t *testing.T) {
	// Reset the counter before test
	GemsGrantedTotal.Reset()

	RecordGems("earned", 25)
	RecordGems("spent", 50)

	total := testutil.ToFloat64(GemsGrantedTotal.WithLabelValues("earned"))
	if total != 25 {
		t.Errorf("Expected earned total = 25, got %f", total)
	}

	total = testutil.ToFloat64(GemsGrantedTotal.WithLabelValues("spent"))
	if total != 50 {
		t.Errorf("Expected spent total = 50, got %f", total)
	}
}

func TestObserveSchedulerJob(t *testing.T) {
	// Reset the counter before test
	SchedulerJobRunsTotal.Reset()

	ObserveSchedulerJob("badge_sweep", "success", 2*time.Second)
	ObserveSchedulerJob("badge_sweep", "error", time.Second)

	count := testutil.ToFloat64(SchedulerJobRunsTotal.WithLabelValues("badge_sweep", "success"))
	if count != 1 {
		t.Errorf("Expected success count = 1, got %f", count)
	}
}

func TestMetricsRegistration(t *testing.T) {
	// Verify all metrics are registered
	metrics := []prometheus.Collector{
		SessionsLoggedTotal,
		XPAwardedTotal,
		LevelUpsTotal,
		StreaksExtendedTotal,
		StreaksBrokenTotal,
		ShieldsConsumedTotal,
		ShieldsPurchasedTotal,
		BadgesAwardedTotal,
		GemsGrantedTotal,
		NotificationFailuresTotal,
		SessionDurationMinutes,
		SchedulerJobDuration,
		SchedulerLastRun,
		SchedulerJobRunsTotal,
	}

	for i, metric := range metrics {
		if metric == nil {
			t.Errorf("Metric %d is nil", i)
		}
	}
}
