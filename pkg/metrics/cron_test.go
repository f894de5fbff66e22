package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", 250*time.Millisecond, nil)
	m.ObserveRun("outbox-retention", 100*time.Millisecond, errors.New("db down"))
	m.AddAffected("outbox-retention", 7)
	m.AddAffected("outbox-retention", 0)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", "success"); err != nil || got != 1 {
		t.Fatalf("expected one success, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "result", "failure"); err != nil || got != 1 {
		t.Fatalf("expected one failure, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cron_job_affected_rows_total", "job", "outbox-retention"); err != nil || got != 7 {
		t.Fatalf("expected 7 affected rows, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "outbox-retention"); err != nil || got < 0.35 {
		t.Fatalf("expected duration sum of both runs, got %f (%v)", got, err)
	}
	last := findMetricFamily(mfs, "cron_job_last_success_timestamp_seconds")
	if last == nil || last.GetMetric()[0].GetGauge().GetValue() <= 0 {
		t.Fatal("expected last success timestamp")
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("job", time.Second, nil)
	m.AddAffected("job", 3)
	NewCronJobMetrics(nil).ObserveRun("", time.Second, errors.New("x"))
}
