package perf

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/ledgerlane/invoicer/internal/jobs"
	"github.com/ledgerlane/invoicer/jobs"
)

func TestJobMetricsRecordOutcomesAndDurations(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)

	for i := 0; i < 20; i++ {
		tracker := metrics.Track(jobs.TaskIncomeWarmup)
		time.Sleep(2 * time.Millisecond)
		if err := tracker.End(nil); err != nil {
			t.Fatalf("unexpected error ending warmup tracker: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		tracker := metrics.Track(jobs.TaskIncomeWarmup)
		if err := tracker.End(errors.New("redis timeout")); err == nil {
			t.Fatal("expected error to propagate")
		}
	}
	metrics.AddItems(jobs.TaskDueReminder, 7)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "invoicer_jobs_total", map[string]string{"job": jobs.TaskIncomeWarmup, "status": "success"})
	failure := metricValue(t, families, "invoicer_jobs_total", map[string]string{"job": jobs.TaskIncomeWarmup, "status": "failure"})
	if success != 20 || failure != 2 {
		t.Fatalf("unexpected outcome counts: success=%v failure=%v", success, failure)
	}
	if items := metricValue(t, families, "invoicer_job_items_total", map[string]string{"job": jobs.TaskDueReminder}); items != 7 {
		t.Fatalf("unexpected item count %v", items)
	}

	mean := histogramMean(t, families, "invoicer_job_duration_seconds", map[string]string{"job": jobs.TaskIncomeWarmup})
	if mean <= 0 || mean > 1 {
		t.Fatalf("warmup mean duration out of range: %f", mean)
	}
}

func BenchmarkTracker(b *testing.B) {
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = metrics.Track(jobs.TaskSendEmail).End(nil)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
