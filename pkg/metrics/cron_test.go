package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsExportsRunsRecordsAndDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "transaction_auto_reject"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncSuccess(job)
	m.IncFailure(job)
	m.AddRecords(job, "processed", 3)
	m.AddRecords(job, "failed", 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "multilab_cron_job_runs_total", map[string]string{"job": job, "result": "success"})
	require.NoError(t, err)
	require.Equal(t, 2.0, got)

	got, err = counterValue(mfs, "multilab_cron_job_runs_total", map[string]string{"job": job, "result": "failure"})
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	got, err = counterValue(mfs, "multilab_cron_records_total", map[string]string{"job": job, "outcome": "processed"})
	require.NoError(t, err)
	require.Equal(t, 3.0, got)

	_, err = counterValue(mfs, "multilab_cron_records_total", map[string]string{"job": job, "outcome": "failed"})
	require.Error(t, err, "zero adds must not create a series")

	mf := findMetricFamily(mfs, "multilab_cron_job_duration_seconds")
	require.NotNil(t, mf)
	require.InDelta(t, 0.25, mf.GetMetric()[0].GetHistogram().GetSampleSum(), 0.0001)
}

func TestNilRecorderIsNoop(t *testing.T) {
	var m *CronJobMetrics
	require.NotPanics(t, func() {
		m.IncSuccess("x")
		m.AddRecords("x", "processed", 1)
		NewCronJobMetrics(nil).ObserveDuration("x", time.Second)
	})
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q has no series %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
