package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type countingJob struct {
	name  string
	err   error
	panic bool
	runs  int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	if c.panic {
		panic("boom")
	}
	return c.err
}

func newTestService(t *testing.T, lock Lock, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:     logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(reg),
		Interval:   time.Hour,
		JobTimeout: time.Minute,
	})
	require.NoError(t, err)
	return svc, reg
}

func TestRunOnceRunsEveryJobDespiteFailures(t *testing.T) {
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "failing", err: errors.New("db down")}
	panicking := &countingJob{name: "panicking", panic: true}
	lock := &fakeLock{}
	svc, reg := newTestService(t, lock, failing, panicking, ok)

	won, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, won)
	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, failing.runs)
	require.Equal(t, 1, panicking.runs)
	require.Equal(t, 1, lock.released)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var failures, successes float64
	for _, mf := range mfs {
		if mf.GetName() != "multilab_cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == "failure" {
					failures += m.GetCounter().GetValue()
				}
				if l.GetName() == "result" && l.GetValue() == "success" {
					successes += m.GetCounter().GetValue()
				}
			}
		}
	}
	require.Equal(t, 2.0, failures)
	require.Equal(t, 1.0, successes)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "job"}
	lock := &fakeLock{held: true}
	svc, _ := newTestService(t, lock, job)

	won, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.False(t, won)
	require.Zero(t, job.runs)
	require.Zero(t, lock.released)
}

type signalJob struct{ ran chan struct{} }

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	s.ran <- struct{}{}
	return nil
}

func TestRunFiresImmediatelyAndStopsOnCancel(t *testing.T) {
	job := &signalJob{ran: make(chan struct{}, 1)}
	svc, _ := newTestService(t, &fakeLock{}, job)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-job.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewServiceValidates(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)
	logg := logger.New(logger.Options{Output: io.Discard})

	_, err = NewService(ServiceParams{Registry: registry, Lock: &fakeLock{}, Interval: time.Hour})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg, Registry: registry, Interval: time.Hour})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Logger: logg, Registry: registry, Lock: &fakeLock{}})
	require.Error(t, err)
}
