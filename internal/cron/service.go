package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
)

// ServiceParams wire the scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// JobTimeout bounds a single job; zero means no bound.
	JobTimeout time.Duration
}

// Service runs every registered job once per interval under the lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	interval   time.Duration
	jobTimeout time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil {
		return nil, fmt.Errorf("job registry required")
	}
	if params.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	return &Service{
		logg:       params.Logger,
		registry:   params.Registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		interval:   params.Interval,
		jobTimeout: params.JobTimeout,
	}, nil
}

// Run fires a cycle immediately, then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.logg.Info(s.logg.WithField(ctx, "interval", s.interval.String()), "scheduler started")
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// RunOnce executes a single cycle. It reports whether the lock was won.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	won, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("cron lock: %w", err)
	}
	if !won {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return false, nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.execute(ctx, job)
	}
	return true, nil
}

func (s *Service) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "scheduler cycle failed", err)
	}
}

// execute never propagates a job error; one broken job must not starve the rest.
func (s *Service) execute(ctx context.Context, job Job) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	runCtx := jobCtx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	started := time.Now()
	err := s.safeRun(runCtx, job)
	elapsed := time.Since(started)
	s.metrics.ObserveDuration(job.Name(), elapsed)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.metrics.IncFailure(job.Name())
		s.logg.Error(jobCtx, "job failed", err)
		return
	}
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(jobCtx, "job finished")
}

func (s *Service) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
