package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/internal/transactions"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/logger"
	"github.com/Nikhil2005menariya/MULTI-LAB-BACKEND/pkg/metrics"
)

const (
	AutoRejectJobName = "transaction_auto_reject"
	OverdueJobName    = "transaction_overdue"
)

type sweepFunc func(ctx context.Context, now time.Time) (transactions.SweepResult, error)

type sweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (transactions.SweepResult, error)
	MarkOverdue(ctx context.Context, now time.Time) (transactions.SweepResult, error)
}

// TransactionJobParams configure the transaction maintenance jobs.
type TransactionJobParams struct {
	Logger       *logger.Logger
	Transactions sweeper
	Metrics      *metrics.CronJobMetrics
}

// NewTransactionJobs returns the auto-reject sweeper followed by the overdue
// marker, in the order they should run.
func NewTransactionJobs(params TransactionJobParams) ([]Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Transactions == nil {
		return nil, fmt.Errorf("transactions service required")
	}
	mk := func(name string, fn sweepFunc) Job {
		return &sweepJob{name: name, sweep: fn, logg: params.Logger, metrics: params.Metrics, now: time.Now}
	}
	return []Job{
		mk(AutoRejectJobName, params.Transactions.ExpireStale),
		mk(OverdueJobName, params.Transactions.MarkOverdue),
	}, nil
}

type sweepJob struct {
	name    string
	sweep   sweepFunc
	logg    *logger.Logger
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *sweepJob) Name() string { return j.name }

// Run reports partial failures as an error after recording what succeeded.
func (j *sweepJob) Run(ctx context.Context) error {
	res, err := j.sweep(ctx, j.now())
	j.metrics.AddRecords(j.name, "processed", res.Processed)
	j.metrics.AddRecords(j.name, "failed", res.Failed)

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":   res.Scanned,
		"processed": res.Processed,
		"failed":    res.Failed,
	}), "sweep summary")
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	return nil
}
