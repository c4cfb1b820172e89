package cron

import (
	"context"
	"fmt"

	"github.com/manafoundation/wishlist-backend/internal/orders"
	"github.com/manafoundation/wishlist-backend/pkg/logger"
	"github.com/manafoundation/wishlist-backend/pkg/metrics"
)

type orderSweeper interface {
	RunSweep(ctx context.Context) (*orders.SweepSummary, error)
}

type OrderSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper orderSweeper
	Metrics *metrics.CronJobMetrics
}

// NewOrderSweepJob schedules the order generation sweep. The sweep itself
// isolates per-item failures; the job only fails when the pending listing does.
func NewOrderSweepJob(params OrderSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &orderSweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
		metrics: params.Metrics,
	}, nil
}

type orderSweepJob struct {
	logg    *logger.Logger
	sweeper orderSweeper
	metrics *metrics.CronJobMetrics
}

func (j *orderSweepJob) Name() string { return "order-sweep" }

func (j *orderSweepJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.RunSweep(ctx)
	if err != nil {
		return fmt.Errorf("order sweep: %w", err)
	}
	j.metrics.AddRows(j.Name(), int64(summary.Processed))
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	})
	if summary.Errors > 0 {
		j.logg.Warn(logCtx, "order sweep finished with item errors")
		return nil
	}
	j.logg.Info(logCtx, "order sweep complete")
	return nil
}
