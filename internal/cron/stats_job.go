package cron

import (
	"context"
	"fmt"

	"github.com/zipdrop/zipdrop-backend/pkg/logger"
)

type statsRoller interface {
	Rollup(ctx context.Context) error
}

// NewStatsRollupJob builds the cron job that rebuilds the daily stats buckets.
func NewStatsRollupJob(logg *logger.Logger, stats statsRoller) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if stats == nil {
		return nil, fmt.Errorf("stats service required")
	}
	return &statsRollupJob{logg: logg, stats: stats}, nil
}

type statsRollupJob struct {
	logg  *logger.Logger
	stats statsRoller
}

func (j *statsRollupJob) Name() string { return "stats-rollup" }

func (j *statsRollupJob) Run(ctx context.Context) error {
	if err := j.stats.Rollup(ctx); err != nil {
		return fmt.Errorf("stats rollup: %w", err)
	}
	return nil
}
