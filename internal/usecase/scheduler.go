package usecase

import (
	"context"
	"log/slog"
	"time"

	"recordwatch/internal/ports"
)

// PipelineBuilder constructs a fresh pipeline for one batch, snapshotting
// whatever per-batch state (targets, policy) it needs.
type PipelineBuilder func(ctx context.Context) (*Pipeline, error)

// Scheduler runs the ingestion pipeline on the cron driver's cadence. Each
// trigger gets a freshly built pipeline so no batch sees mid-run config drift.
type Scheduler struct {
	driver ports.Scheduler
	build  PipelineBuilder
	logger *slog.Logger
}

// NewScheduler wires the cron driver with the pipeline builder.
func NewScheduler(driver ports.Scheduler, build PipelineBuilder, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, build: build, logger: logger}
}

// Start registers the batch job with the driver.
func (s *Scheduler) Start(ctx context.Context) error {
	job := func(trigger time.Time) {
		pipeline, err := s.build(ctx)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("batch setup failed", "error", err)
			}
			return
		}
		pipeline.Run(ctx, trigger)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.driver.Stop(ctx)
}
