package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"Encyclopedia/internal/ports"
)

// BatchJob is a recurring generation batch.
type BatchJob struct {
	Name    string
	Spec    string
	Request BatchRequest
}

// Scheduler wires the cron driver with the generation orchestrator.
type Scheduler struct {
	driver       ports.Scheduler
	orchestrator *Orchestrator
	jobs         []BatchJob
	logger       *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring batches.
func NewScheduler(driver ports.Scheduler, orchestrator *Orchestrator, jobs []BatchJob, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = (Deps{}).withDefaults().Logger
	}
	return &Scheduler{driver: driver, orchestrator: orchestrator, jobs: jobs, logger: logger}
}

// Start registers every job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.orchestrator == nil || len(s.jobs) == 0 {
		return nil
	}

	for _, job := range s.jobs {
		run := func() {
			result, err := s.orchestrator.GenerateBatch(ctx, job.Request)
			if err != nil {
				s.logger.Error("scheduled batch failed", "job", job.Name, "error", err)
				return
			}
			s.logger.Info("scheduled batch done", "job", job.Name, "outcome", result.Outcome, "summary", result.Summary())
		}
		if err := s.driver.Add(job.Spec, run); err != nil {
			return fmt.Errorf("schedule job %s: %w", job.Name, err)
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
