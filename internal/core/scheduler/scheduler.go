// Package scheduler claims pending ingestion jobs and drives them to completion.
// It is invoked from outside (HTTP trigger or CLI) and never schedules itself.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// JobProcessor runs the ingestion pipeline for one claimed job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job models.IngestionJob, onStage core.StageFunc) error
}

// Config bounds one invocation.
type Config struct {
	BatchSize   int
	LockTimeout time.Duration
	MaxAttempts int
}

// Summary is what one invocation did. Failures are operational telemetry.
type Summary struct {
	Processed int      `json:"processed"`
	Failures  []string `json:"failures"`
}

type Scheduler struct {
	jobs      core.JobStore
	materials core.MaterialStore
	processor JobProcessor
	cfg       Config
	now       func() time.Time
	logger    *slog.Logger
}

func New(jobs core.JobStore, materials core.MaterialStore, processor JobProcessor, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 15 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		jobs:      jobs,
		materials: materials,
		processor: processor,
		cfg:       cfg,
		now:       time.Now,
		logger:    logger,
	}
}

// RunOnce claims up to BatchSize eligible jobs, oldest first, and processes them one
// at a time. Jobs another invocation claimed first are skipped. Only listing errors
// abort the run; per-job problems end up in Summary.Failures.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	summary := Summary{Failures: []string{}}
	cutoff := s.now().Add(-s.cfg.LockTimeout)

	jobs, err := s.jobs.ListClaimableJobs(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return summary, fmt.Errorf("list claimable jobs: %w", err)
	}
	s.logger.Info("ingestion run started", "eligible", len(jobs))

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		claimed, err := s.jobs.ClaimJob(ctx, job.ID, job.Status, cutoff, s.now())
		if err != nil {
			summary.Failures = append(summary.Failures, fmt.Sprintf("job %s: claim: %v", job.ID, err))
			continue
		}
		if !claimed {
			s.logger.Debug("job claimed elsewhere", "job_id", job.ID)
			continue
		}
		job.Status = models.JobProcessing
		job.Attempts++

		if err := s.process(ctx, job); err != nil {
			summary.Failures = append(summary.Failures, fmt.Sprintf("job %s: %v", job.ID, err))
			continue
		}
		summary.Processed++
	}

	s.logger.Info("ingestion run finished", "processed", summary.Processed, "failures", len(summary.Failures))
	return summary, nil
}

func (s *Scheduler) process(ctx context.Context, job models.IngestionJob) error {
	log := s.logger.With("job_id", job.ID, "material_id", job.MaterialID, "attempt", job.Attempts)

	onStage := func(ctx context.Context, stage models.IngestionStage) {
		if err := s.jobs.SetJobStage(ctx, job.ID, stage); err != nil {
			log.Warn("record stage failed", "stage", stage, "error", err)
		}
	}

	procErr := s.processor.ProcessJob(ctx, job, onStage)

	// The outcome is recorded even when the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	if procErr == nil {
		if _, err := s.transition(ctx, job.ID, models.JobDone, nil); err != nil {
			return err
		}
		log.Info("job done")
		return nil
	}

	msg := procErr.Error()
	if !shouldFail(job.Attempts, s.cfg.MaxAttempts, procErr) {
		log.Warn("job will be retried", "error", procErr)
		if _, err := s.transition(ctx, job.ID, models.JobRetry, &msg); err != nil {
			return fmt.Errorf("%s (and %v)", msg, err)
		}
		return procErr
	}

	log.Error("job failed", "error", procErr, "terminal", core.IsTerminal(procErr))
	if _, err := s.transition(ctx, job.ID, models.JobFailed, &msg); err != nil {
		return fmt.Errorf("%s (and %v)", msg, err)
	}
	if err := s.failMaterial(ctx, job.MaterialID, msg); err != nil {
		log.Warn("mark material failed", "error", err)
	}
	return procErr
}

// shouldFail reports whether a failed attempt is final. Terminal errors always are.
// Otherwise attempts, which already counts the current claim, must exceed the cap:
// a job that had reached maxAttempts before this claim is given up on.
func shouldFail(attempts, maxAttempts int, err error) bool {
	return core.IsTerminal(err) || attempts-1 >= maxAttempts
}

func (s *Scheduler) transition(ctx context.Context, id string, to models.JobStatus, lastError *string) (bool, error) {
	if err := models.ValidateTransition(models.JobProcessing, to); err != nil {
		return false, err
	}
	ok, err := s.jobs.TransitionJob(ctx, id, models.JobProcessing, to, lastError)
	if err != nil {
		return false, fmt.Errorf("mark job %s: %w", to, err)
	}
	if !ok {
		s.logger.Warn("job lost its lock before finishing", "job_id", id, "to", to)
	}
	return ok, nil
}

func (s *Scheduler) failMaterial(ctx context.Context, materialID, msg string) error {
	m, err := s.materials.GetMaterial(ctx, materialID)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("material %s not found", materialID)
	}
	meta := m.Metadata
	meta.AddWarnings(fmt.Sprintf("Ingestion failed: %s", msg))
	return s.materials.UpdateMaterialStatus(ctx, materialID, models.MaterialFailed, meta)
}
