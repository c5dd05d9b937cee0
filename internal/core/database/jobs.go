package db

import (
	"context"
	"fmt"
	"time"

	"github.com/markdave123-py/Coursewise/internal/models"
)

func (c *DatabaseClient) ListClaimableJobs(ctx context.Context, lockCutoff time.Time, limit int) ([]models.IngestionJob, error) {
	const q = `
		SELECT id, material_id, class_id, status, attempts, locked_at, last_error, stage, created_at, updated_at
		FROM ingestion_jobs
		WHERE (status IN ('pending', 'retry') AND (locked_at IS NULL OR locked_at < $1))
		   OR (status = 'processing' AND locked_at < $1)
		ORDER BY created_at ASC
		LIMIT $2
	`
	var jobs []models.IngestionJob
	if err := c.db.SelectContext(ctx, &jobs, q, lockCutoff, limit); err != nil {
		return nil, fmt.Errorf("list claimable jobs: %w", err)
	}
	return jobs, nil
}

// ClaimJob is a compare-and-swap on the observed status and lock age.
func (c *DatabaseClient) ClaimJob(ctx context.Context, id string, observed models.JobStatus, lockCutoff, now time.Time) (bool, error) {
	if err := models.ValidateTransition(observed, models.JobProcessing); err != nil {
		return false, err
	}
	const q = `
		UPDATE ingestion_jobs
		SET status = 'processing', locked_at = $4, attempts = attempts + 1, updated_at = $4
		WHERE id = $1
		  AND status = $2
		  AND (locked_at IS NULL OR locked_at < $3)
	`
	res, err := c.db.ExecContext(ctx, q, id, string(observed), lockCutoff, now)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *DatabaseClient) TransitionJob(ctx context.Context, id string, from, to models.JobStatus, lastError *string) (bool, error) {
	if err := models.ValidateTransition(from, to); err != nil {
		return false, err
	}
	const q = `
		UPDATE ingestion_jobs
		SET status = $3, locked_at = NULL, last_error = $4, updated_at = now()
		WHERE id = $1 AND status = $2
	`
	res, err := c.db.ExecContext(ctx, q, id, string(from), string(to), lastError)
	if err != nil {
		return false, fmt.Errorf("transition job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *DatabaseClient) SetJobStage(ctx context.Context, id string, stage models.IngestionStage) error {
	const q = `UPDATE ingestion_jobs SET stage = $2, updated_at = now() WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id, string(stage))
	return err
}
