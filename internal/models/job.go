package models

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an ingestion job.
//
//	pending|retry -> processing -> done|failed
//	processing    -> retry        (recoverable failure)
//	processing    -> processing   (stale lock reclaimed after a crash)
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobRetry      JobStatus = "retry"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:    {JobProcessing},
	JobRetry:      {JobProcessing},
	JobProcessing: {JobDone, JobFailed, JobRetry, JobProcessing},
}

// Claimable reports whether a worker may take ownership of a job in this state.
func (s JobStatus) Claimable() bool {
	return s == JobPending || s == JobRetry
}

// Terminal reports whether the state is final.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// CanTransitionTo reports whether next is an allowed successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing a forbidden transition.
func ValidateTransition(from, to JobStatus) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("invalid job transition %s -> %s", from, to)
	}
	return nil
}

// IngestionJob identifies one material to process.
type IngestionJob struct {
	ID         string     `db:"id" json:"id"`
	MaterialID string     `db:"material_id" json:"material_id"`
	ClassID    string     `db:"class_id" json:"class_id"`
	Status     JobStatus  `db:"status" json:"status"`
	Attempts   int        `db:"attempts" json:"attempts"`
	LockedAt   *time.Time `db:"locked_at" json:"locked_at,omitempty"`
	LastError  *string    `db:"last_error" json:"last_error,omitempty"`
	Stage      *string    `db:"stage" json:"stage,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ClaimableAt reports whether a worker may claim the job given the lock-expiry cutoff:
// a pending or retry job without a live lock, or a processing job whose lock went stale.
func (j IngestionJob) ClaimableAt(cutoff time.Time) bool {
	lockFree := j.LockedAt == nil || j.LockedAt.Before(cutoff)
	switch j.Status {
	case JobPending, JobRetry:
		return lockFree
	case JobProcessing:
		return j.LockedAt != nil && j.LockedAt.Before(cutoff)
	}
	return false
}

// IngestionStage labels the step a processing job is currently in.
type IngestionStage string

const (
	StageDownload IngestionStage = "download"
	StageExtract  IngestionStage = "extract"
	StageOCR      IngestionStage = "ocr"
	StageChunk    IngestionStage = "chunk"
	StageEmbed    IngestionStage = "embed"
	StageStore    IngestionStage = "store"
)
