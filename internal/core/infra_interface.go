package core

import (
	"context"
	"time"

	"github.com/markdave123-py/Coursewise/internal/models"
)

// JobStore persists ingestion jobs. Every status change is a compare-and-swap on the
// previously observed status so that concurrent invocations cannot both win.
type JobStore interface {
	// ListClaimableJobs returns jobs for which IngestionJob.ClaimableAt(lockCutoff) holds,
	// oldest first.
	ListClaimableJobs(ctx context.Context, lockCutoff time.Time, limit int) ([]models.IngestionJob, error)
	// ClaimJob moves the job to processing, stamps locked_at with now and increments
	// attempts, only if its status still equals observed and its lock is absent or
	// older than lockCutoff. It reports whether the claim won.
	ClaimJob(ctx context.Context, id string, observed models.JobStatus, lockCutoff, now time.Time) (bool, error)
	// TransitionJob moves the job from -> to, clearing the lock and recording lastError.
	TransitionJob(ctx context.Context, id string, from, to models.JobStatus, lastError *string) (bool, error)
	SetJobStage(ctx context.Context, id string, stage models.IngestionStage) error
}

// StageFunc is told which stage a job has entered.
type StageFunc func(ctx context.Context, stage models.IngestionStage)

// MaterialStore persists uploaded materials.
type MaterialStore interface {
	CreateMaterialWithJob(ctx context.Context, material *models.Material, job *models.IngestionJob) error
	GetMaterial(ctx context.Context, id string) (*models.Material, error)
	UpdateMaterialStatus(ctx context.Context, id string, status models.MaterialStatus, meta models.MaterialMetadata) error
}

// ChunkStore persists embedded chunks and answers nearest-neighbour queries.
type ChunkStore interface {
	// ReplaceMaterialChunks deletes every chunk of the material and inserts chunks in one transaction.
	ReplaceMaterialChunks(ctx context.Context, materialID string, chunks []models.MaterialChunk) error
	// MatchChunks returns the class's chunks nearest to embedding, best first.
	MatchChunks(ctx context.Context, classID string, embedding []float32, limit int) ([]models.RetrievedChunk, error)
}

// DbClient is everything the Postgres/pgvector store provides.
type DbClient interface {
	JobStore
	MaterialStore
	ChunkStore
	Close() error
}

// ObjectClient defines interactions with S3 or any object storage.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
}
