package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/markdave123-py/Coursewise/internal/config"
	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// DatabaseClient is the Postgres/pgvector implementation of core.DbClient.
type DatabaseClient struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ core.DbClient = (*DatabaseClient)(nil)

func NewDatabaseClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dsn, err := buildDSN(cfg.DatabaseURL, cfg.SslCertPath)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db, cfg.EmbeddingDim, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("connected to postgres")
	return &DatabaseClient{db: db, logger: logger}, nil
}

// buildDSN applies verify-ca TLS settings when a root certificate is configured.
func buildDSN(databaseURL, certPath string) (string, error) {
	if databaseURL == "" {
		return "", fmt.Errorf("DATABASE_URL is empty")
	}
	if certPath == "" {
		return databaseURL, nil
	}
	if _, err := os.Stat(certPath); err != nil {
		return "", fmt.Errorf("ssl cert not accessible at %q: %w", certPath, err)
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	q := u.Query()
	q.Set("sslmode", "verify-ca")
	q.Set("sslrootcert", certPath)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Materials

const insertMaterial = `
	INSERT INTO materials
		(id, class_id, title, storage_path, mime_type, kind, status, metadata, created_at, updated_at)
	VALUES
		(:id, :class_id, :title, :storage_path, :mime_type, :kind, :status, :metadata, :created_at, :updated_at)
`

const insertJob = `
	INSERT INTO ingestion_jobs
		(id, material_id, class_id, status, attempts, created_at, updated_at)
	VALUES
		(:id, :material_id, :class_id, :status, :attempts, :created_at, :updated_at)
`

// CreateMaterialWithJob inserts the material and its first ingestion job in one transaction.
func (c *DatabaseClient) CreateMaterialWithJob(ctx context.Context, material *models.Material, job *models.IngestionJob) error {
	if material == nil || job == nil {
		return errors.New("nil material or job")
	}
	now := time.Now().UTC()
	if material.CreatedAt.IsZero() {
		material.CreatedAt = now
	}
	material.UpdatedAt = material.CreatedAt
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = job.CreatedAt

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertMaterial, materialRow(material)); err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, insertJob, jobRow(job)); err != nil {
		return fmt.Errorf("insert ingestion job: %w", err)
	}
	return tx.Commit()
}

// GetMaterial returns nil, nil when the material does not exist.
func (c *DatabaseClient) GetMaterial(ctx context.Context, id string) (*models.Material, error) {
	const q = `
		SELECT id, class_id, title, storage_path, mime_type, kind, status, metadata, created_at, updated_at
		FROM materials
		WHERE id = $1
	`
	var m models.Material
	err := c.db.GetContext(ctx, &m, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *DatabaseClient) UpdateMaterialStatus(ctx context.Context, id string, status models.MaterialStatus, meta models.MaterialMetadata) error {
	const q = `
		UPDATE materials
		SET status = $2, metadata = $3, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, string(status), meta)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("material not found: %s", id)
	}
	return nil
}

// materialRow flattens enum fields so the driver sees plain strings.
func materialRow(m *models.Material) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"class_id":     m.ClassID,
		"title":        m.Title,
		"storage_path": m.StoragePath,
		"mime_type":    m.MimeType,
		"kind":         string(m.Kind),
		"status":       string(m.Status),
		"metadata":     m.Metadata,
		"created_at":   m.CreatedAt,
		"updated_at":   m.UpdatedAt,
	}
}

func jobRow(j *models.IngestionJob) map[string]any {
	return map[string]any{
		"id":          j.ID,
		"material_id": j.MaterialID,
		"class_id":    j.ClassID,
		"status":      string(j.Status),
		"attempts":    j.Attempts,
		"created_at":  j.CreatedAt,
		"updated_at":  j.UpdatedAt,
	}
}
