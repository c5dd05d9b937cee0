package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

//go:embed scripts/initdb.sql
var bootstrapFS embed.FS

const schemaVersion = 1

// EnsureBootstrapped creates the schema on first start and checks that the stored
// embedding dimension matches embeddingDim afterwards.
func EnsureBootstrapped(ctx context.Context, db *sqlx.DB, embeddingDim int, logger *slog.Logger) error {
	ctxBoot, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	var exists bool
	err := db.GetContext(ctxBoot, &exists, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_name = 'coursewise_meta'
		)`)
	if err != nil {
		return fmt.Errorf("meta table check failed: %w", err)
	}

	if exists {
		var hasVersion bool
		if err := db.GetContext(ctxBoot, &hasVersion,
			`SELECT EXISTS (SELECT 1 FROM coursewise_meta WHERE version = $1)`, schemaVersion); err != nil {
			return fmt.Errorf("meta version check failed: %w", err)
		}
		exists = hasVersion
	}

	if !exists {
		logger.Info("bootstrapping database schema", "embedding_dim", embeddingDim)
		if err := runBootstrap(ctxBoot, db, embeddingDim); err != nil {
			return err
		}
	}

	var stored int
	if err := db.GetContext(ctxBoot, &stored,
		`SELECT embedding_dim FROM coursewise_meta WHERE version = $1`, schemaVersion); err != nil {
		return fmt.Errorf("read embedding dimension: %w", err)
	}
	if stored != embeddingDim {
		return fmt.Errorf("schema embedding dimension is %d but EMBEDDING_DIM is %d", stored, embeddingDim)
	}
	return nil
}

func bootstrapSQL(embeddingDim int) (string, error) {
	sqlBytes, err := bootstrapFS.ReadFile("scripts/initdb.sql")
	if err != nil {
		return "", fmt.Errorf("read initdb.sql: %w", err)
	}
	return strings.ReplaceAll(string(sqlBytes), "{{EMBEDDING_DIM}}", strconv.Itoa(embeddingDim)), nil
}

func runBootstrap(ctx context.Context, db *sqlx.DB, embeddingDim int) error {
	if embeddingDim <= 0 {
		return fmt.Errorf("invalid embedding dimension %d", embeddingDim)
	}
	script, err := bootstrapSQL(embeddingDim)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, script); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec bootstrap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bootstrap: %w", err)
	}
	return nil
}
