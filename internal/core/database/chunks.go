package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/Coursewise/internal/models"
)

const chunkColumns = 14

// Postgres caps a statement at 65535 bind parameters.
const chunkInsertBatch = 1000

// ReplaceMaterialChunks deletes the material's chunks and inserts the new generation
// in the same transaction, so readers never observe two generations mixed.
func (c *DatabaseClient) ReplaceMaterialChunks(ctx context.Context, materialID string, chunks []models.MaterialChunk) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM material_chunks WHERE material_id = $1`, materialID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += chunkInsertBatch {
		end := min(start+chunkInsertBatch, len(chunks))
		q, args := chunkInsert(chunks[start:end])
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert chunks: %w", err)
		}
	}
	return tx.Commit()
}

func chunkInsert(chunks []models.MaterialChunk) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO material_chunks
		(id, material_id, class_id, source_type, source_index, section_title, text, token_count,
		 embedding, embedding_provider, embedding_model, extraction_method, quality_score, created_at)
		VALUES `)

	args := make([]any, 0, len(chunks)*chunkColumns)
	now := time.Now().UTC()
	for i := range chunks {
		ch := &chunks[i]
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for col := 0; col < chunkColumns; col++ {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*chunkColumns+col+1)
		}
		b.WriteByte(')')

		created := ch.CreatedAt
		if created.IsZero() {
			created = now
		}
		args = append(args,
			ch.ID, ch.MaterialID, ch.ClassID, string(ch.SourceType), ch.SourceIndex, ch.SectionTitle,
			ch.Text, ch.TokenCount, pgvector.NewVector(ch.Embedding), ch.EmbeddingProvider,
			ch.EmbeddingModel, string(ch.ExtractionMethod), ch.QualityScore, created,
		)
	}
	return b.String(), args
}

// MatchChunks ranks the class's chunks by cosine similarity to embedding.
func (c *DatabaseClient) MatchChunks(ctx context.Context, classID string, embedding []float32, limit int) ([]models.RetrievedChunk, error) {
	const q = `
		SELECT
			mc.id,
			mc.material_id,
			m.title AS material_title,
			mc.source_type,
			mc.source_index,
			mc.section_title,
			mc.text,
			mc.token_count,
			mc.extraction_method,
			1 - (mc.embedding <=> $2) AS similarity
		FROM material_chunks mc
		INNER JOIN materials m ON m.id = mc.material_id
		WHERE mc.class_id = $1
		  AND m.status <> 'failed'
		ORDER BY mc.embedding <=> $2
		LIMIT $3
	`
	var out []models.RetrievedChunk
	if err := c.db.SelectContext(ctx, &out, q, classID, pgvector.NewVector(embedding), limit); err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}
	return out, nil
}
