package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// Processor drives one material through download, extraction, OCR, chunking,
// embedding and storage.
//
// materials: material rows (status + metadata).
// chunks:    chunk replacement.
// obj:       object storage holding the uploaded bytes.
// extractor: native text extraction.
// ocr:       OCR / vision fallback for scans and images.
// embedder:  multi-provider embedding client.
type Processor struct {
	materials core.MaterialStore
	chunks    core.ChunkStore
	obj       core.ObjectClient
	extractor core.DocumentExtractor
	ocr       *OCRPipeline
	chunker   *Chunker
	embedder  core.Embedder
	cfg       IngestConfig
	logger    *slog.Logger
}

func NewProcessor(
	materials core.MaterialStore,
	chunks core.ChunkStore,
	obj core.ObjectClient,
	extractor core.DocumentExtractor,
	ocr *OCRPipeline,
	embedder core.Embedder,
	cfg IngestConfig,
	logger *slog.Logger,
) *Processor {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		materials: materials,
		chunks:    chunks,
		obj:       obj,
		extractor: extractor,
		ocr:       ocr,
		chunker:   NewChunker(cfg.ChunkTokens, cfg.ChunkOverlap),
		embedder:  embedder,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessJob processes the job's material. A returned error means the job failed;
// extraction problems that retries cannot fix are recorded on the material and
// return nil.
func (p *Processor) ProcessJob(ctx context.Context, job models.IngestionJob, onStage core.StageFunc) error {
	if onStage == nil {
		onStage = func(context.Context, models.IngestionStage) {}
	}
	log := p.logger.With("job_id", job.ID, "material_id", job.MaterialID)

	onStage(ctx, models.StageDownload)
	material, err := p.materials.GetMaterial(ctx, job.MaterialID)
	if err != nil {
		return fmt.Errorf("load material: %w", err)
	}
	if material == nil {
		return fmt.Errorf("material %s not found", job.MaterialID)
	}

	bucket, key := p.location(material.StoragePath)
	data, err := p.obj.GetFile(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("download material: %w", err)
	}

	onStage(ctx, models.StageExtract)
	res := p.extractor.Extract(ctx, data, material.Kind)
	log.Info("native extraction finished", "kind", material.Kind, "status", res.Status, "segments", len(res.Segments))

	if res.Status == models.MaterialFailed {
		if err := p.chunks.ReplaceMaterialChunks(ctx, material.ID, nil); err != nil {
			return fmt.Errorf("clear chunks: %w", err)
		}
		meta := material.Metadata
		meta.AddWarnings(res.Warnings...)
		meta.Extraction = &res.Stats
		return p.materials.UpdateMaterialStatus(ctx, material.ID, models.MaterialFailed, meta)
	}

	if res.Status == models.MaterialNeedsVision && p.ocr != nil {
		onStage(ctx, models.StageOCR)
		res = p.ocr.Run(ctx, data, material.Kind, res)
		log.Info("ocr finished", "segments", len(res.Segments),
			"ocr_pages", res.Stats.OCRPages, "vision_pages", res.Stats.VisionPages)
	}

	if len(res.Segments) == 0 {
		return p.markUnusable(ctx, material, res, "No usable text was found; the material needs vision processing.")
	}

	onStage(ctx, models.StageChunk)
	chunks := p.chunker.Chunk(res.Segments)
	if len(chunks) == 0 {
		return p.markUnusable(ctx, material, res, "Extraction produced no chunks; the material needs vision processing.")
	}

	onStage(ctx, models.StageEmbed)
	if err := p.embed(ctx, material, chunks); err != nil {
		return err
	}

	onStage(ctx, models.StageStore)
	if err := p.chunks.ReplaceMaterialChunks(ctx, material.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}

	stats := res.Stats
	stats.Chunks = len(chunks)
	meta := freshMetadata(material.Metadata, res.Warnings, stats)
	if err := p.materials.UpdateMaterialStatus(ctx, material.ID, models.MaterialReady, meta); err != nil {
		return fmt.Errorf("update material: %w", err)
	}
	log.Info("material ready", "chunks", len(chunks))
	return nil
}

// embed fills chunk ids, owners and embeddings, EmbedBatchSize chunks per call.
func (p *Processor) embed(ctx context.Context, material *models.Material, chunks []models.MaterialChunk) error {
	for start := 0; start < len(chunks); start += p.cfg.EmbedBatchSize {
		end := min(start+p.cfg.EmbedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		res, err := p.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		if len(res.Vectors) != len(texts) {
			return fmt.Errorf("embed chunks: got %d vectors for %d texts", len(res.Vectors), len(texts))
		}

		for i, vec := range res.Vectors {
			if p.cfg.EmbeddingDim > 0 && len(vec) != p.cfg.EmbeddingDim {
				return &DimensionMismatchError{Got: len(vec), Want: p.cfg.EmbeddingDim}
			}
			c := &chunks[start+i]
			c.ID = uuid.NewString()
			c.MaterialID = material.ID
			c.ClassID = material.ClassID
			c.Embedding = vec
			c.EmbeddingProvider = string(res.Provider)
			c.EmbeddingModel = res.Model
		}
	}
	return nil
}

// markUnusable clears old chunks and flags the material for vision processing.
// The job itself succeeded.
func (p *Processor) markUnusable(ctx context.Context, material *models.Material, res core.ExtractionResult, warning string) error {
	if err := p.chunks.ReplaceMaterialChunks(ctx, material.ID, nil); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	meta := freshMetadata(material.Metadata, append(res.Warnings, warning), res.Stats)
	return p.materials.UpdateMaterialStatus(ctx, material.ID, models.MaterialNeedsVision, meta)
}

// location resolves the storage path to bucket and key. Paths stored as full S3
// URLs carry their own bucket.
func (p *Processor) location(storagePath string) (bucket, key string) {
	if strings.HasPrefix(storagePath, "https://") || strings.HasPrefix(storagePath, "s3://") {
		return parseS3URL(storagePath)
	}
	return p.cfg.Bucket, strings.TrimPrefix(storagePath, "/")
}

// freshMetadata keeps upload facts and replaces warnings and stats with this run's.
func freshMetadata(prev models.MaterialMetadata, warnings []string, stats models.ExtractionStats) models.MaterialMetadata {
	return models.MaterialMetadata{
		FileName:   prev.FileName,
		SizeBytes:  prev.SizeBytes,
		Warnings:   models.DedupeWarnings(warnings),
		Extraction: &stats,
	}
}

// parseS3URL extracts the bucket and key from a virtual-hosted–style S3 URL or an s3:// URI.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	if rest, ok := strings.CutPrefix(u, "s3://"); ok {
		bucket, key, _ = strings.Cut(rest, "/")
		return bucket, key
	}
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}

