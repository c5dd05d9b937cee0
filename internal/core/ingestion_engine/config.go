package ingestion_engine

// IngestConfig tunes the extraction, chunking and embedding pipeline.
//
// ChunkTokens:    max estimated tokens per chunk (e.g., 500).
// ChunkOverlap:   words carried back from the end of one chunk into the next (e.g., 50).
// EmbedBatchSize: chunks embedded per provider call.
// EmbeddingDim:   expected vector length; every vector must match it.
// MaxOCRPages:    PDF pages OCR'd per material; later pages are skipped with a warning.
// OCRConcurrency: pages OCR'd / sent to vision at once.
type IngestConfig struct {
	ChunkTokens    int
	ChunkOverlap   int
	EmbedBatchSize int
	EmbeddingDim   int
	MaxOCRPages    int
	OCRConcurrency int
	OCRLanguage    string
	RenderDPI      int
	Bucket         string
}

// DefaultIngestConfig mirrors the environment defaults.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkTokens:    500,
		ChunkOverlap:   50,
		EmbedBatchSize: 16,
		EmbeddingDim:   1536,
		MaxOCRPages:    30,
		OCRConcurrency: 3,
		OCRLanguage:    "eng",
		RenderDPI:      200,
	}
}

func (c IngestConfig) withDefaults() IngestConfig {
	d := DefaultIngestConfig()
	if c.ChunkTokens <= 0 {
		c.ChunkTokens = d.ChunkTokens
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 0
	}
	if c.EmbedBatchSize <= 0 {
		c.EmbedBatchSize = d.EmbedBatchSize
	}
	if c.MaxOCRPages <= 0 {
		c.MaxOCRPages = d.MaxOCRPages
	}
	if c.OCRConcurrency <= 0 {
		c.OCRConcurrency = d.OCRConcurrency
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = d.OCRLanguage
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = d.RenderDPI
	}
	return c
}
