package core

import (
	"context"

	"github.com/markdave123-py/Coursewise/internal/core/llm"
)

// TextGenerator is the text-generation capability of the multi-provider client.
type TextGenerator interface {
	GenerateText(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResult, error)
}

// Embedder is the embedding capability of the multi-provider client.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) (*llm.EmbeddingResult, error)
}

// VisionExtractor is the vision capability of the multi-provider client.
type VisionExtractor interface {
	ExtractVisionText(ctx context.Context, req llm.VisionRequest) (*llm.VisionResult, error)
}
