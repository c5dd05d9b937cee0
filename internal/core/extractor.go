package core

import (
	"context"

	"github.com/markdave123-py/Coursewise/internal/models"
)

// ExtractionResult is the outcome of turning raw bytes into text segments.
// Status is ready, needs_vision or failed; failures are reported here, never as errors.
type ExtractionResult struct {
	Segments []models.MaterialSegment
	Warnings []string
	Status   models.MaterialStatus
	Stats    models.ExtractionStats
}

// DocumentExtractor defines the interface for extracting text from the supported material kinds.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, kind models.MaterialKind) ExtractionResult
}
