package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MaterialKind is the declared format of an uploaded material.
type MaterialKind string

const (
	KindPDF   MaterialKind = "pdf"
	KindDOCX  MaterialKind = "docx"
	KindPPTX  MaterialKind = "pptx"
	KindImage MaterialKind = "image"
)

// MaterialStatus is the user-facing processing state of a material.
type MaterialStatus string

const (
	MaterialPending     MaterialStatus = "pending"
	MaterialReady       MaterialStatus = "ready"
	MaterialNeedsVision MaterialStatus = "needs_vision"
	MaterialFailed      MaterialStatus = "failed"
)

// ExtractionMethod records how a segment's text was obtained.
type ExtractionMethod string

const (
	MethodText   ExtractionMethod = "text"
	MethodOCR    ExtractionMethod = "ocr"
	MethodVision ExtractionMethod = "vision"
)

// SourceType names the unit a segment was taken from.
type SourceType string

const (
	SourcePage     SourceType = "page"
	SourceSlide    SourceType = "slide"
	SourceDocument SourceType = "document"
	SourceImage    SourceType = "image"
)

// ExtractionStats summarises one extraction run. Stored inside material metadata.
type ExtractionStats struct {
	Pages        int `json:"pages,omitempty"`
	Characters   int `json:"characters"`
	Segments     int `json:"segments"`
	TextSegments int `json:"text_segments,omitempty"`
	OCRPages     int `json:"ocr_pages,omitempty"`
	VisionPages  int `json:"vision_pages,omitempty"`
	SkippedPages int `json:"skipped_pages,omitempty"`
	Chunks       int `json:"chunks,omitempty"`
}

// MaterialMetadata is the free-form jsonb column on materials.
type MaterialMetadata struct {
	Warnings   []string         `json:"warnings,omitempty"`
	Extraction *ExtractionStats `json:"extraction,omitempty"`
	FileName   string           `json:"file_name,omitempty"`
	SizeBytes  int64            `json:"size_bytes,omitempty"`
}

// AddWarnings appends warnings that are not already present.
func (m *MaterialMetadata) AddWarnings(warnings ...string) {
	m.Warnings = DedupeWarnings(append(m.Warnings, warnings...))
}

// DedupeWarnings drops empty and repeated warnings, keeping first-seen order.
func DedupeWarnings(warnings []string) []string {
	seen := make(map[string]struct{}, len(warnings))
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Value implements driver.Valuer so metadata can be written to jsonb.
func (m MaterialMetadata) Value() (driver.Value, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for the jsonb metadata column.
func (m *MaterialMetadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = MaterialMetadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
}

// Material represents an uploaded source document belonging to a class.
type Material struct {
	ID          string           `db:"id" json:"id"`
	ClassID     string           `db:"class_id" json:"class_id"`
	Title       string           `db:"title" json:"title"`
	StoragePath string           `db:"storage_path" json:"storage_path"`
	MimeType    string           `db:"mime_type" json:"mime_type"`
	Kind        MaterialKind     `db:"kind" json:"kind"`
	Status      MaterialStatus   `db:"status" json:"status"`
	Metadata    MaterialMetadata `db:"metadata" json:"metadata"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// MaterialSegment is one logical unit of extracted text. Never persisted.
type MaterialSegment struct {
	SourceType       SourceType
	SourceIndex      int
	SectionTitle     *string
	Text             string
	ExtractionMethod ExtractionMethod
	QualityScore     *float64
}

// MaterialChunk is a persisted, token-bounded slice of a segment.
type MaterialChunk struct {
	ID                string           `db:"id" json:"id"`
	MaterialID        string           `db:"material_id" json:"material_id"`
	ClassID           string           `db:"class_id" json:"class_id"`
	SourceType        SourceType       `db:"source_type" json:"source_type"`
	SourceIndex       int              `db:"source_index" json:"source_index"`
	SectionTitle      *string          `db:"section_title" json:"section_title,omitempty"`
	Text              string           `db:"text" json:"text"`
	TokenCount        int              `db:"token_count" json:"token_count"`
	Embedding         []float32        `db:"-" json:"-"`
	EmbeddingProvider string           `db:"embedding_provider" json:"embedding_provider"`
	EmbeddingModel    string           `db:"embedding_model" json:"embedding_model"`
	ExtractionMethod  ExtractionMethod `db:"extraction_method" json:"extraction_method"`
	QualityScore      *float64         `db:"quality_score" json:"quality_score,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
}

// RetrievedChunk is a read-only search hit: a chunk plus its similarity to the query.
type RetrievedChunk struct {
	ID               string           `db:"id" json:"id"`
	MaterialID       string           `db:"material_id" json:"material_id"`
	MaterialTitle    string           `db:"material_title" json:"material_title"`
	SourceType       SourceType       `db:"source_type" json:"source_type"`
	SourceIndex      int              `db:"source_index" json:"source_index"`
	SectionTitle     *string          `db:"section_title" json:"section_title,omitempty"`
	Text             string           `db:"text" json:"text"`
	TokenCount       *int             `db:"token_count" json:"token_count,omitempty"`
	ExtractionMethod ExtractionMethod `db:"extraction_method" json:"extraction_method"`
	Similarity       float64          `db:"similarity" json:"similarity"`
}
