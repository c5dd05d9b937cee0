package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

var _ core.DocumentExtractor = (*NativeExtractor)(nil)

// NativeExtractor pulls embedded text out of PDF, DOCX and PPTX files.
// PDFs are read page by page with ledongthuc/pdf; DOCX and PPTX go through docconv.
type NativeExtractor struct {
	logger *slog.Logger
}

func NewNativeExtractor(logger *slog.Logger) *NativeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeExtractor{logger: logger}
}

// Extract never returns an error or panics: problems are reported through the
// result status and warnings.
func (e *NativeExtractor) Extract(ctx context.Context, data []byte, kind models.MaterialKind) (res core.ExtractionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("native extraction panicked", "kind", kind, "panic", r)
			res = failed(fmt.Sprintf("%s extraction failed: %v", strings.ToUpper(string(kind)), r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return failed(fmt.Sprintf("extraction cancelled: %v", err))
	}

	switch kind {
	case models.KindPDF:
		return e.extractPDF(data)
	case models.KindDOCX:
		return e.extractOffice(data, "DOCX", docconv.ConvertDocx)
	case models.KindPPTX:
		return e.extractOffice(data, "PPTX", docconv.ConvertPptx)
	case models.KindImage:
		return core.ExtractionResult{
			Status:   models.MaterialNeedsVision,
			Warnings: []string{"Image materials have no text layer; OCR is required."},
		}
	default:
		return failed(fmt.Sprintf("unsupported material kind %q", kind))
	}
}

func (e *NativeExtractor) extractPDF(data []byte) core.ExtractionResult {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failed(fmt.Sprintf("PDF extraction failed: %v", err))
	}

	pages := r.NumPage()
	res := core.ExtractionResult{Stats: models.ExtractionStats{Pages: pages}}
	var blank []int

	for i := 1; i <= pages; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			blank = append(blank, i)
			continue
		}
		raw, err := p.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("pdf page text failed", "page", i, "error", err)
			blank = append(blank, i)
			continue
		}
		text := normalizeWhitespace(raw)
		if text == "" {
			blank = append(blank, i)
			continue
		}
		res.Segments = append(res.Segments, models.MaterialSegment{
			SourceType:       models.SourcePage,
			SourceIndex:      i,
			Text:             text,
			ExtractionMethod: models.MethodText,
		})
	}

	if pages == 0 {
		return failed("PDF extraction returned empty text")
	}
	if len(res.Segments) == 0 {
		res.Status = models.MaterialNeedsVision
		res.Warnings = append(res.Warnings, "PDF has no extractable text layer; OCR is required.")
		return res
	}
	if len(blank) > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d PDF pages had no extractable text.", len(blank), pages))
	}
	res.Status = models.MaterialReady
	res.Stats = withSegmentStats(res.Stats, res.Segments)
	return res
}

func (e *NativeExtractor) extractOffice(data []byte, label string, convert func(r io.Reader) (string, map[string]string, error)) core.ExtractionResult {
	body, _, err := convert(bytes.NewReader(data))
	if err != nil {
		return failed(fmt.Sprintf("%s extraction failed: %v", label, err))
	}
	text := normalizeWhitespace(body)
	if text == "" {
		return failed(fmt.Sprintf("%s extraction returned empty text", label))
	}
	segs := []models.MaterialSegment{{
		SourceType:       models.SourceDocument,
		SourceIndex:      1,
		Text:             text,
		ExtractionMethod: models.MethodText,
	}}
	return core.ExtractionResult{
		Segments: segs,
		Status:   models.MaterialReady,
		Stats:    withSegmentStats(models.ExtractionStats{}, segs),
	}
}

func failed(warning string) core.ExtractionResult {
	return core.ExtractionResult{Status: models.MaterialFailed, Warnings: []string{warning}}
}

// normalizeWhitespace collapses runs of whitespace into single spaces.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func withSegmentStats(stats models.ExtractionStats, segs []models.MaterialSegment) models.ExtractionStats {
	stats.Segments = len(segs)
	stats.Characters = 0
	stats.TextSegments = 0
	for _, s := range segs {
		stats.Characters += len([]rune(s.Text))
		if s.ExtractionMethod == models.MethodText {
			stats.TextSegments++
		}
	}
	return stats
}
