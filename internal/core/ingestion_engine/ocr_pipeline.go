package ingestion_engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/core/fanout"
	"github.com/markdave123-py/Coursewise/internal/core/llm"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// VisionPrompt is sent with every page or image escalated to a vision model.
const VisionPrompt = `Extract all readable text from this image of course material, preserving reading order.
Describe any diagrams, charts or figures in a short paragraph.
Write equations in LaTeX where possible.
Return only the extracted content.`

// OCRPipeline recovers text from images and scanned PDFs. Every page is OCR'd and
// low-quality pages are escalated to a vision model.
type OCRPipeline struct {
	ocr    OCREngine
	raster Rasterizer
	vision core.VisionExtractor
	cfg    IngestConfig
	logger *slog.Logger
}

func NewOCRPipeline(ocr OCREngine, raster Rasterizer, vision core.VisionExtractor, cfg IngestConfig, logger *slog.Logger) *OCRPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRPipeline{ocr: ocr, raster: raster, vision: vision, cfg: cfg.withDefaults(), logger: logger}
}

// pageOutcome is what one page or image produced.
type pageOutcome struct {
	segment  *models.MaterialSegment
	warnings []string
}

// Run OCRs the material. prior is the native extraction result; its warnings and
// page count are carried over. Run never returns an error: an empty result has
// status needs_vision.
func (p *OCRPipeline) Run(ctx context.Context, data []byte, kind models.MaterialKind, prior core.ExtractionResult) core.ExtractionResult {
	res := core.ExtractionResult{Warnings: append([]string(nil), prior.Warnings...), Stats: prior.Stats}

	var outcomes []pageOutcome
	switch kind {
	case models.KindImage:
		mime := mimetype.Detect(data).String()
		outcomes = []pageOutcome{p.recognize(ctx, data, mime, models.SourceImage, 1)}
		res.Stats.Pages = 1
	case models.KindPDF:
		var warnings []string
		outcomes, warnings = p.runPDF(ctx, data, &res.Stats)
		res.Warnings = append(res.Warnings, warnings...)
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("OCR is not supported for %s materials", kind))
	}

	for _, o := range outcomes {
		res.Warnings = append(res.Warnings, o.warnings...)
		if o.segment == nil {
			continue
		}
		res.Segments = append(res.Segments, *o.segment)
		switch o.segment.ExtractionMethod {
		case models.MethodOCR:
			res.Stats.OCRPages++
		case models.MethodVision:
			res.Stats.VisionPages++
		}
	}

	res.Stats = withSegmentStats(res.Stats, res.Segments)
	res.Warnings = models.DedupeWarnings(res.Warnings)
	if len(res.Segments) == 0 {
		res.Status = models.MaterialNeedsVision
		res.Warnings = models.DedupeWarnings(append(res.Warnings, "OCR and vision fallback produced no usable text."))
		return res
	}
	res.Status = models.MaterialReady
	return res
}

func (p *OCRPipeline) runPDF(ctx context.Context, data []byte, stats *models.ExtractionStats) ([]pageOutcome, []string) {
	doc, err := p.raster.Open(ctx, data)
	if err != nil {
		p.logger.Warn("pdf rasterization unavailable", "error", err)
		return nil, []string{fmt.Sprintf("PDF pages could not be rendered for OCR: %v", err)}
	}
	defer doc.Close()

	total := doc.PageCount()
	stats.Pages = total
	limit := min(total, p.cfg.MaxOCRPages)

	var warnings []string
	if total > limit {
		stats.SkippedPages = total - limit
		warnings = append(warnings, fmt.Sprintf("OCR limited to the first %d of %d pages.", limit, total))
	}

	pages := make([]int, limit)
	for i := range pages {
		pages[i] = i + 1
	}

	outcomes, err := fanout.Map(ctx, pages, p.cfg.OCRConcurrency, func(ctx context.Context, _ int, page int) (pageOutcome, error) {
		img, err := doc.RenderPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return pageOutcome{}, ctx.Err()
			}
			p.logger.Warn("render page failed", "page", page, "error", err)
			return pageOutcome{warnings: []string{fmt.Sprintf("Page %d could not be rendered for OCR.", page)}}, nil
		}
		return p.recognize(ctx, img, "image/png", models.SourcePage, page), nil
	})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("OCR interrupted: %v", err))
		return nil, warnings
	}
	return outcomes, warnings
}

// recognize OCRs one image and escalates to vision when the OCR is low quality.
// When vision fails the OCR text, if any, is kept.
func (p *OCRPipeline) recognize(ctx context.Context, img []byte, mime string, sourceType models.SourceType, index int) pageOutcome {
	var out pageOutcome

	ocrRes, err := p.ocr.Recognize(ctx, img)
	if err != nil {
		p.logger.Warn("ocr failed", "source_type", sourceType, "source_index", index, "error", err)
		out.warnings = append(out.warnings, fmt.Sprintf("OCR failed on %s %d.", sourceType, index))
	}
	ocrText := normalizeWhitespace(ocrRes.Text)

	if err == nil && !IsLowQualityOCR(ocrText, ocrRes.Confidence) {
		out.segment = ocrSegment(sourceType, index, ocrText, ocrRes.Confidence)
		return out
	}

	text, verr := p.describe(ctx, img, mime)
	if verr == nil && text != "" {
		out.segment = &models.MaterialSegment{
			SourceType:       sourceType,
			SourceIndex:      index,
			Text:             text,
			ExtractionMethod: models.MethodVision,
		}
		return out
	}

	if verr != nil {
		p.logger.Warn("vision fallback failed", "source_type", sourceType, "source_index", index, "error", verr)
		out.warnings = append(out.warnings, fmt.Sprintf("Vision fallback failed on %s %d.", sourceType, index))
	}
	if ocrText != "" {
		out.warnings = append(out.warnings, "Low-quality OCR text was kept for some pages.")
		out.segment = ocrSegment(sourceType, index, ocrText, ocrRes.Confidence)
	}
	return out
}

func (p *OCRPipeline) describe(ctx context.Context, img []byte, mime string) (string, error) {
	if p.vision == nil {
		return "", fmt.Errorf("no vision model configured")
	}
	res, err := p.vision.ExtractVisionText(ctx, llm.VisionRequest{Image: img, MIMEType: mime, Prompt: VisionPrompt})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Text), nil
}

func ocrSegment(sourceType models.SourceType, index int, text string, confidence float64) *models.MaterialSegment {
	score := confidence
	return &models.MaterialSegment{
		SourceType:       sourceType,
		SourceIndex:      index,
		Text:             text,
		ExtractionMethod: models.MethodOCR,
		QualityScore:     &score,
	}
}
