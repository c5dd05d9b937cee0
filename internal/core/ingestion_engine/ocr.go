package ingestion_engine

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// OCRResult is recognised text plus mean word confidence (0-100).
type OCRResult struct {
	Text       string
	Confidence float64
}

// OCREngine recognises text in an image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (OCRResult, error)
}

// TesseractOCR runs Tesseract through gosseract. A fresh client is used per call
// so it is safe for concurrent use.
type TesseractOCR struct {
	Language string
}

func NewTesseractOCR(language string) *TesseractOCR {
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{Language: language}
}

func (t *TesseractOCR) Recognize(ctx context.Context, image []byte) (OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return OCRResult{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Language); err != nil {
		return OCRResult{}, fmt.Errorf("tesseract language %q: %w", t.Language, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return OCRResult{}, fmt.Errorf("tesseract image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return OCRResult{}, fmt.Errorf("tesseract text: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return OCRResult{}, fmt.Errorf("tesseract confidence: %w", err)
	}
	return OCRResult{Text: text, Confidence: meanConfidence(boxes)}, nil
}

func meanConfidence(boxes []gosseract.BoundingBox) float64 {
	if len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
