package ingestion_engine

import (
	"strings"
	"unicode"
)

const (
	minOCRChars      = 30
	minOCRConfidence = 60.0
	maxSymbolRatio   = 0.55
)

// IsLowQualityOCR reports whether OCR output should be escalated to a vision model:
// too short, too unsure, or mostly symbols.
func IsLowQualityOCR(text string, confidence float64) bool {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) < minOCRChars {
		return true
	}
	if confidence < minOCRConfidence {
		return true
	}
	return symbolRatio(runes) > maxSymbolRatio
}

// symbolRatio is the share of runes that are neither letters, digits nor whitespace.
func symbolRatio(runes []rune) float64 {
	if len(runes) == 0 {
		return 0
	}
	symbols := 0
	for _, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			symbols++
		}
	}
	return float64(symbols) / float64(len(runes))
}
