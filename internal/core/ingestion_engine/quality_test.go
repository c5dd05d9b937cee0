package ingestion_engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLowQualityOCR(t *testing.T) {
	good := "The mitochondria is the powerhouse of the cell and produces ATP."
	tests := []struct {
		name       string
		text       string
		confidence float64
		want       bool
	}{
		{"short text despite confidence", "abc", 80, true},
		{"padding does not count", "   abc   " + strings.Repeat(" ", 40), 95, true},
		{"low confidence", good, 59.9, true},
		{"confidence at threshold", good, 60, false},
		{"mostly symbols", "#### $$$$ %%%% ^^^^ &&&& **** ((((  ))))", 90, true},
		{"clean text", good, 88, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLowQualityOCR(tt.text, tt.confidence))
		})
	}
}
