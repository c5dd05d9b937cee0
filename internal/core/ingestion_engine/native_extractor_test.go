package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/markdave123-py/Coursewise/internal/models"
)

func TestNativeExtractorNeverFailsSilently(t *testing.T) {
	e := NewNativeExtractor(nil)
	inputs := map[string][]byte{
		"empty":   {},
		"garbage": []byte("definitely not a document \x00\x01\x02"),
		"pdfish":  []byte("%PDF-1.4\n%broken"),
	}
	kinds := []models.MaterialKind{models.KindPDF, models.KindDOCX, models.KindPPTX, models.KindImage, "xlsx"}

	for name, data := range inputs {
		for _, kind := range kinds {
			t.Run(name+"/"+string(kind), func(t *testing.T) {
				var res = e.Extract(context.Background(), data, kind)
				assert.Contains(t, []models.MaterialStatus{models.MaterialFailed, models.MaterialNeedsVision}, res.Status)
				assert.NotEmpty(t, res.Warnings)
				assert.Empty(t, res.Segments)
			})
		}
	}
}

func TestNativeExtractorImageNeedsVision(t *testing.T) {
	res := NewNativeExtractor(nil).Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, models.KindImage)
	assert.Equal(t, models.MaterialNeedsVision, res.Status)
	assert.Len(t, res.Warnings, 1)
}

func TestNativeExtractorCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := NewNativeExtractor(nil).Extract(ctx, []byte("x"), models.KindDOCX)
	assert.Equal(t, models.MaterialFailed, res.Status)
}

func TestNormalizeWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", normalizeWhitespace("  a\n\n b\t\tc  "))
	assert.Equal(t, "", normalizeWhitespace(" \n "))
}

func TestParseS3URL(t *testing.T) {
	tests := []struct {
		in, bucket, key string
	}{
		{"https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf", "my-bucket", "path/to/file.pdf"},
		{"s3://materials/classes/c1/m1/notes.pdf", "materials", "classes/c1/m1/notes.pdf"},
	}
	for _, tt := range tests {
		bucket, key := parseS3URL(tt.in)
		assert.Equal(t, tt.bucket, bucket)
		assert.Equal(t, tt.key, key)
	}
}
