package ingestion_engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

func segment(text string, index int) models.MaterialSegment {
	return models.MaterialSegment{
		SourceType:       models.SourcePage,
		SourceIndex:      index,
		Text:             text,
		ExtractionMethod: models.MethodText,
	}
}

func TestChunkSmallSegmentIsVerbatim(t *testing.T) {
	text := "  Newton's  second law:\nF = ma  "
	chunks := NewChunker(500, 50).Chunk([]models.MaterialSegment{segment(text, 3)})

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 3, chunks[0].SourceIndex)
	assert.Equal(t, models.SourcePage, chunks[0].SourceType)
	assert.Equal(t, core.EstimateTokens(text), chunks[0].TokenCount)
}

func TestChunkSkipsEmptySegments(t *testing.T) {
	chunks := NewChunker(10, 2).Chunk([]models.MaterialSegment{segment("", 1), segment(" \n\t", 2), segment("hello", 3)})
	require.Len(t, chunks, 1)
	assert.Equal(t, 3, chunks[0].SourceIndex)
}

func TestChunkCountsAstralCharactersTwice(t *testing.T) {
	// each word is 4 UTF-16 units; joined they are 9 units = 3 tokens
	chunks := NewChunker(2, 0).Chunk([]models.MaterialSegment{segment("😀😀 🧪🧪", 1)})

	require.Len(t, chunks, 2)
	assert.Equal(t, "😀😀", chunks[0].Text)
	assert.Equal(t, "🧪🧪", chunks[1].Text)
	for _, c := range chunks {
		assert.Equal(t, 1, c.TokenCount)
	}
}

func TestChunkSplitsWithOverlap(t *testing.T) {
	// 12 words of 3 chars; with a 4 token limit a window holds 4 words ("aaa bbb ccc ddd" = 15 chars = 4 tokens).
	words := []string{"w01", "w02", "w03", "w04", "w05", "w06", "w07", "w08", "w09", "w10", "w11", "w12"}
	chunks := NewChunker(4, 1).Chunk([]models.MaterialSegment{segment(strings.Join(words, " "), 1)})

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
		assert.LessOrEqual(t, c.TokenCount, 4)
	}
	assert.Equal(t, []string{
		"w01 w02 w03 w04",
		"w04 w05 w06 w07",
		"w07 w08 w09 w10",
		"w10 w11 w12",
	}, texts)
}

func TestChunkOversizedWordStandsAlone(t *testing.T) {
	long := strings.Repeat("x", 40)
	chunks := NewChunker(3, 1).Chunk([]models.MaterialSegment{segment("a "+long+" b", 1)})

	var texts []string
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	assert.Contains(t, texts, long)
	assert.Equal(t, "b", texts[len(texts)-1])
}

func TestChunkProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxTokens := rapid.IntRange(1, 40).Draw(t, "maxTokens")
		overlap := rapid.IntRange(0, 60).Draw(t, "overlap")
		words := rapid.SliceOfN(rapid.StringMatching(`[a-zA-Z0-9]{1,30}`), 0, 120).Draw(t, "words")
		text := strings.Join(words, " ")

		chunks := NewChunker(maxTokens, overlap).Chunk([]models.MaterialSegment{segment(text, 1)})
		if len(words) == 0 {
			if len(chunks) != 0 {
				t.Fatalf("expected no chunks for empty text")
			}
			return
		}

		for _, c := range chunks {
			if c.TokenCount > maxTokens && strings.Contains(c.Text, " ") {
				t.Fatalf("chunk of %d tokens exceeds limit %d: %q", c.TokenCount, maxTokens, c.Text)
			}
		}

		// chunks cover the text from its first to its last word
		first := strings.Fields(chunks[0].Text)
		last := strings.Fields(chunks[len(chunks)-1].Text)
		if first[0] != words[0] || last[len(last)-1] != words[len(words)-1] {
			t.Fatalf("chunks do not cover the segment")
		}
	})
}
