package ingestion_engine

import (
	"strings"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// Chunker splits segments into token-bounded, overlapping chunks.
type Chunker struct {
	maxTokens int
	overlap   int
}

// NewChunker returns a chunker; overlap is counted in words and is kept below maxTokens.
func NewChunker(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultIngestConfig().ChunkTokens
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxTokens {
		overlap = maxTokens / 2
	}
	return &Chunker{maxTokens: maxTokens, overlap: overlap}
}

// Chunk turns ordered segments into chunks carrying each segment's provenance.
// Only text-related fields are set; ids, owners and embeddings are filled by the caller.
func (c *Chunker) Chunk(segments []models.MaterialSegment) []models.MaterialChunk {
	var out []models.MaterialChunk
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		for _, text := range c.split(seg.Text) {
			out = append(out, models.MaterialChunk{
				SourceType:       seg.SourceType,
				SourceIndex:      seg.SourceIndex,
				SectionTitle:     seg.SectionTitle,
				Text:             text,
				TokenCount:       core.EstimateTokens(text),
				ExtractionMethod: seg.ExtractionMethod,
				QualityScore:     seg.QualityScore,
			})
		}
	}
	return out
}

func (c *Chunker) split(text string) []string {
	if core.EstimateTokens(text) <= c.maxTokens {
		return []string{text}
	}

	words := strings.Fields(text)
	var out []string
	start := 0
	for start < len(words) {
		end := start
		length := 0
		for end < len(words) {
			add := core.TextLength(words[end])
			if end > start {
				add++ // joining space
			}
			// a lone word longer than the limit still forms a chunk
			if end > start && (length+add+3)/4 > c.maxTokens {
				break
			}
			length += add
			end++
		}

		out = append(out, strings.Join(words[start:end], " "))
		if end >= len(words) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return out
}
