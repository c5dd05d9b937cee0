// Package retrieval turns a question into a token-budgeted context string built from
// a class's nearest stored chunks.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/markdave123-py/Coursewise/internal/core"
	"github.com/markdave123-py/Coursewise/internal/models"
)

// ContextSeparator joins the formatted sources.
const ContextSeparator = "\n\n---\n\n"

// Config bounds the context handed to a prompt.
type Config struct {
	MatchCount     int
	MaxPerMaterial int
	MaxTokens      int
}

type Engine struct {
	embedder core.Embedder
	chunks   core.ChunkStore
	cfg      Config
	logger   *slog.Logger
}

func NewEngine(embedder core.Embedder, chunks core.ChunkStore, cfg Config, logger *slog.Logger) *Engine {
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = 12
	}
	if cfg.MaxPerMaterial <= 0 {
		cfg.MaxPerMaterial = 4
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, chunks: chunks, cfg: cfg, logger: logger}
}

// Result is the packed context and the chunks it was built from.
type Result struct {
	Context string
	Chunks  []models.RetrievedChunk
}

// Retrieve embeds query, fetches the class's nearest chunks and packs them.
// An empty Context means nothing relevant is stored; it is not an error.
func (e *Engine) Retrieve(ctx context.Context, classID, query string) (*Result, error) {
	emb, err := e.embedder.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(emb.Vectors) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}

	candidates, err := e.chunks.MatchChunks(ctx, classID, emb.Vectors[0], e.cfg.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("match chunks: %w", err)
	}

	selected := Pack(candidates, e.cfg.MaxPerMaterial, e.cfg.MaxTokens)
	e.logger.Debug("context packed", "class_id", classID, "candidates", len(candidates), "selected", len(selected))
	return &Result{Context: FormatContext(selected), Chunks: selected}, nil
}

// BuildContext is Retrieve returning only the context string.
func (e *Engine) BuildContext(ctx context.Context, classID, query string) (string, error) {
	res, err := e.Retrieve(ctx, classID, query)
	if err != nil {
		return "", err
	}
	return res.Context, nil
}

// Pack greedily keeps candidates in similarity order. A material contributes at most
// maxPerMaterial chunks; the first chunk that does not fit the remaining token budget
// ends selection.
func Pack(candidates []models.RetrievedChunk, maxPerMaterial, maxTokens int) []models.RetrievedChunk {
	var selected []models.RetrievedChunk
	perMaterial := map[string]int{}
	remaining := maxTokens

	for _, c := range candidates {
		if perMaterial[c.MaterialID] >= maxPerMaterial {
			continue
		}
		tokens := ChunkTokens(c)
		if tokens > remaining {
			break
		}
		selected = append(selected, c)
		perMaterial[c.MaterialID]++
		remaining -= tokens
	}
	return selected
}

// ChunkTokens is the stored token count, or the estimate when none was stored.
func ChunkTokens(c models.RetrievedChunk) int {
	if c.TokenCount != nil {
		return *c.TokenCount
	}
	return core.EstimateTokens(c.Text)
}

// FormatContext renders chunks as "Source n | title | type index" blocks.
func FormatContext(chunks []models.RetrievedChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	parts := make([]string, 0, len(chunks))
	for i, c := range chunks {
		parts = append(parts, fmt.Sprintf("%s\n%s", SourceLabel(i+1, c), c.Text))
	}
	return strings.Join(parts, ContextSeparator)
}

// SourceLabel is the header citing a chunk; chat citations are matched against it.
func SourceLabel(n int, c models.RetrievedChunk) string {
	return fmt.Sprintf("Source %d | %s | %s %d", n, c.MaterialTitle, c.SourceType, c.SourceIndex)
}
