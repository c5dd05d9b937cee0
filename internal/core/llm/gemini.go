package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiBackend serves chat, embeddings and vision through the Gemini API.
type GeminiBackend struct {
	client      *genai.Client
	chatModel   string
	embedModel  string
	visionModel string
}

func NewGeminiBackend(ctx context.Context, s ProviderSettings) (*GeminiBackend, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(s.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiBackend{
		client:      cl,
		chatModel:   s.ChatModel,
		embedModel:  s.EmbedModel,
		visionModel: s.VisionModel,
	}, nil
}

func (g *GeminiBackend) Name() ProviderName { return ProviderGemini }

func (g *GeminiBackend) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	m := g.client.GenerativeModel(g.chatModel)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.JSON {
		m.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		m.SetTemperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	return &GenerateResult{
		Provider: ProviderGemini,
		Model:    g.chatModel,
		Content:  geminiText(resp),
		Usage:    geminiUsage(resp),
	}, nil
}

// Embed batches all texts in one request via BatchEmbedContents.
func (g *GeminiBackend) Embed(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	out := &EmbeddingResult{Provider: ProviderGemini, Model: g.embedModel}
	if len(texts) == 0 {
		return out, nil
	}

	em := g.client.EmbeddingModel(g.embedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out.Vectors = make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out.Vectors = append(out.Vectors, e.Values)
	}
	return out, nil
}

func (g *GeminiBackend) Vision(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	m := g.client.GenerativeModel(g.visionModel)
	resp, err := m.GenerateContent(ctx,
		genai.Blob{MIMEType: req.MIMEType, Data: req.Image},
		genai.Text(req.Prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini vision: %w", err)
	}
	return &VisionResult{
		Provider: ProviderGemini,
		Model:    g.visionModel,
		Text:     geminiText(resp),
		Usage:    geminiUsage(resp),
	}, nil
}

func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}

func geminiUsage(resp *genai.GenerateContentResponse) Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
	}
}

var (
	_ ChatProvider      = (*GeminiBackend)(nil)
	_ EmbeddingProvider = (*GeminiBackend)(nil)
	_ VisionProvider    = (*GeminiBackend)(nil)
)
