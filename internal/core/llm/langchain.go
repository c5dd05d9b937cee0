package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
)

// langchainBackend adapts langchaingo models to the provider interfaces.
// Any of chat, vision and embedder may be nil when not configured.
type langchainBackend struct {
	name        ProviderName
	chat        llms.Model
	chatModel   string
	vision      llms.Model
	visionModel string
	embedder    embeddings.Embedder
	embedModel  string
}

// AnthropicBackend serves chat and vision. Anthropic has no embedding endpoint.
type AnthropicBackend struct{ langchainBackend }

func NewAnthropicBackend(s ProviderSettings) (*AnthropicBackend, error) {
	b := &AnthropicBackend{langchainBackend{name: ProviderAnthropic, chatModel: s.ChatModel, visionModel: s.VisionModel}}
	var err error
	if s.ChatModel != "" {
		b.chat, err = anthropic.New(anthropic.WithToken(s.APIKey), anthropic.WithModel(s.ChatModel))
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
	}
	if s.VisionModel != "" {
		b.vision, err = anthropic.New(anthropic.WithToken(s.APIKey), anthropic.WithModel(s.VisionModel))
		if err != nil {
			return nil, fmt.Errorf("create anthropic vision model: %w", err)
		}
	}
	return b, nil
}

func (b *AnthropicBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return b.generate(ctx, req)
}

func (b *AnthropicBackend) Vision(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	return b.describe(ctx, req)
}

// OllamaBackend serves chat, embeddings and vision from a local Ollama server.
type OllamaBackend struct{ langchainBackend }

func NewOllamaBackend(s ProviderSettings) (*OllamaBackend, error) {
	b := &OllamaBackend{langchainBackend{
		name: ProviderOllama, chatModel: s.ChatModel, visionModel: s.VisionModel, embedModel: s.EmbedModel,
	}}
	newModel := func(model string) (*ollama.LLM, error) {
		return ollama.New(ollama.WithModel(model), ollama.WithServerURL(s.BaseURL))
	}

	if s.ChatModel != "" {
		m, err := newModel(s.ChatModel)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		b.chat = m
	}
	if s.VisionModel != "" {
		m, err := newModel(s.VisionModel)
		if err != nil {
			return nil, fmt.Errorf("create ollama vision model: %w", err)
		}
		b.vision = m
	}
	if s.EmbedModel != "" {
		m, err := newModel(s.EmbedModel)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		b.embedder, err = embeddings.NewEmbedder(m)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
	}
	return b, nil
}

func (b *OllamaBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	return b.generate(ctx, req)
}

func (b *OllamaBackend) Vision(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	return b.describe(ctx, req)
}

func (b *OllamaBackend) Embed(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	if b.embedder == nil {
		return nil, &ConfigurationError{Capability: CapabilityEmbedding, Provider: b.name}
	}
	out := &EmbeddingResult{Provider: b.name, Model: b.embedModel}
	if len(texts) == 0 {
		return out, nil
	}
	vectors, err := b.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%s embed: %w", b.name, err)
	}
	out.Vectors = vectors
	return out, nil
}

func (b *langchainBackend) Name() ProviderName { return b.name }

func (b *langchainBackend) generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if b.chat == nil {
		return nil, &ConfigurationError{Capability: CapabilityChat, Provider: b.name}
	}

	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	var opts []llms.CallOption
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}
	if req.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*req.Temperature)))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}

	resp, err := b.chat.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s generate: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s generate: no response choices", b.name)
	}
	choice := resp.Choices[0]
	return &GenerateResult{
		Provider: b.name,
		Model:    b.chatModel,
		Content:  choice.Content,
		Usage:    usageFromInfo(choice.GenerationInfo),
	}, nil
}

func (b *langchainBackend) describe(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	if b.vision == nil {
		return nil, &ConfigurationError{Capability: CapabilityVision, Provider: b.name}
	}

	messages := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.BinaryPart(req.MIMEType, req.Image),
			llms.TextPart(req.Prompt),
		},
	}}
	resp, err := b.vision.GenerateContent(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("%s vision: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s vision: no response choices", b.name)
	}
	choice := resp.Choices[0]
	return &VisionResult{
		Provider: b.name,
		Model:    b.visionModel,
		Text:     choice.Content,
		Usage:    usageFromInfo(choice.GenerationInfo),
	}, nil
}

// usageFromInfo reads token counters from langchaingo's GenerationInfo. Anthropic
// reports InputTokens/OutputTokens, Ollama PromptTokens/CompletionTokens.
func usageFromInfo(info map[string]any) Usage {
	u := Usage{
		PromptTokens:     firstInt(info, "InputTokens", "PromptTokens"),
		CompletionTokens: firstInt(info, "OutputTokens", "CompletionTokens"),
		TotalTokens:      firstInt(info, "TotalTokens"),
	}
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

func firstInt(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

var (
	_ ChatProvider      = (*AnthropicBackend)(nil)
	_ VisionProvider    = (*AnthropicBackend)(nil)
	_ ChatProvider      = (*OllamaBackend)(nil)
	_ EmbeddingProvider = (*OllamaBackend)(nil)
	_ VisionProvider    = (*OllamaBackend)(nil)
)
