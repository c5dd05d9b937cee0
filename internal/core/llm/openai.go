package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIBackend serves chat, embeddings and vision through the OpenAI API or any
// compatible endpoint set by BaseURL.
type OpenAIBackend struct {
	client      *openai.Client
	chatModel   string
	embedModel  string
	visionModel string
}

func NewOpenAIBackend(s ProviderSettings) *OpenAIBackend {
	cfg := openai.DefaultConfig(s.APIKey)
	if s.BaseURL != "" {
		cfg.BaseURL = s.BaseURL
	}
	return &OpenAIBackend{
		client:      openai.NewClientWithConfig(cfg),
		chatModel:   s.ChatModel,
		embedModel:  s.EmbedModel,
		visionModel: s.VisionModel,
	}
}

func (o *OpenAIBackend) Name() ProviderName { return ProviderOpenAI }

func (o *OpenAIBackend) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	creq := openai.ChatCompletionRequest{
		Model:     o.chatModel,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: no choices returned")
	}
	return &GenerateResult{
		Provider: ProviderOpenAI,
		Model:    o.chatModel,
		Content:  resp.Choices[0].Message.Content,
		Usage:    openaiUsage(resp.Usage),
	}, nil
}

func (o *OpenAIBackend) Embed(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	out := &EmbeddingResult{Provider: ProviderOpenAI, Model: o.embedModel}
	if len(texts) == 0 {
		return out, nil
	}

	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}

	out.Vectors = make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out.Vectors) {
			idx = i
		}
		out.Vectors[idx] = d.Embedding
	}
	out.Usage = Usage{PromptTokens: resp.Usage.PromptTokens, TotalTokens: resp.Usage.TotalTokens}
	return out, nil
}

func (o *OpenAIBackend) Vision(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.MIMEType, base64.StdEncoding.EncodeToString(req.Image))
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.visionModel,
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openai.ImageURLDetailHigh,
				}},
			},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("openai vision: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai vision: no choices returned")
	}
	return &VisionResult{
		Provider: ProviderOpenAI,
		Model:    o.visionModel,
		Text:     resp.Choices[0].Message.Content,
		Usage:    openaiUsage(resp.Usage),
	}, nil
}

func openaiUsage(u openai.Usage) Usage {
	return Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens, TotalTokens: u.TotalTokens}
}

var (
	_ ChatProvider      = (*OpenAIBackend)(nil)
	_ EmbeddingProvider = (*OpenAIBackend)(nil)
	_ VisionProvider    = (*OpenAIBackend)(nil)
)
