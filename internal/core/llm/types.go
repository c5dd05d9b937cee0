// Package llm is the multi-provider AI client: one facade over Gemini, OpenAI,
// Anthropic and Ollama for text generation, embeddings and vision, with ordered
// fallback between configured providers.
package llm

import (
	"context"
	"time"
)

// Capability is one kind of model call.
type Capability string

const (
	CapabilityChat      Capability = "chat"
	CapabilityEmbedding Capability = "embedding"
	CapabilityVision    Capability = "vision"
)

// ProviderName identifies a backend.
type ProviderName string

const (
	ProviderGemini    ProviderName = "gemini"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
	ProviderOllama    ProviderName = "ollama"
)

// knownProviders is the fallback order before the default provider is moved to the front.
var knownProviders = []ProviderName{ProviderGemini, ProviderOpenAI, ProviderAnthropic, ProviderOllama}

// Usage holds token counters reported by a provider. Zero means not reported.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateRequest is a single-turn text generation call.
type GenerateRequest struct {
	System      string
	Prompt      string
	JSON        bool // ask the provider for a JSON object response
	Temperature *float32
	MaxTokens   int
}

type GenerateResult struct {
	Provider ProviderName
	Model    string
	Content  string
	Usage    Usage
	Latency  time.Duration
}

type EmbeddingResult struct {
	Provider ProviderName
	Model    string
	Vectors  [][]float32
	Usage    Usage
	Latency  time.Duration
}

// VisionRequest asks a vision model to transcribe one image.
type VisionRequest struct {
	Image    []byte
	MIMEType string
	Prompt   string
}

type VisionResult struct {
	Provider ProviderName
	Model    string
	Text     string
	Usage    Usage
	Latency  time.Duration
}

// Provider is implemented by every backend.
type Provider interface {
	Name() ProviderName
}

// ChatProvider generates text.
type ChatProvider interface {
	Provider
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// EmbeddingProvider embeds a batch of texts, returning vectors in input order.
type EmbeddingProvider interface {
	Provider
	Embed(ctx context.Context, texts []string) (*EmbeddingResult, error)
}

// VisionProvider transcribes images.
type VisionProvider interface {
	Provider
	Vision(ctx context.Context, req VisionRequest) (*VisionResult, error)
}
