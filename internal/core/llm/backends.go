package llm

import (
	"context"
	"fmt"
)

// NewBackends constructs a backend for every provider that has at least one
// configured capability.
func NewBackends(ctx context.Context, registry *ProviderRegistry) ([]Provider, error) {
	var out []Provider
	for _, name := range knownProviders {
		if !registry.Configured(name, CapabilityChat) &&
			!registry.Configured(name, CapabilityEmbedding) &&
			!registry.Configured(name, CapabilityVision) {
			continue
		}

		s := registry.Settings(name)
		switch name {
		case ProviderGemini:
			b, err := NewGeminiBackend(ctx, s)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		case ProviderOpenAI:
			out = append(out, NewOpenAIBackend(s))
		case ProviderAnthropic:
			b, err := NewAnthropicBackend(s)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		case ProviderOllama:
			b, err := NewOllamaBackend(s)
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		default:
			return nil, fmt.Errorf("unsupported AI provider: %s", name)
		}
	}
	return out, nil
}
