package llm

import "strings"

// ProviderSettings are the credentials and model identifiers of one provider.
// For Ollama, BaseURL (the server host) stands in for the API key.
type ProviderSettings struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	EmbedModel  string
	VisionModel string
}

// RegistryConfig is the raw input for NewProviderRegistry.
type RegistryConfig struct {
	Default   string
	Providers map[ProviderName]ProviderSettings
}

// ProviderRegistry is an immutable snapshot of which providers can serve which capability.
type ProviderRegistry struct {
	defaultProvider ProviderName
	settings        map[ProviderName]ProviderSettings
}

func NewProviderRegistry(cfg RegistryConfig) *ProviderRegistry {
	settings := make(map[ProviderName]ProviderSettings, len(cfg.Providers))
	for name, s := range cfg.Providers {
		settings[name] = ProviderSettings{
			APIKey:      strings.TrimSpace(s.APIKey),
			BaseURL:     strings.TrimSpace(s.BaseURL),
			ChatModel:   strings.TrimSpace(s.ChatModel),
			EmbedModel:  strings.TrimSpace(s.EmbedModel),
			VisionModel: strings.TrimSpace(s.VisionModel),
		}
	}
	return &ProviderRegistry{
		defaultProvider: ProviderName(strings.ToLower(strings.TrimSpace(cfg.Default))),
		settings:        settings,
	}
}

// Settings returns the settings of a provider.
func (r *ProviderRegistry) Settings(name ProviderName) ProviderSettings {
	return r.settings[name]
}

// Model returns the model configured for the provider's capability, or "".
func (r *ProviderRegistry) Model(name ProviderName, capability Capability) string {
	s := r.settings[name]
	switch capability {
	case CapabilityChat:
		return s.ChatModel
	case CapabilityEmbedding:
		if name == ProviderAnthropic {
			return ""
		}
		return s.EmbedModel
	case CapabilityVision:
		return s.VisionModel
	}
	return ""
}

// Configured reports whether the provider has both a credential and a model for capability.
func (r *ProviderRegistry) Configured(name ProviderName, capability Capability) bool {
	s, ok := r.settings[name]
	if !ok {
		return false
	}
	credential := s.APIKey
	if name == ProviderOllama {
		credential = s.BaseURL
	}
	return credential != "" && r.Model(name, capability) != ""
}

// Order lists the providers configured for capability, default provider first.
func (r *ProviderRegistry) Order(capability Capability) []ProviderName {
	var out []ProviderName
	if r.Configured(r.defaultProvider, capability) {
		out = append(out, r.defaultProvider)
	}
	for _, name := range knownProviders {
		if name == r.defaultProvider || !r.Configured(name, capability) {
			continue
		}
		out = append(out, name)
	}
	return out
}

// AnyConfigured reports whether any provider can serve capability.
func (r *ProviderRegistry) AnyConfigured(capability Capability) bool {
	return len(r.Order(capability)) > 0
}
