package llm

import "fmt"

// ConfigurationError means a capability or provider has no usable configuration.
// Retrying cannot fix it.
type ConfigurationError struct {
	Capability Capability
	Provider   ProviderName // empty when no provider at all is configured
}

func (e *ConfigurationError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("No %s providers are configured.", e.Capability)
	}
	return fmt.Sprintf("%s provider is not configured for %s.", e.Provider, e.Capability)
}

// Terminal marks the error as not worth retrying.
func (e *ConfigurationError) Terminal() bool { return true }
