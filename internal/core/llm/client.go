package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Client routes each call through the providers configured for its capability,
// default provider first, falling back to the next on failure. Each provider sits
// behind its own circuit breaker.
type Client struct {
	registry *ProviderRegistry
	chat     map[ProviderName]ChatProvider
	embed    map[ProviderName]EmbeddingProvider
	vision   map[ProviderName]VisionProvider
	breakers map[ProviderName]*gobreaker.CircuitBreaker
	recorder Recorder
	logger   *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient indexes backends by the capabilities they implement. A backend only takes
// part in a capability's chain when the registry says that capability is configured.
func NewClient(registry *ProviderRegistry, backends []Provider, opts ...Option) *Client {
	c := &Client{
		registry: registry,
		chat:     map[ProviderName]ChatProvider{},
		embed:    map[ProviderName]EmbeddingProvider{},
		vision:   map[ProviderName]VisionProvider{},
		breakers: map[ProviderName]*gobreaker.CircuitBreaker{},
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}

	for _, b := range backends {
		name := b.Name()
		if p, ok := b.(ChatProvider); ok {
			c.chat[name] = p
		}
		if p, ok := b.(EmbeddingProvider); ok {
			c.embed[name] = p
		}
		if p, ok := b.(VisionProvider); ok {
			c.vision[name] = p
		}
		if _, ok := c.breakers[name]; !ok {
			c.breakers[name] = newBreaker(name, c.logger)
		}
	}
	return c
}

func newBreaker(name ProviderName, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("provider-%s", name),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(breaker string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "circuit_breaker", breaker, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var cfgErr *ConfigurationError
			if errors.As(err, &cfgErr) || errors.Is(err, context.Canceled) {
				return true
			}
			return false
		},
	})
}

// Registry returns the provider snapshot the client was built with.
func (c *Client) Registry() *ProviderRegistry { return c.registry }

// GenerateText runs req against the chat providers in order.
func (c *Client) GenerateText(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	res, latency, err := run(ctx, c, CapabilityChat, func(ctx context.Context, name ProviderName) (*GenerateResult, Usage, error) {
		p, ok := c.chat[name]
		if !ok {
			return nil, Usage{}, &ConfigurationError{Capability: CapabilityChat, Provider: name}
		}
		r, err := p.Generate(ctx, req)
		if err != nil {
			return nil, Usage{}, err
		}
		return r, r.Usage, nil
	})
	if err != nil {
		return nil, err
	}
	res.Latency = latency
	return res, nil
}

// GenerateEmbeddings embeds texts with the first embedding provider that succeeds.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) (*EmbeddingResult, error) {
	res, latency, err := run(ctx, c, CapabilityEmbedding, func(ctx context.Context, name ProviderName) (*EmbeddingResult, Usage, error) {
		p, ok := c.embed[name]
		if !ok {
			return nil, Usage{}, &ConfigurationError{Capability: CapabilityEmbedding, Provider: name}
		}
		r, err := p.Embed(ctx, texts)
		if err != nil {
			return nil, Usage{}, err
		}
		if len(r.Vectors) != len(texts) {
			return nil, Usage{}, fmt.Errorf("embedding count mismatch: got %d, want %d", len(r.Vectors), len(texts))
		}
		return r, r.Usage, nil
	})
	if err != nil {
		return nil, err
	}
	res.Latency = latency
	return res, nil
}

// ExtractVisionText transcribes an image with the vision providers in order.
func (c *Client) ExtractVisionText(ctx context.Context, req VisionRequest) (*VisionResult, error) {
	res, latency, err := run(ctx, c, CapabilityVision, func(ctx context.Context, name ProviderName) (*VisionResult, Usage, error) {
		p, ok := c.vision[name]
		if !ok {
			return nil, Usage{}, &ConfigurationError{Capability: CapabilityVision, Provider: name}
		}
		r, err := p.Vision(ctx, req)
		if err != nil {
			return nil, Usage{}, err
		}
		return r, r.Usage, nil
	})
	if err != nil {
		return nil, err
	}
	res.Latency = latency
	return res, nil
}

// run tries each configured provider for capability in order. With a single
// provider its error is returned as is; otherwise the last error is returned once
// every provider has failed.
func run[R any](ctx context.Context, c *Client, capability Capability, invoke func(context.Context, ProviderName) (*R, Usage, error)) (*R, time.Duration, error) {
	order := c.registry.Order(capability)
	if len(order) == 0 {
		return nil, 0, &ConfigurationError{Capability: capability}
	}

	var lastErr error
	for i, name := range order {
		var (
			res   *R
			usage Usage
		)
		start := time.Now()
		call := func() (interface{}, error) {
			var err error
			res, usage, err = invoke(ctx, name)
			return nil, err
		}

		var err error
		if cb, ok := c.breakers[name]; ok {
			_, err = cb.Execute(call)
		} else {
			_, err = call()
		}
		latency := time.Since(start)

		c.recorder.Record(ctx, CallRecord{
			Provider:   name,
			Model:      c.registry.Model(name, capability),
			Capability: capability,
			Latency:    latency,
			Usage:      usage,
			Err:        err,
		})
		if err == nil {
			return res, latency, nil
		}

		if len(order) == 1 {
			return nil, latency, err
		}
		lastErr = fmt.Errorf("%s %s: %w", name, capability, err)
		if i < len(order)-1 {
			c.logger.WarnContext(ctx, "provider failed, falling back",
				"provider", name, "next", order[i+1], "capability", capability, "error", err)
		}
	}
	return nil, 0, lastErr
}
