package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CallRecord describes one backend call.
type CallRecord struct {
	Provider   ProviderName
	Model      string
	Capability Capability
	Latency    time.Duration
	Usage      Usage
	Err        error
}

// Recorder receives a CallRecord after every backend call, successful or not.
type Recorder interface {
	Record(ctx context.Context, rec CallRecord)
}

// PrometheusRecorder exports call latency, outcomes and token usage and logs each call.
type PrometheusRecorder struct {
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
	tokens   *prometheus.CounterVec
	logger   *slog.Logger
}

// NewPrometheusRecorder registers the AI provider metrics on reg.
func NewPrometheusRecorder(reg prometheus.Registerer, logger *slog.Logger) *PrometheusRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ai_provider_latency_seconds",
				Help:    "AI provider response latency in seconds",
				Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"provider", "model", "capability"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_provider_requests_total",
				Help: "Total number of requests to AI providers",
			},
			[]string{"provider", "model", "capability", "status"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_provider_tokens_total",
				Help: "Tokens reported by AI providers",
			},
			[]string{"provider", "model", "kind"},
		),
		logger: logger,
	}
}

func (p *PrometheusRecorder) Record(ctx context.Context, rec CallRecord) {
	provider, model, capability := string(rec.Provider), rec.Model, string(rec.Capability)

	status := "success"
	if rec.Err != nil {
		status = "error"
	}
	p.latency.WithLabelValues(provider, model, capability).Observe(rec.Latency.Seconds())
	p.requests.WithLabelValues(provider, model, capability, status).Inc()

	if rec.Capability == CapabilityEmbedding {
		p.tokens.WithLabelValues(provider, model, "embedding").Add(float64(rec.Usage.PromptTokens))
	} else {
		p.tokens.WithLabelValues(provider, model, "prompt").Add(float64(rec.Usage.PromptTokens))
		p.tokens.WithLabelValues(provider, model, "completion").Add(float64(rec.Usage.CompletionTokens))
	}

	attrs := []any{
		"provider", provider,
		"model", model,
		"capability", capability,
		"duration_ms", rec.Latency.Milliseconds(),
		"prompt_tokens", rec.Usage.PromptTokens,
		"completion_tokens", rec.Usage.CompletionTokens,
	}
	if rec.Err != nil {
		p.logger.WarnContext(ctx, "ai call failed", append(attrs, "error", rec.Err)...)
		return
	}
	p.logger.DebugContext(ctx, "ai call", attrs...)
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, CallRecord) {}
