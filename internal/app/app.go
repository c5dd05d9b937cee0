package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/markdave123-py/Coursewise/internal/config"
	db "github.com/markdave123-py/Coursewise/internal/core/database"
	"github.com/markdave123-py/Coursewise/internal/core/ingestion_engine"
	"github.com/markdave123-py/Coursewise/internal/core/llm"
	objectclient "github.com/markdave123-py/Coursewise/internal/core/object-client"
	"github.com/markdave123-py/Coursewise/internal/core/retrieval"
	"github.com/markdave123-py/Coursewise/internal/core/scheduler"
	"github.com/markdave123-py/Coursewise/internal/services"
)

// App holds the wired components of one process.
type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	AI           *llm.Client
	Scheduler    *scheduler.Scheduler
	Retrieval    *retrieval.Engine
	Materials    *services.MaterialService
	Generation   *services.GenerationService
	Metrics      *prometheus.Registry

	backends []llm.Provider
	cfg      *config.Config
	logger   *slog.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{DBClient: dbClient, cfg: cfg, logger: logger}

	objClient, err := objectclient.NewS3Client(appCtx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.ObjectClient = objClient

	registry := llm.NewProviderRegistry(RegistryConfig(cfg))
	for _, c := range []llm.Capability{llm.CapabilityChat, llm.CapabilityEmbedding, llm.CapabilityVision} {
		if !registry.AnyConfigured(c) {
			logger.Warn("no AI provider configured", "capability", c)
		}
	}
	a.backends, err = llm.NewBackends(appCtx, registry)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("couldn't initialize AI providers: %w", err)
	}

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.AI = llm.NewClient(registry, a.backends,
		llm.WithRecorder(llm.NewPrometheusRecorder(a.Metrics, logger)),
		llm.WithLogger(logger),
	)

	ingCfg := IngestConfig(cfg)
	ocr := ingestion_engine.NewOCRPipeline(
		ingestion_engine.NewTesseractOCR(ingCfg.OCRLanguage),
		ingestion_engine.NewPopplerRasterizer(ingCfg.RenderDPI),
		a.AI, ingCfg, logger,
	)
	processor := ingestion_engine.NewProcessor(
		dbClient, dbClient, objClient,
		ingestion_engine.NewNativeExtractor(logger),
		ocr, a.AI, ingCfg, logger,
	)
	a.Scheduler = scheduler.New(dbClient, dbClient, processor, SchedulerConfig(cfg), logger)
	a.Retrieval = retrieval.NewEngine(a.AI, dbClient, RetrievalConfig(cfg), logger)
	a.Materials = services.NewMaterialService(dbClient, objClient, cfg.BucketName, logger)
	a.Generation = services.NewGenerationService(a.Retrieval, a.AI, logger)

	logger.Info("application wired",
		"chat_providers", registry.Order(llm.CapabilityChat),
		"embedding_providers", registry.Order(llm.CapabilityEmbedding),
		"vision_providers", registry.Order(llm.CapabilityVision))
	return a, nil
}

// Server builds the HTTP server for this app.
func (a *App) Server() *Server {
	return NewServer(a.cfg, a.logger, Routes{
		Materials:    a.Materials,
		Generation:   a.Generation,
		Ingestion:    a.Scheduler,
		Metrics:      a.Metrics,
		JWTSecret:    a.cfg.JWTSecret,
		IngestSecret: a.cfg.IngestSecret,
		CORSOrigins:  a.cfg.CORSAllowedOrigins,
	})
}

func (a *App) Close() {
	for _, b := range a.backends {
		if c, ok := b.(io.Closer); ok {
			_ = c.Close()
		}
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}

// RegistryConfig maps the provider environment onto the AI provider registry.
func RegistryConfig(cfg *config.Config) llm.RegistryConfig {
	settings := func(p config.ProviderEnv) llm.ProviderSettings {
		return llm.ProviderSettings{
			APIKey:      p.APIKey,
			BaseURL:     p.BaseURL,
			ChatModel:   p.ChatModel,
			EmbedModel:  p.EmbedModel,
			VisionModel: p.VisionModel,
		}
	}
	return llm.RegistryConfig{
		Default: cfg.AIProviderDefault,
		Providers: map[llm.ProviderName]llm.ProviderSettings{
			llm.ProviderGemini:    settings(cfg.Gemini),
			llm.ProviderOpenAI:    settings(cfg.OpenAI),
			llm.ProviderAnthropic: settings(cfg.Anthropic),
			llm.ProviderOllama:    settings(cfg.Ollama),
		},
	}
}

func IngestConfig(cfg *config.Config) ingestion_engine.IngestConfig {
	return ingestion_engine.IngestConfig{
		ChunkTokens:    cfg.ChunkTokens,
		ChunkOverlap:   cfg.ChunkOverlap,
		EmbedBatchSize: cfg.EmbedBatchSize,
		EmbeddingDim:   cfg.EmbeddingDim,
		MaxOCRPages:    cfg.MaxOCRPages,
		OCRConcurrency: cfg.OCRConcurrency,
		OCRLanguage:    cfg.OCRLanguage,
		RenderDPI:      cfg.RenderDPI,
		Bucket:         cfg.BucketName,
	}
}

func SchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		BatchSize:   cfg.IngestBatchSize,
		LockTimeout: time.Duration(cfg.LockTimeoutMinutes) * time.Minute,
		MaxAttempts: cfg.MaxJobAttempts,
	}
}

func RetrievalConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		MatchCount:     cfg.MatchCount,
		MaxPerMaterial: cfg.MaxChunksPerMaterial,
		MaxTokens:      cfg.MaxContextTokens,
	}
}
