package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ProviderEnv holds the credentials and model identifiers of one AI provider.
type ProviderEnv struct {
	APIKey      string
	BaseURL     string
	ChatModel   string
	EmbedModel  string
	VisionModel string
}

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	Port               string
	JWTSecret          string
	IngestSecret       string
	CORSAllowedOrigins []string

	LogLevel string
	LogFile  string

	AIProviderDefault string
	Gemini            ProviderEnv
	OpenAI            ProviderEnv
	Anthropic         ProviderEnv
	Ollama            ProviderEnv

	IngestBatchSize    int
	LockTimeoutMinutes int
	MaxJobAttempts     int
	OCRConcurrency     int
	OCRLanguage        string
	MaxOCRPages        int
	RenderDPI          int
	ChunkTokens        int
	ChunkOverlap       int
	EmbedBatchSize     int
	EmbeddingDim       int

	MaxContextTokens     int
	MatchCount           int
	MaxChunksPerMaterial int
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "coursewise-materials"),

		Port:               getEnv("PORT", "8080"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		IngestSecret:       strings.TrimSpace(getEnv("INGEST_CRON_SECRET", "")),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogFile:  getEnv("LOG_FILE", ""),

		AIProviderDefault: getEnv("AI_PROVIDER_DEFAULT", ""),
		Gemini: ProviderEnv{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			ChatModel:   getEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash"),
			EmbedModel:  getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
			VisionModel: getEnv("GEMINI_VISION_MODEL", "gemini-1.5-flash"),
		},
		OpenAI: ProviderEnv{
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			ChatModel:   getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbedModel:  getEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
			VisionModel: getEnv("OPENAI_VISION_MODEL", "gpt-4o-mini"),
		},
		Anthropic: ProviderEnv{
			APIKey:      getEnv("ANTHROPIC_API_KEY", ""),
			ChatModel:   getEnv("ANTHROPIC_CHAT_MODEL", "claude-3-5-haiku-latest"),
			VisionModel: getEnv("ANTHROPIC_VISION_MODEL", "claude-3-5-sonnet-latest"),
		},
		Ollama: ProviderEnv{
			BaseURL:     getEnv("OLLAMA_HOST", ""),
			ChatModel:   getEnv("OLLAMA_CHAT_MODEL", ""),
			EmbedModel:  getEnv("OLLAMA_EMBED_MODEL", ""),
			VisionModel: getEnv("OLLAMA_VISION_MODEL", ""),
		},

		IngestBatchSize:    getEnvInt("INGEST_BATCH_SIZE", 5),
		LockTimeoutMinutes: getEnvInt("INGEST_LOCK_TIMEOUT_MINUTES", 15),
		MaxJobAttempts:     getEnvInt("MAX_JOB_ATTEMPTS", 5),
		OCRConcurrency:     getEnvInt("OCR_PAGE_CONCURRENCY", 3),
		OCRLanguage:        getEnv("OCR_LANGUAGE", "eng"),
		MaxOCRPages:        getEnvInt("MAX_OCR_PAGES", 30),
		RenderDPI:          getEnvInt("PDF_RENDER_DPI", 200),
		ChunkTokens:        getEnvInt("CHUNK_TOKEN_SIZE", 500),
		ChunkOverlap:       getEnvInt("CHUNK_TOKEN_OVERLAP", 50),
		EmbedBatchSize:     getEnvInt("EMBED_BATCH_SIZE", 16),
		EmbeddingDim:       getEnvInt("EMBEDDING_DIM", 1536),

		MaxContextTokens:     getEnvInt("RAG_MAX_CONTEXT_TOKENS", 2500),
		MatchCount:           getEnvInt("RAG_MATCH_COUNT", 12),
		MaxChunksPerMaterial: getEnvInt("RAG_MAX_CHUNKS_PER_MATERIAL", 4),
	}
}

// Validate reports settings the process cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL not set"))
	}
	if c.EmbeddingDim <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIM must be positive"))
	}
	if c.ChunkTokens <= 0 {
		errs = append(errs, errors.New("CHUNK_TOKEN_SIZE must be positive"))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(getEnv(key, ""))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("environment value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvList(key string, def []string) []string {
	v := getEnv(key, "")
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
