package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"docchat/internal/errs"
)

// Provider names accepted in PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

type Config struct {
	ServerAddr string
	PgConn     string

	// Provider selects the embedding/generation backend.
	Provider     string
	GeminiAPIKey string
	OpenAIAPIKey string
	OpenAIBase   string

	// EmbedModel and ChatModel are optional; each provider fills its own
	// defaults when they are empty.
	EmbedModel string
	ChatModel  string
	EmbedDim   int

	// TopK is the number of chunks retrieved per question.
	TopK int

	// ChunkSize/ChunkOverlap are in words. ChunkSize 0 stores a single
	// truncated embedding per document.
	ChunkSize    int
	ChunkOverlap int

	// RetryCooldown and RetryMaxAttempts parameterize the rate-limit
	// retry wrapper.
	RetryCooldown    time.Duration
	RetryMaxAttempts int

	LogLevel string
}

func Load() *Config {
	return &Config{
		ServerAddr:       getenv("SERVER_ADDR", ":8080"),
		PgConn:           getenv("PG_CONN", "host=localhost port=5432 user=postgres password=postgres dbname=docchat sslmode=disable"),
		Provider:         getenv("PROVIDER", ProviderGemini),
		GeminiAPIKey:     getenv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:     getenv("OPENAI_API_KEY", "not-needed"),
		OpenAIBase:       getenv("OPENAI_BASE_URL", "http://localhost:1234/v1"),
		EmbedModel:       getenv("EMBED_MODEL", ""),
		ChatModel:        getenv("CHAT_MODEL", ""),
		EmbedDim:         getenvInt("EMBED_DIM", 768),
		TopK:             getenvInt("TOP_K", 3),
		ChunkSize:        getenvInt("CHUNK_SIZE", 0),
		ChunkOverlap:     getenvInt("CHUNK_OVERLAP", 40),
		RetryCooldown:    getenvDuration("RETRY_COOLDOWN", 31500*time.Millisecond),
		RetryMaxAttempts: getenvInt("RETRY_MAX_ATTEMPTS", 2),
		LogLevel:         getenv("LOG_LEVEL", "info"),
	}
}

// Validate reports missing or nonsensical configuration before any
// client is constructed.
func (c *Config) Validate() error {
	if c.PgConn == "" {
		return errs.New(errs.KindConfig, "PG_CONN is required")
	}
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errs.New(errs.KindConfig, "GEMINI_API_KEY is required for the gemini provider")
		}
	case ProviderOpenAI:
		if c.OpenAIBase == "" {
			return errs.New(errs.KindConfig, "OPENAI_BASE_URL is required for the openai provider")
		}
	default:
		return errs.New(errs.KindConfig, fmt.Sprintf("unknown provider %q", c.Provider))
	}
	if c.EmbedDim <= 0 {
		return errs.New(errs.KindConfig, "EMBED_DIM must be positive")
	}
	if c.TopK <= 0 {
		return errs.New(errs.KindConfig, "TOP_K must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return errs.New(errs.KindConfig, "RETRY_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
