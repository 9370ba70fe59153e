package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Default values applied when the corresponding environment variable is
// absent. Chunk size is in characters of payload text, not model tokens.
const (
	DefaultModelName       = "gemini-2.5-flash"
	DefaultBackendOrder    = "layout,stream"
	DefaultChunkMaxChars   = 12000
	DefaultWorkers         = 4
	DefaultMaxAttempts     = 4
	DefaultMaxOutputTokens = 8192
)

// Config carries every tunable of the service. It is built once at startup
// and passed explicitly into constructors; nothing reads the environment
// after Load returns.
type Config struct {
	LogLevel string

	// Gemini
	GeminiAPIKey    string
	ModelName       string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32

	// Extraction and chunking
	BackendOrder  []string
	ChunkMaxChars int

	// Structuring calls
	Workers        int
	MaxAttempts    int
	RetryBase      time.Duration
	RequestTimeout time.Duration

	// Reconciliation
	DedupeTolerance decimal.Decimal

	// HTTP service
	HTTPPort       string
	MaxUploadBytes int64
	QueueWorkers   int

	// Optional GCS input source for the CLI batch mode
	GCSBucket string
}

// Load reads the .env file when present, then builds the Config from the
// environment. A missing .env is not an error; production supplies real
// environment variables.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		ModelName:       getEnv("GEMINI_MODEL", DefaultModelName),
		Temperature:     getEnvAsFloat32("GEMINI_TEMPERATURE", 1.0),
		TopP:            getEnvAsFloat32("GEMINI_TOP_P", 0.95),
		MaxOutputTokens: int32(getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", DefaultMaxOutputTokens)),

		BackendOrder:  splitList(getEnv("PDF_BACKEND_ORDER", DefaultBackendOrder)),
		ChunkMaxChars: getEnvAsInt("CHUNK_MAX_CHARS", DefaultChunkMaxChars),

		Workers:        getEnvAsInt("STRUCTURE_WORKERS", DefaultWorkers),
		MaxAttempts:    getEnvAsInt("STRUCTURE_MAX_ATTEMPTS", DefaultMaxAttempts),
		RetryBase:      getEnvAsDuration("STRUCTURE_RETRY_BASE", 500*time.Millisecond),
		RequestTimeout: getEnvAsDuration("STRUCTURE_REQUEST_TIMEOUT", 90*time.Second),

		DedupeTolerance: getEnvAsDecimal("DEDUPE_TOLERANCE", decimal.Zero),

		HTTPPort:       getEnv("PORT", "8080"),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 20*1024*1024)),
		QueueWorkers:   getEnvAsInt("QUEUE_WORKERS", 2),

		GCSBucket: getEnv("STATEMENTS_BUCKET", ""),
	}
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// getEnvAsInt retrieves an environment variable as an integer or returns a fallback.
func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsFloat32 retrieves an environment variable as a float32 or returns a fallback.
func getEnvAsFloat32(key string, fallback float32) float32 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDecimal retrieves an environment variable as a decimal or returns a fallback.
func getEnvAsDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := decimal.NewFromString(valueStr); err == nil {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
