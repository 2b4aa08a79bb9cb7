package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file named by REFLEX_ENV (or .env by default), then
// the matching .secret sidecar if it exists. Variables already present in
// the environment win.
func Load() error {
	envFile := os.Getenv("REFLEX_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	return intEnv("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

// DatabaseURL enables the pgvector memory store when set.
func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

func AnthropicAPIKey() string {
	return os.Getenv("ANTHROPIC_API_KEY")
}

func GeminiAPIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

func CerebrasAPIKey() string {
	return os.Getenv("CEREBRAS_API_KEY")
}

// LLMProvider returns the configured generation provider.
// Valid values: openai, anthropic, gemini, cerebras, mock. Defaults to openai.
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Valid values: openai, mock. Defaults to openai.
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingModel overrides the provider's default model when set.
func EmbeddingModel() string {
	return os.Getenv("EMBEDDING_MODEL")
}

// EmbeddingDimensions asks the provider for shortened vectors. Zero keeps
// the model default.
func EmbeddingDimensions() int {
	return intEnv("EMBEDDING_DIMENSIONS", 0)
}

// LLMAPIKey returns the API key for the configured LLM provider.
func LLMAPIKey() string {
	switch LLMProvider() {
	case "anthropic":
		return AnthropicAPIKey()
	case "gemini":
		return GeminiAPIKey()
	case "cerebras":
		return CerebrasAPIKey()
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

func EmbeddingAPIKey() string {
	switch EmbeddingProvider() {
	case "mock":
		return ""
	default:
		return OpenAIAPIKey()
	}
}

// RateLimitRPS defaults to 100.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst defaults to 20.
func RateLimitBurst() int {
	return intEnv("RATE_LIMIT_BURST", 20)
}

// LLMRateLimit caps model calls per second across all workers. Zero means
// unlimited.
func LLMRateLimit() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("LLM_RPS"), 64)
	if err != nil || rps < 0 {
		return 0
	}
	return rps
}

func LLMTimeout() time.Duration {
	return time.Duration(intEnv("LLM_TIMEOUT_MS", 60000)) * time.Millisecond
}

func LLMMaxRetries() int {
	v, err := strconv.Atoi(os.Getenv("LLM_MAX_RETRIES"))
	if err != nil || v < 0 {
		return 2
	}
	return v
}

// LogLevel returns debug, info, warn or error. Defaults to info.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}

// APIToken is the optional bearer token required on /v1 routes.
func APIToken() string {
	return os.Getenv("API_TOKEN")
}

func EngineMaxConcurrent() int {
	return intEnv("ENGINE_MAX_CONCURRENT", 5)
}

func EngineBatchSize() int {
	return intEnv("ENGINE_BATCH_SIZE", 3)
}

func EngineMaxRetries() int {
	return intEnv("ENGINE_MAX_RETRIES", 3)
}

func EngineTickInterval() time.Duration {
	return time.Duration(intEnv("ENGINE_TICK_MS", 1000)) * time.Millisecond
}

// EngineAutostart starts the scheduler loop at boot. Defaults to true.
func EngineAutostart() bool {
	v, err := strconv.ParseBool(os.Getenv("ENGINE_AUTOSTART"))
	if err != nil {
		return true
	}
	return v
}

// AgentName is stamped on every thought the engine processes.
func AgentName() string {
	if name := os.Getenv("AGENT_NAME"); name != "" {
		return name
	}
	return "reflex"
}

// SnapshotDir is the badger directory. Empty keeps snapshots in memory.
func SnapshotDir() string {
	return os.Getenv("SNAPSHOT_DIR")
}

func PersistDebounce() time.Duration {
	return time.Duration(intEnv("PERSIST_DEBOUNCE_MS", 500)) * time.Millisecond
}

// RulesFile is an optional YAML rules file watched for changes.
func RulesFile() string {
	return os.Getenv("RULES_FILE")
}

func intEnv(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
