// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.chaekcheck/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider, model, temperature, embedder
//   - Retrieval: top-k, multi-query expansion, router toggle, citation cap
//   - Session: in-memory store capacity and TTL
//   - Storage: PostgreSQL connection for the pgvector chunk store
//   - Server: listen address, CORS origins
//
// Security: sensitive data (passwords, API keys) is never logged; MarshalJSON masks it.
// Validation: range checks with sentinel errors, checked via errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidExpansions indicates the multi-query expansion count is out of range.
	ErrInvalidExpansions = errors.New("invalid multi-query expansion count")

	// ErrInvalidMaxCitations indicates the citation cap is out of range.
	ErrInvalidMaxCitations = errors.New("invalid max citations")

	// ErrInvalidPreviewLength indicates the citation preview length is out of range.
	ErrInvalidPreviewLength = errors.New("invalid preview length")

	// ErrInvalidSessionCapacity indicates the session store capacity is out of range.
	ErrInvalidSessionCapacity = errors.New("invalid session capacity")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default, but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses 768.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultSessionID is used when a chat request carries no session identifier.
	DefaultSessionID = "default_session"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string  `mapstructure:"provider" json:"provider"` // "googleai" (default), "ollama", "openai"
	ModelName     string  `mapstructure:"model_name" json:"model_name"`
	Temperature   float32 `mapstructure:"temperature" json:"temperature"`
	EmbedderModel string  `mapstructure:"embedder_model" json:"embedder_model"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Retrieval pipeline tuning. These are first-class configuration so that
	// prompt/retrieval experiments do not fork the code path.
	TopK           int  `mapstructure:"top_k" json:"top_k"`
	MultiQuery     bool `mapstructure:"multi_query" json:"multi_query"`
	Expansions     int  `mapstructure:"expansions" json:"expansions"`
	RouterEnabled  bool `mapstructure:"router_enabled" json:"router_enabled"`
	MaxCitations   int  `mapstructure:"max_citations" json:"max_citations"`
	PreviewLength  int  `mapstructure:"preview_length" json:"preview_length"`
	IncludeOrig    bool `mapstructure:"include_original" json:"include_original"`

	// Prompt overrides. Empty means the built-in prompt is used.
	RouterPrompt      string `mapstructure:"router_prompt" json:"router_prompt"`
	ReformulatePrompt string `mapstructure:"reformulate_prompt" json:"reformulate_prompt"`
	AnswerPrompt      string `mapstructure:"answer_prompt" json:"answer_prompt"`

	// Session store bounds
	SessionCapacity int           `mapstructure:"session_capacity" json:"session_capacity"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" json:"session_ttl"`

	// Storage configuration. DevMode swaps PostgreSQL for the in-memory store.
	DevMode          bool   `mapstructure:"dev_mode" json:"dev_mode"`
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Observability (optional OTLP trace export; empty disables)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".chaekcheck")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail-fast before any component is constructed from a bad value.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults. Temperature 0 keeps regulation answers deterministic;
	// routing and reformulation use the same model.
	viper.SetDefault("provider", ProviderGoogleAI)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.0)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// Retrieval defaults
	viper.SetDefault("top_k", 2)
	viper.SetDefault("multi_query", false)
	viper.SetDefault("expansions", 3)
	viper.SetDefault("router_enabled", true)
	viper.SetDefault("max_citations", 4)
	viper.SetDefault("preview_length", 100)
	viper.SetDefault("include_original", true)

	// Session store defaults
	viper.SetDefault("session_capacity", 1024)
	viper.SetDefault("session_ttl", time.Hour)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("dev_mode", false)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "chaekcheck")
	viper.SetDefault("postgres_password", "chaekcheck_dev_password")
	viper.SetDefault("postgres_db_name", "chaekcheck")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("listen_addr", ":8000")
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
}

// bindEnvVariables binds environment variable overrides explicitly.
// API keys are read directly by the Genkit plugins, not via Viper:
// GEMINI_API_KEY for googleai, OPENAI_API_KEY for openai.
// Validation checks their presence based on the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "CHAEKCHECK_PROVIDER")
	mustBind("model_name", "CHAEKCHECK_MODEL_NAME")
	mustBind("embedder_model", "CHAEKCHECK_EMBEDDER_MODEL")
	mustBind("ollama_host", "CHAEKCHECK_OLLAMA_HOST")

	mustBind("top_k", "CHAEKCHECK_TOP_K")
	mustBind("multi_query", "CHAEKCHECK_MULTI_QUERY")
	mustBind("router_enabled", "CHAEKCHECK_ROUTER_ENABLED")

	mustBind("dev_mode", "CHAEKCHECK_DEV_MODE")
	mustBind("postgres_host", "CHAEKCHECK_POSTGRES_HOST")
	mustBind("postgres_port", "CHAEKCHECK_POSTGRES_PORT")
	mustBind("postgres_user", "CHAEKCHECK_POSTGRES_USER")
	mustBind("postgres_password", "CHAEKCHECK_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "CHAEKCHECK_POSTGRES_DB")
	mustBind("postgres_ssl_mode", "CHAEKCHECK_POSTGRES_SSL_MODE")

	mustBind("listen_addr", "CHAEKCHECK_LISTEN_ADDR")
	mustBind("cors_origins", "CHAEKCHECK_CORS_ORIGINS")
	mustBind("otlp_endpoint", "CHAEKCHECK_OTLP_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o-mini".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// PostgresDSN builds the connection string for pgxpool and migrations.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
