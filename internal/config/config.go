package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Ollama    OllamaConfig    `yaml:"ollama" mapstructure:"ollama"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank" mapstructure:"rerank"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the status store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OllamaConfig holds local Ollama settings.
type OllamaConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RetrievalConfig configures the vector store queries.
type RetrievalConfig struct {
	BaseURL            string `yaml:"base_url" mapstructure:"base_url"`
	SchemaCollection   string `yaml:"schema_collection" mapstructure:"schema_collection"`
	GlossaryCollection string `yaml:"glossary_collection" mapstructure:"glossary_collection"`
	TopK               int    `yaml:"top_k" mapstructure:"top_k"`
}

// RerankConfig configures the optional reranking pass.
type RerankConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	JinaKey      string  `yaml:"jina_key" mapstructure:"jina_key"`
	Model        string  `yaml:"model" mapstructure:"model"`
	TopN         int     `yaml:"top_n" mapstructure:"top_n"`
	MinRelevance float64 `yaml:"min_relevance" mapstructure:"min_relevance"`
}

// PipelineConfig configures stage execution.
type PipelineConfig struct {
	DefaultBackend string `yaml:"default_backend" mapstructure:"default_backend"`
	PolicyPath     string `yaml:"policy_path" mapstructure:"policy_path"`
}

// ServerConfig configures the status/polling server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ASKDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "status.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "my-phi4:latest")
	v.SetDefault("ollama.timeout_secs", 720)
	v.SetDefault("gemini.model", "gemini-2.5-flash-lite-preview-06-17")
	v.SetDefault("gemini.rate_limit", 2.0)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("retrieval.base_url", "http://localhost:8000")
	v.SetDefault("retrieval.schema_collection", "schema_metadata")
	v.SetDefault("retrieval.glossary_collection", "business_terms")
	v.SetDefault("retrieval.top_k", 7)
	v.SetDefault("rerank.enabled", false)
	v.SetDefault("rerank.top_n", 5)
	v.SetDefault("rerank.min_relevance", 0.0005)
	v.SetDefault("pipeline.default_backend", "ollama")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
