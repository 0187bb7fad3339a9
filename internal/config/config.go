package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Reasoning  ReasoningConfig  `yaml:"reasoning" mapstructure:"reasoning"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects the backend holding the model override.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ReasoningConfig picks the reasoning provider and the keys used when a
// request carries none of its own.
type ReasoningConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // openrouter or anthropic
	// Server-side fallback keys. Requests that bring their own keys ignore these.
	Key       string `yaml:"key" mapstructure:"key"`
	BackupKey string `yaml:"backup_key" mapstructure:"backup_key"`
	SearchKey string `yaml:"search_key" mapstructure:"search_key"`
	// Breaker settings for the shared provider connection.
	BreakerThreshold   int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSec int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
	RetryAttempts      int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// OpenRouterConfig holds OpenRouter settings.
type OpenRouterConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	DefaultModel   string  `yaml:"default_model" mapstructure:"default_model"`
	ExtractorModel string  `yaml:"extractor_model" mapstructure:"extractor_model"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxToolRounds  int     `yaml:"max_tool_rounds" mapstructure:"max_tool_rounds"`
	Referer        string  `yaml:"referer" mapstructure:"referer"`
	Title          string  `yaml:"title" mapstructure:"title"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// JinaConfig holds Jina search and reader settings.
type JinaConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	SearchRPS     float64 `yaml:"search_rps" mapstructure:"search_rps"`
	MaxPageChars  int     `yaml:"max_page_chars" mapstructure:"max_page_chars"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
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
	v.SetEnvPrefix("ACADEMIC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "academic.db")
	v.SetDefault("reasoning.provider", "openrouter")
	v.SetDefault("reasoning.key", "")
	v.SetDefault("reasoning.backup_key", "")
	v.SetDefault("reasoning.search_key", "")
	v.SetDefault("reasoning.breaker_threshold", 5)
	v.SetDefault("reasoning.breaker_cooldown_secs", 30)
	v.SetDefault("reasoning.retry_attempts", 2)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.default_model", "mistralai/devstral-2512:free")
	v.SetDefault("openrouter.extractor_model", "meta-llama/llama-3.3-70b-instruct:free")
	v.SetDefault("openrouter.temperature", 0.1)
	v.SetDefault("openrouter.max_tokens", 4096)
	v.SetDefault("openrouter.max_tool_rounds", 3)
	v.SetDefault("openrouter.referer", "")
	v.SetDefault("openrouter.title", "Academic CRS")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0.1)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.search_rps", 2)
	v.SetDefault("jina.max_page_chars", 8000)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cors_origins", []string{"http://localhost:5173", "http://127.0.0.1:5173"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command needs before it runs.
func (c *Config) Validate(command string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite", "postgres", "file":
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be sqlite, postgres or file", c.Store.Driver))
	}

	switch command {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
		}
		problems = append(problems, c.reasoningProblems()...)
	case "extract", "stage", "qa":
		problems = append(problems, c.reasoningProblems()...)
		if strings.TrimSpace(c.Reasoning.Key) == "" && strings.TrimSpace(c.Reasoning.BackupKey) == "" {
			problems = append(problems, "reasoning.key or reasoning.backup_key is required")
		}
	case "model", "validate":
	default:
		return eris.Errorf("config: unknown command %q", command)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) reasoningProblems() []string {
	var problems []string
	switch c.Reasoning.Provider {
	case "openrouter":
		if c.OpenRouter.DefaultModel == "" {
			problems = append(problems, "openrouter.default_model is required")
		}
		if c.OpenRouter.MaxToolRounds < 0 {
			problems = append(problems, "openrouter.max_tool_rounds must not be negative")
		}
	case "anthropic":
		if c.Anthropic.Model == "" {
			problems = append(problems, "anthropic.model is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("reasoning.provider %q must be openrouter or anthropic", c.Reasoning.Provider))
	}
	return problems
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
