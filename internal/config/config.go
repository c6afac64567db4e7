package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
	Prompt     PromptConfig     `yaml:"prompt" mapstructure:"prompt"`
	Archive    ArchiveConfig    `yaml:"archive" mapstructure:"archive"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the optional run-history database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PerplexityConfig holds Perplexity API settings for the research stage.
type PerplexityConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Model       string `yaml:"model" mapstructure:"model"`
	MaxTokens   int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPM         int    `yaml:"rpm" mapstructure:"rpm"`
}

// AnthropicConfig holds Anthropic API settings for the email stage.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RPM         int     `yaml:"rpm" mapstructure:"rpm"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// ScheduleConfig configures the worker pool.
type ScheduleConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RetryConfig holds the per-stage retry settings.
type RetryConfig struct {
	Research RetrySettings `yaml:"research" mapstructure:"research"`
	Email    RetrySettings `yaml:"email" mapstructure:"email"`
}

// RetrySettings are raw retry knobs for one stage.
type RetrySettings struct {
	MaxAttempts          int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs     int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs         int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	RateLimitPenaltySecs int `yaml:"rate_limit_penalty_secs" mapstructure:"rate_limit_penalty_secs"`
}

// Build converts the raw knobs into a resilience.RetryConfig.
func (r RetrySettings) Build() resilience.RetryConfig {
	return resilience.FromConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.RateLimitPenaltySecs)
}

// PromptConfig configures prompt templating.
type PromptConfig struct {
	// TemplatePath optionally points at a YAML file overriding the email
	// template.
	TemplatePath string `yaml:"template_path" mapstructure:"template_path"`
}

// ArchiveConfig configures raw response archival.
type ArchiveConfig struct {
	// Dir is the archive root; empty disables archival.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Ceilings returns the per-provider requests-per-minute admission ceilings.
func (c *Config) Ceilings() map[string]int {
	return map[string]int{
		"perplexity": c.Perplexity.RPM,
		"anthropic":  c.Anthropic.RPM,
	}
}

// Validate checks the fields required for the given command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		if c.Perplexity.Key == "" {
			problems = append(problems, "perplexity.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Schedule.Workers < 1 || c.Schedule.Workers > 50 {
			problems = append(problems, "schedule.workers must be between 1 and 50")
		}
	case "regen":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "serve":
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outreach.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("schedule.workers", 5)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("perplexity.max_tokens", 2048)
	v.SetDefault("perplexity.timeout_secs", 120)
	v.SetDefault("perplexity.rpm", 50)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 120)
	v.SetDefault("anthropic.rpm", 50)
	v.SetDefault("anthropic.temperature", 0.7)
	v.SetDefault("retry.research.max_attempts", 3)
	v.SetDefault("retry.research.initial_backoff_ms", 2000)
	v.SetDefault("retry.research.max_backoff_ms", 10000)
	v.SetDefault("retry.research.rate_limit_penalty_secs", 10)
	v.SetDefault("retry.email.max_attempts", 5)
	v.SetDefault("retry.email.initial_backoff_ms", 2000)
	v.SetDefault("retry.email.max_backoff_ms", 10000)
	v.SetDefault("retry.email.rate_limit_penalty_secs", 5)
	v.SetDefault("pricing.research.input", 1.00)
	v.SetDefault("pricing.research.output", 1.00)
	v.SetDefault("pricing.research.per_request", 0.005)
	v.SetDefault("pricing.email.input", 0.80)
	v.SetDefault("pricing.email.output", 4.00)
	v.SetDefault("pricing.email.per_request", 0.0)
	v.SetDefault("archive.dir", "responses")

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
