// Package config loads the application configuration from an optional YAML
// file, the environment and command-line flags, in increasing precedence.
//
// Environment variables are the upper-cased key with dots replaced by
// underscores: telegram.bot_token is TELEGRAM_BOT_TOKEN, gemini.api_key is
// GEMINI_API_KEY.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/inboxrelay/internal/instrumentation"
)

// DefaultFileName is searched for in the working directory and ./configs.
const DefaultFileName = "inboxrelay"

// Config is the root configuration.
type Config struct {
	Gmail    GmailConfig    `mapstructure:"gmail"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Approval ApprovalConfig `mapstructure:"approval"`
	Cursor   CursorConfig   `mapstructure:"cursor"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// GmailConfig selects the OAuth client, token and inbox query.
type GmailConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Account      string `mapstructure:"account"`
	TokenDir     string `mapstructure:"token_dir"`
	Query        string `mapstructure:"query"`
	MaxMessages  int64  `mapstructure:"max_messages"`
}

// TelegramConfig configures the bot.
type TelegramConfig struct {
	BotToken          string        `mapstructure:"bot_token"`
	ChatID            string        `mapstructure:"chat_id"`
	BaseURL           string        `mapstructure:"base_url"`
	MessagesPerSecond float64       `mapstructure:"messages_per_second"`
	PollWait          time.Duration `mapstructure:"poll_wait"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	ConflictBackoff   time.Duration `mapstructure:"conflict_backoff"`
	ErrorBackoff      time.Duration `mapstructure:"error_backoff"`
}

// GeminiConfig configures the AI summarizer.
type GeminiConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	Model           string        `mapstructure:"model"`
	Language        string        `mapstructure:"language"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerOpenFor  time.Duration `mapstructure:"breaker_open_for"`
}

// WorkerConfig configures the mailbox cycle.
type WorkerConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	DownloadDir string        `mapstructure:"download_dir"`
	Suffix      string        `mapstructure:"suffix"`
}

// ApprovalConfig configures request expiry.
type ApprovalConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CursorConfig selects where the poll cursor is kept.
type CursorConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Key           string `mapstructure:"key"`
}

// MetricsConfig configures telemetry and the metrics server.
type MetricsConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	Addr              string  `mapstructure:"addr"`
	Exporter          string  `mapstructure:"exporter"`
	TracingExporter   string  `mapstructure:"tracing_exporter"`
	OTLPEndpoint      string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure      bool    `mapstructure:"otlp_insecure"`
	TraceSamplingRate float64 `mapstructure:"trace_sampling_rate"`
	AuditIncludePII   bool    `mapstructure:"audit_include_pii"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Cursor backends.
const (
	CursorMemory = "memory"
	CursorRedis  = "redis"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log.level",
	"log-format":     "log.format",
	"account":        "gmail.account",
	"download-dir":   "worker.download_dir",
	"metrics-addr":   "metrics.addr",
	"metrics":        "metrics.enabled",
	"cursor-backend": "cursor.backend",
}

// Load reads the configuration. file names an explicit config file; when empty
// DefaultFileName is looked up and its absence is not an error. Flags present
// in flags override every other source.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(DefaultFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can fill it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("gmail.client_id", "")
	v.SetDefault("gmail.client_secret", "")
	v.SetDefault("gmail.account", "default")
	v.SetDefault("gmail.token_dir", "")
	v.SetDefault("gmail.query", "is:unread in:inbox")
	v.SetDefault("gmail.max_messages", 10)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.messages_per_second", 1.0)
	v.SetDefault("telegram.poll_wait", 30*time.Second)
	v.SetDefault("telegram.poll_interval", 1*time.Second)
	v.SetDefault("telegram.conflict_backoff", 10*time.Second)
	v.SetDefault("telegram.error_backoff", 5*time.Second)

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-flash-latest")
	v.SetDefault("gemini.language", "English")
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("gemini.breaker_failures", 5)
	v.SetDefault("gemini.breaker_open_for", 30*time.Second)

	v.SetDefault("worker.interval", 30*time.Second)
	v.SetDefault("worker.download_dir", "downloads")
	v.SetDefault("worker.suffix", "_corrected")

	v.SetDefault("approval.timeout", 300*time.Second)
	v.SetDefault("approval.sweep_interval", 60*time.Second)

	v.SetDefault("cursor.backend", CursorMemory)
	v.SetDefault("cursor.redis_addr", "localhost:6379")
	v.SetDefault("cursor.redis_password", "")
	v.SetDefault("cursor.redis_db", 0)
	v.SetDefault("cursor.key", "inboxrelay:telegram:cursor")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.exporter", instrumentation.ExporterPrometheus)
	v.SetDefault("metrics.tracing_exporter", instrumentation.ExporterNone)
	v.SetDefault("metrics.otlp_endpoint", "")
	v.SetDefault("metrics.otlp_insecure", false)
	v.SetDefault("metrics.trace_sampling_rate", 0.1)
	v.SetDefault("metrics.audit_include_pii", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports every setting the run command cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("gemini.api_key (GEMINI_API_KEY) is required"))
	}
	if c.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token (TELEGRAM_BOT_TOKEN) is required"))
	}
	if c.Telegram.ChatID == "" {
		errs = append(errs, errors.New("telegram.chat_id (TELEGRAM_CHAT_ID) is required"))
	}
	if err := c.ValidateAuth(); err != nil {
		errs = append(errs, err)
	}
	switch c.Cursor.Backend {
	case CursorMemory:
	case CursorRedis:
		if c.Cursor.RedisAddr == "" {
			errs = append(errs, errors.New("cursor.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cursor.backend must be %q or %q, got %q", CursorMemory, CursorRedis, c.Cursor.Backend))
	}
	if c.Approval.Timeout <= 0 {
		errs = append(errs, errors.New("approval.timeout must be positive"))
	}
	if c.Approval.SweepInterval <= 0 {
		errs = append(errs, errors.New("approval.sweep_interval must be positive"))
	}
	if c.Metrics.Enabled {
		ic := c.Instrumentation("")
		if err := ic.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateAuth reports the settings the auth command needs.
func (c *Config) ValidateAuth() error {
	if c.Gmail.ClientID == "" {
		return errors.New("gmail.client_id (GMAIL_CLIENT_ID) is required")
	}
	return nil
}

// Instrumentation returns the telemetry configuration.
func (c *Config) Instrumentation(version string) instrumentation.Config {
	ic := instrumentation.DefaultConfig()
	if version != "" {
		ic.ServiceVersion = version
	}
	ic.Enabled = c.Metrics.Enabled
	ic.MetricsExporter = c.Metrics.Exporter
	ic.TracingExporter = c.Metrics.TracingExporter
	ic.OTLPEndpoint = c.Metrics.OTLPEndpoint
	ic.OTLPInsecure = c.Metrics.OTLPInsecure
	ic.TraceSamplingRate = c.Metrics.TraceSamplingRate
	ic.Audit.IncludePII = c.Metrics.AuditIncludePII
	return ic
}
