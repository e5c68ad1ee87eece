package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/inboxrelay/internal/instrumentation"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxrelay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Gmail.Account)
	assert.Equal(t, "is:unread in:inbox", cfg.Gmail.Query)
	assert.EqualValues(t, 10, cfg.Gmail.MaxMessages)
	assert.Equal(t, "https://api.telegram.org", cfg.Telegram.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Telegram.PollWait)
	assert.Equal(t, 10*time.Second, cfg.Telegram.ConflictBackoff)
	assert.Equal(t, "gemini-flash-latest", cfg.Gemini.Model)
	assert.Equal(t, "English", cfg.Gemini.Language)
	assert.Equal(t, 30*time.Second, cfg.Worker.Interval)
	assert.Equal(t, "_corrected", cfg.Worker.Suffix)
	assert.Equal(t, 300*time.Second, cfg.Approval.Timeout)
	assert.Equal(t, CursorMemory, cfg.Cursor.Backend)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
telegram:
  bot_token: file-token
  chat_id: "42"
  poll_wait: 5s
gemini:
  language: Spanish
worker:
  interval: 2m
cursor:
  backend: redis
  redis_addr: redis:6379
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "file-token", cfg.Telegram.BotToken)
	assert.Equal(t, "42", cfg.Telegram.ChatID)
	assert.Equal(t, 5*time.Second, cfg.Telegram.PollWait)
	assert.Equal(t, "Spanish", cfg.Gemini.Language)
	assert.Equal(t, 2*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, CursorRedis, cfg.Cursor.Backend)
	assert.Equal(t, "redis:6379", cfg.Cursor.RedisAddr)
	// Untouched keys keep their defaults.
	assert.Equal(t, "gemini-flash-latest", cfg.Gemini.Model)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "telegram:\n  bot_token: file-token\n")
	t.Setenv("TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("APPROVAL_TIMEOUT", "45s")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "env-key", cfg.Gemini.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Approval.Timeout)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	flags.String("download-dir", "downloads", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	// Unset flags do not mask defaults.
	assert.Equal(t, "downloads", cfg.Worker.DownloadDir)
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.Gemini.APIKey = "key"
	cfg.Telegram.BotToken = "token"
	cfg.Telegram.ChatID = "1"
	cfg.Gmail.ClientID = "client"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name: "missing credentials are all reported",
			mutate: func(c *Config) {
				c.Gemini.APIKey = ""
				c.Telegram.BotToken = ""
				c.Telegram.ChatID = ""
				c.Gmail.ClientID = ""
			},
			wantErr: []string{"GEMINI_API_KEY", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "GMAIL_CLIENT_ID"},
		},
		{
			name:    "unknown cursor backend",
			mutate:  func(c *Config) { c.Cursor.Backend = "etcd" },
			wantErr: []string{"cursor.backend"},
		},
		{
			name: "redis backend without address",
			mutate: func(c *Config) {
				c.Cursor.Backend = CursorRedis
				c.Cursor.RedisAddr = ""
			},
			wantErr: []string{"cursor.redis_addr"},
		},
		{
			name:    "non-positive approval timeout",
			mutate:  func(c *Config) { c.Approval.Timeout = 0 },
			wantErr: []string{"approval.timeout"},
		},
		{
			name:    "zero sweep interval",
			mutate:  func(c *Config) { c.Approval.SweepInterval = 0 },
			wantErr: []string{"approval.sweep_interval"},
		},
		{
			name:    "negative sweep interval",
			mutate:  func(c *Config) { c.Approval.SweepInterval = -time.Second },
			wantErr: []string{"approval.sweep_interval"},
		},
		{
			name:    "bad exporter",
			mutate:  func(c *Config) { c.Metrics.Exporter = "graphite" },
			wantErr: []string{"invalid metrics exporter"},
		},
		{
			name: "bad exporter ignored when metrics disabled",
			mutate: func(c *Config) {
				c.Metrics.Enabled = false
				c.Metrics.Exporter = "graphite"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestValidateAuth(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateAuth())

	cfg.Gmail.ClientID = "client"
	assert.NoError(t, cfg.ValidateAuth())
}

func TestInstrumentation(t *testing.T) {
	cfg := validConfig(t)
	cfg.Metrics.TracingExporter = instrumentation.ExporterOTLP
	cfg.Metrics.OTLPEndpoint = "collector:4318"
	cfg.Metrics.TraceSamplingRate = 0.5
	cfg.Metrics.AuditIncludePII = true

	ic := cfg.Instrumentation("1.2.3")

	assert.Equal(t, instrumentation.DefaultServiceName, ic.ServiceName)
	assert.Equal(t, "1.2.3", ic.ServiceVersion)
	assert.True(t, ic.Enabled)
	assert.Equal(t, instrumentation.ExporterPrometheus, ic.MetricsExporter)
	assert.Equal(t, instrumentation.ExporterOTLP, ic.TracingExporter)
	assert.Equal(t, "collector:4318", ic.OTLPEndpoint)
	assert.InDelta(t, 0.5, ic.TraceSamplingRate, 1e-9)
	assert.True(t, ic.Audit.IncludePII)
	assert.NoError(t, ic.Validate())
}
