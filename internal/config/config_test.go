package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err, "a missing config file should fall back to defaults")

	assert.Equal(t, "./badger_data", cfg.BadgerDBPath)
	assert.False(t, cfg.BadgerInMemory)
	assert.Equal(t, 5*time.Minute, cfg.BadgerGCInterval)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.TelegramBotToken)
	assert.Equal(t, 30, cfg.DefaultValidityMinutes)
	assert.Equal(t, 10080, cfg.MaxValidityMinutes)
	assert.Equal(t, 6, cfg.ShortCodeLength)
	assert.Equal(t, 10, cfg.ShortCodeMaxAttempts)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`
BADGERDB_PATH: /var/lib/clicktracker
BASE_URL: https://sho.rt/
LOG_LEVEL: debug
DEFAULT_VALIDITY_MINUTES: 60
BADGER_GC_INTERVAL: 1m
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), content, 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/clicktracker", cfg.BadgerDBPath)
	assert.Equal(t, "https://sho.rt", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 60, cfg.DefaultValidityMinutes)
	assert.Equal(t, time.Minute, cfg.BadgerGCInterval)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("SERVER_ADDRESS: \":9000\"\n"), 0o600))

	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("BADGER_IN_MEMORY", "true")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.ServerAddress)
	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.True(t, cfg.BadgerInMemory)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("BASE_URL: [unclosed\n"), 0o600))

	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		BadgerDBPath:           "./data",
		ServerAddress:          ":8080",
		BaseURL:                "http://localhost:8080",
		LogLevel:               "info",
		DefaultValidityMinutes: 30,
		MaxValidityMinutes:     10080,
		ShortCodeLength:        6,
		ShortCodeMaxAttempts:   10,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no db path", func(c *Config) { c.BadgerDBPath = "" }},
		{"no address", func(c *Config) { c.ServerAddress = "" }},
		{"relative base url", func(c *Config) { c.BaseURL = "localhost:8080/x" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero default validity", func(c *Config) { c.DefaultValidityMinutes = 0 }},
		{"negative max validity", func(c *Config) { c.MaxValidityMinutes = -1 }},
		{"default above max", func(c *Config) { c.DefaultValidityMinutes = 20000 }},
		{"short codes too short", func(c *Config) { c.ShortCodeLength = 2 }},
		{"no attempts", func(c *Config) { c.ShortCodeMaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	inMemory := valid
	inMemory.BadgerDBPath = ""
	inMemory.BadgerInMemory = true
	assert.NoError(t, inMemory.Validate(), "in-memory mode needs no path")
}
