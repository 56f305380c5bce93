package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// Values are read by viper from a config file or environment variables.
type Config struct {
	BadgerDBPath     string        `mapstructure:"BADGERDB_PATH"`
	BadgerInMemory   bool          `mapstructure:"BADGER_IN_MEMORY"`
	BadgerGCInterval time.Duration `mapstructure:"BADGER_GC_INTERVAL"`

	ServerAddress string `mapstructure:"SERVER_ADDRESS"`
	BaseURL       string `mapstructure:"BASE_URL"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`

	// TelegramBotToken is optional; the bot front-end only starts when set.
	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`

	DefaultValidityMinutes int `mapstructure:"DEFAULT_VALIDITY_MINUTES"`
	MaxValidityMinutes     int `mapstructure:"MAX_VALIDITY_MINUTES"`
	ShortCodeLength        int `mapstructure:"SHORT_CODE_LENGTH"`
	ShortCodeMaxAttempts   int `mapstructure:"SHORT_CODE_MAX_ATTEMPTS"`
}

var defaults = map[string]any{
	"BADGERDB_PATH":            "./badger_data",
	"BADGER_IN_MEMORY":         false,
	"BADGER_GC_INTERVAL":       "5m",
	"SERVER_ADDRESS":           ":8080",
	"BASE_URL":                 "http://localhost:8080",
	"LOG_LEVEL":                "info",
	"TELEGRAM_BOT_TOKEN":       "",
	"DEFAULT_VALIDITY_MINUTES": 30,
	"MAX_VALIDITY_MINUTES":     10080,
	"SHORT_CODE_LENGTH":        6,
	"SHORT_CODE_MAX_ATTEMPTS":  10,
}

// LoadConfig reads configuration from path/config.yaml and the environment.
// Environment variables win over the file; a missing file is not an error.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Defaults also register every key, which AutomaticEnv needs for Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return config, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if !c.BadgerInMemory && c.BadgerDBPath == "" {
		return errors.New("BADGERDB_PATH is not set")
	}
	if c.ServerAddress == "" {
		return errors.New("SERVER_ADDRESS is not set")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL %q must be an absolute URL", c.BaseURL)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.DefaultValidityMinutes <= 0 {
		return errors.New("DEFAULT_VALIDITY_MINUTES must be positive")
	}
	if c.MaxValidityMinutes < 0 {
		return errors.New("MAX_VALIDITY_MINUTES must not be negative")
	}
	if c.MaxValidityMinutes > 0 && c.DefaultValidityMinutes > c.MaxValidityMinutes {
		return errors.New("DEFAULT_VALIDITY_MINUTES exceeds MAX_VALIDITY_MINUTES")
	}
	if c.ShortCodeLength < 4 {
		return errors.New("SHORT_CODE_LENGTH must be at least 4")
	}
	if c.ShortCodeMaxAttempts <= 0 {
		return errors.New("SHORT_CODE_MAX_ATTEMPTS must be positive")
	}
	return nil
}
