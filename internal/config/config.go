// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`
	DBURL    string `mapstructure:"DB_URL"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	GithubToken   string        `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL  string        `mapstructure:"GITHUB_API_URL"`
	GithubTimeout time.Duration `mapstructure:"GITHUB_TIMEOUT"`

	ScanInterval time.Duration `mapstructure:"SCAN_INTERVAL"`
	CronSecret   string        `mapstructure:"CRON_SECRET"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("GITHUB_TIMEOUT", "10s")
	viper.SetDefault("SCAN_INTERVAL", "0")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_FROM", "GitHub Notifier <notifications@localhost>")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields. The GitHub token is optional: requests go
	// out unauthenticated (and rate-limited harder) without one, matching
	// the upstream API's behavior. SMTP is optional: without it, delivery
	// is disabled but scanning and the ledger still work.
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubTimeout <= 0 {
		return nil, errors.New("GITHUB_TIMEOUT must be a positive duration")
	}

	return &cfg, nil
}
