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
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	DBURL           string        `mapstructure:"DB_URL"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	GithubTokens    []string      `mapstructure:"GITHUB_TOKENS"`
	ReposAPIURL     string        `mapstructure:"REPOS_API_URL"`
	CloneTimeout    time.Duration `mapstructure:"CLONE_TIMEOUT"`
	IngestBudget    time.Duration `mapstructure:"INGEST_BUDGET"`
	JobTimeout      time.Duration `mapstructure:"JOB_TIMEOUT"`
	SweepInterval   time.Duration `mapstructure:"SWEEP_INTERVAL"`
	CleanupInterval time.Duration `mapstructure:"CLEANUP_INTERVAL"`
	WorkerCount     int           `mapstructure:"WORKER_COUNT"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("REPOS_API_URL", "https://repos.ecosyste.ms")
	viper.SetDefault("CLONE_TIMEOUT", "60s")
	viper.SetDefault("INGEST_BUDGET", "5m")
	viper.SetDefault("JOB_TIMEOUT", "300s")
	viper.SetDefault("SWEEP_INTERVAL", "1h")
	viper.SetDefault("CLEANUP_INTERVAL", "1h")
	viper.SetDefault("WORKER_COUNT", 5)

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

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.WorkerCount <= 0 {
		return nil, errors.New("WORKER_COUNT must be positive")
	}

	return &cfg, nil
}
