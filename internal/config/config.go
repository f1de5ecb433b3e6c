// Package config loads grnsd/grnsw settings from environment
// variables, an optional .env file, and a YAML config file, in that
// precedence order (environment wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all settings for the server and its store.
type Config struct {
	Mode string `yaml:"mode"` // "server" or "embedded" (CLI talking directly to the store)

	Store   StoreConfig   `yaml:"store"`
	API     APIConfig     `yaml:"api"`
	Project ProjectConfig `yaml:"project"`
	Log     LogConfig     `yaml:"log"`
}

// StoreConfig locates the embedded SQLite file.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// APIConfig controls the HTTP surface.
type APIConfig struct {
	ListenAddr      string        `yaml:"listen_addr" mapstructure:"listen_addr"`
	URL             string        `yaml:"url"` // client-side base URL (GRNS_API_URL)
	WriteRatePerSec float64       `yaml:"write_rate_per_sec" mapstructure:"write_rate_per_sec"`
	WriteBurst      int           `yaml:"write_burst" mapstructure:"write_burst"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ProjectConfig holds the default project scope.
type ProjectConfig struct {
	Prefix string `yaml:"prefix"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the baseline configuration used before file/env
// overrides are applied.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Mode: "server",
		Store: StoreConfig{
			Path: filepath.Join(homeDir, ".grns", "grns.db"),
		},
		API: APIConfig{
			ListenAddr:      ":8420",
			URL:             "http://localhost:8420",
			WriteRatePerSec: 50,
			WriteBurst:      20,
			ShutdownTimeout: 10 * time.Second,
		},
		Project: ProjectConfig{
			Prefix: "gr",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds a Config from (in increasing precedence) built-in
// defaults, an optional YAML file at path (or discovered in standard
// locations), and environment variables (GRNS_*).
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("store", cfg.Store)
	v.SetDefault("api", cfg.API)
	v.SetDefault("project", cfg.Project)
	v.SetDefault("log", cfg.Log)

	v.SetEnvPrefix("GRNS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".grns")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".grns"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}
	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".grns", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		_ = godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides layers the three documented environment variables
// on top of whatever viper resolved, so GRNS_DB/GRNS_API_URL/GRNS_PREFIX
// always win even if AutomaticEnv's key-mapping didn't line up with a
// nested struct field.
func applyEnvOverrides(cfg *Config) {
	if db := os.Getenv("GRNS_DB"); db != "" {
		cfg.Store.Path = db
	}
	if url := os.Getenv("GRNS_API_URL"); url != "" {
		cfg.API.URL = url
	}
	if prefix := os.Getenv("GRNS_PREFIX"); prefix != "" {
		cfg.Project.Prefix = prefix
	}
	if addr := os.Getenv("GRNS_LISTEN_ADDR"); addr != "" {
		cfg.API.ListenAddr = addr
	}
	if level := os.Getenv("GRNS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}
