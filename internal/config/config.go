// Package config provides configuration loading for triaged.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables, with hardcoded defaults for everything else.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete triaged configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Store         StoreConfig         `koanf:"store"`
	Embedding     EmbeddingConfig     `koanf:"embedding"`
	Generator     GeneratorConfig     `koanf:"generator"`
	Triage        TriageConfig        `koanf:"triage"`
	Observability ObservabilityConfig `koanf:"observability"`
	Log           LogConfig           `koanf:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// StoreConfig holds knowledge store configuration.
type StoreConfig struct {
	// Provider selects the store backend: "chromem" (embedded,
	// persistent) or "memory" (volatile, lexical matching, no
	// embedder needed).
	Provider   string `koanf:"provider"`
	Path       string `koanf:"path"`
	Collection string `koanf:"collection"`
	Compress   bool   `koanf:"compress"`
	VectorSize int    `koanf:"vector_size"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	// Provider selects the embedder: "fastembed" (local ONNX) or
	// "openai" (any OpenAI-compatible endpoint, e.g. TEI).
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   Secret `koanf:"api_key"`
	CacheDir string `koanf:"cache_dir"`
}

// GeneratorConfig holds resolution generator configuration.
type GeneratorConfig struct {
	// Mode selects the generator: "rules" (built-in keyword
	// templates) or "llm" (OpenAI-compatible completion endpoint).
	Mode        string  `koanf:"mode"`
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      Secret  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

// TriageConfig holds resolution engine tuning.
type TriageConfig struct {
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`
}

// ObservabilityConfig holds tracing and metrics configuration.
type ObservabilityConfig struct {
	ServiceName     string `koanf:"service_name"`
	EnableTelemetry bool   `koanf:"enable_telemetry"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Level is a zap level string: debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" (production) or "console" (development).
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8700
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Store.Provider == "" {
		cfg.Store.Provider = "chromem"
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = "incident_resolutions"
	}
	if cfg.Store.VectorSize == 0 {
		cfg.Store.VectorSize = 384 // bge-small-en-v1.5 dimensions
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "fastembed"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "BAAI/bge-small-en-v1.5"
	}

	if cfg.Generator.Mode == "" {
		cfg.Generator.Mode = "rules"
	}

	if cfg.Triage.ConfidenceThreshold == 0 {
		cfg.Triage.ConfidenceThreshold = 0.70
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "triaged"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Store.Provider {
	case "chromem", "memory":
	default:
		return fmt.Errorf("unknown store provider: %q (must be chromem or memory)", c.Store.Provider)
	}
	if c.Store.VectorSize <= 0 {
		return fmt.Errorf("invalid vector size: %d", c.Store.VectorSize)
	}

	switch c.Embedding.Provider {
	case "fastembed", "openai":
	default:
		return fmt.Errorf("unknown embedding provider: %q (must be fastembed or openai)", c.Embedding.Provider)
	}
	if c.Embedding.Provider == "openai" && c.Embedding.BaseURL == "" {
		return errors.New("embedding base_url required for openai provider")
	}

	switch c.Generator.Mode {
	case "rules", "llm":
	default:
		return fmt.Errorf("unknown generator mode: %q (must be rules or llm)", c.Generator.Mode)
	}
	if c.Generator.Mode == "llm" {
		if c.Generator.BaseURL == "" {
			return errors.New("generator base_url required for llm mode")
		}
		if c.Generator.Model == "" {
			return errors.New("generator model required for llm mode")
		}
	}

	if c.Triage.ConfidenceThreshold <= 0 || c.Triage.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1], got %v", c.Triage.ConfidenceThreshold)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q (must be json or console)", c.Log.Format)
	}

	return nil
}
