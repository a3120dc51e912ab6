package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := defaultConfig()

	assert.Equal(t, 8700, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "chromem", cfg.Store.Provider)
	assert.Equal(t, "incident_resolutions", cfg.Store.Collection)
	assert.Equal(t, 384, cfg.Store.VectorSize)
	assert.Equal(t, "fastembed", cfg.Embedding.Provider)
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embedding.Model)
	assert.Equal(t, "rules", cfg.Generator.Mode)
	assert.Equal(t, 0.70, cfg.Triage.ConfidenceThreshold)
	assert.Equal(t, "triaged", cfg.Observability.ServiceName)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9000
	cfg.Store.Provider = "memory"
	cfg.Triage.ConfidenceThreshold = 0.85
	applyDefaults(cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, 0.85, cfg.Triage.ConfidenceThreshold)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid server port",
		},
		{
			name:    "port zero",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid server port",
		},
		{
			name:    "negative shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = -time.Second },
			wantErr: "shutdown timeout must be positive",
		},
		{
			name:    "unknown store provider",
			mutate:  func(c *Config) { c.Store.Provider = "qdrant" },
			wantErr: "unknown store provider",
		},
		{
			name:    "unknown embedding provider",
			mutate:  func(c *Config) { c.Embedding.Provider = "cohere" },
			wantErr: "unknown embedding provider",
		},
		{
			name: "openai embedder requires base url",
			mutate: func(c *Config) {
				c.Embedding.Provider = "openai"
				c.Embedding.BaseURL = ""
			},
			wantErr: "embedding base_url required",
		},
		{
			name:    "unknown generator mode",
			mutate:  func(c *Config) { c.Generator.Mode = "template" },
			wantErr: "unknown generator mode",
		},
		{
			name: "llm mode requires base url",
			mutate: func(c *Config) {
				c.Generator.Mode = "llm"
				c.Generator.Model = "qwen2.5"
			},
			wantErr: "generator base_url required",
		},
		{
			name: "llm mode requires model",
			mutate: func(c *Config) {
				c.Generator.Mode = "llm"
				c.Generator.BaseURL = "http://localhost:8000/v1"
			},
			wantErr: "generator model required",
		},
		{
			name:    "threshold above one",
			mutate:  func(c *Config) { c.Triage.ConfidenceThreshold = 1.5 },
			wantErr: "confidence threshold",
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Log.Format = "logfmt" },
			wantErr: "unknown log format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestSecret_Redaction(t *testing.T) {
	s := Secret("sk-very-secret")
	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "Secret([REDACTED])", s.GoString())
	assert.Equal(t, "sk-very-secret", s.Value())
	assert.True(t, s.IsSet())

	data, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
	data, err = empty.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))
}
