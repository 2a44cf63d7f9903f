package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:    "gemini",
			Model:       "gemini-2.0-flash",
			Timeout:     60 * time.Second,
			APIKey:      "test-key",
			MaxRetries:  3,
			Temperature: 0.3,
		},
		Pipeline: PipelineConfig{
			WorkDir:             "./workspace",
			SectionGrowthLimit:  0.30,
			MaxNewBullets:       5,
			MaxBulletsPerEntry:  8,
			StageRetryLimit:     1,
			FuzzyMatchThreshold: 0.72,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: "8080",
		},
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
			MaxFileSize:      1024,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		expectErr bool
	}{
		{
			name:      "valid config",
			mutate:    func(c *Config) {},
			expectErr: false,
		},
		{
			name:      "zero AI timeout",
			mutate:    func(c *Config) { c.AI.Timeout = 0 },
			expectErr: true,
		},
		{
			name:      "missing port",
			mutate:    func(c *Config) { c.Server.Port = "" },
			expectErr: true,
		},
		{
			name:      "growth limit of one",
			mutate:    func(c *Config) { c.Pipeline.SectionGrowthLimit = 1.0 },
			expectErr: true,
		},
		{
			name:      "negative new bullet cap",
			mutate:    func(c *Config) { c.Pipeline.MaxNewBullets = -1 },
			expectErr: true,
		},
		{
			name:      "negative retry budget",
			mutate:    func(c *Config) { c.Pipeline.StageRetryLimit = -1 },
			expectErr: true,
		},
		{
			name:      "fuzzy threshold above one",
			mutate:    func(c *Config) { c.Pipeline.FuzzyMatchThreshold = 1.5 },
			expectErr: true,
		},
		{
			name:      "missing work dir",
			mutate:    func(c *Config) { c.Pipeline.WorkDir = "" },
			expectErr: true,
		},
		{
			name:      "unsupported default format",
			mutate:    func(c *Config) { c.App.DefaultFormat = "xml" },
			expectErr: true,
		},
		{
			name: "TLS enabled without cert",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.KeyFile = "key.pem"
			},
			expectErr: true,
		},
		{
			name: "TLS enabled with cert and key files",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.CertFile = "cert.pem"
				c.Server.TLS.KeyFile = "key.pem"
			},
			expectErr: false,
		},
		{
			name: "TLS with both cert file and content",
			mutate: func(c *Config) {
				c.Server.TLS.Enabled = true
				c.Server.TLS.CertFile = "cert.pem"
				c.Server.TLS.CertContent = "PEM"
				c.Server.TLS.KeyFile = "key.pem"
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestOperationConfigFallbacks(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Summarize = OperationAIConfig{Model: "gemini-2.5-pro"}

	opCfg := cfg.GetSummarizeConfig()

	if opCfg.Model != "gemini-2.5-pro" {
		t.Errorf("expected operation model override, got %s", opCfg.Model)
	}
	if opCfg.Provider != "gemini" {
		t.Errorf("expected provider fallback to global, got %s", opCfg.Provider)
	}
	if opCfg.APIKey != "test-key" {
		t.Errorf("expected API key fallback to global, got %s", opCfg.APIKey)
	}
	if opCfg.Timeout == nil || *opCfg.Timeout != 60*time.Second {
		t.Errorf("expected timeout fallback to global, got %v", opCfg.Timeout)
	}
	if opCfg.MaxRetries == nil || *opCfg.MaxRetries != 3 {
		t.Errorf("expected maxRetries fallback to global, got %v", opCfg.MaxRetries)
	}
	if opCfg.Temperature == nil || *opCfg.Temperature != 0.3 {
		t.Errorf("expected temperature fallback to global, got %v", opCfg.Temperature)
	}
}

func TestProposeConfigIndependentOverride(t *testing.T) {
	cfg := validConfig()
	higher := float32(0.7)
	cfg.AI.Propose = OperationAIConfig{Temperature: &higher}

	summarize := cfg.GetSummarizeConfig()
	propose := cfg.GetProposeConfig()

	if *propose.Temperature != 0.7 {
		t.Errorf("expected propose temperature 0.7, got %v", *propose.Temperature)
	}
	if *summarize.Temperature != 0.3 {
		t.Errorf("expected summarize temperature to stay at global 0.3, got %v", *summarize.Temperature)
	}
}
