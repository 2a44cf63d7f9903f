package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
//
// API key precedence:
//  1. Vault (if enabled)
//  2. Config file values
//  3. Environment variables (RESUMEFORGE_AI_APIKEY, ...)
//  4. Defaults
type Config struct {
	AI            AIConfig            `mapstructure:"ai"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AIConfig holds semantic-service configuration. The two AI operations —
// summarizing a job description and proposing edit phrasing — can each
// override the global settings.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	APIKey      string        `mapstructure:"apiKey"`
	MaxRetries  int           `mapstructure:"maxRetries"`
	Temperature float32       `mapstructure:"temperature"`

	Summarize OperationAIConfig `mapstructure:"summarize"`
	Propose   OperationAIConfig `mapstructure:"propose"`
}

// OperationAIConfig holds AI configuration for a specific operation.
// Pointer fields distinguish "unset" from explicit zero values.
type OperationAIConfig struct {
	Provider       string               `mapstructure:"provider"`
	Model          string               `mapstructure:"model"`
	Timeout        *time.Duration       `mapstructure:"timeout"`
	APIKey         string               `mapstructure:"apiKey"`
	MaxRetries     *int                 `mapstructure:"maxRetries"`
	Temperature    *float32             `mapstructure:"temperature"`
	SystemPrompt   string               `mapstructure:"systemPrompt"`
	PromptFile     string               `mapstructure:"promptFile"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // open → half-open timeout
	MinRequests      uint32        `mapstructure:"minRequests"`      // minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // failure ratio threshold (0.0-1.0)
}

// PipelineConfig holds the enhancement pipeline's tunables: edit
// constraints, heuristic thresholds, retry budget, and working storage.
type PipelineConfig struct {
	WorkDir             string             `mapstructure:"workDir"`
	SectionGrowthLimit  float64            `mapstructure:"sectionGrowthLimit"`  // max fractional word-count growth per section
	MaxNewBullets       int                `mapstructure:"maxNewBullets"`       // cap on inserted bullets per request
	MaxBulletsPerEntry  int                `mapstructure:"maxBulletsPerEntry"`  // cap on bullets under one entry after editing
	StageRetryLimit     int                `mapstructure:"stageRetryLimit"`     // retries per state before failing the workflow
	FuzzyMatchThreshold float64            `mapstructure:"fuzzyMatchThreshold"` // section-title similarity cutoff
	QuantifiedRatio     map[string]float64 `mapstructure:"quantifiedRatio"`     // per-seniority weak-evidence thresholds
	RetainArtifacts     bool               `mapstructure:"retainArtifacts"`     // keep stage artifacts after terminal states
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`

	TLS TLSConfig `mapstructure:"tls"`

	// Valid API keys for authentication; empty disables auth.
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS configuration. Certificate material comes from
// files or, when Vault is enabled, from secret content.
type TLSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	CertFile    string `mapstructure:"certFile"`
	KeyFile     string `mapstructure:"keyFile"`
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	MinVersion  string `mapstructure:"minVersion"` // "1.2" or "1.3"

	Watch WatchConfig `mapstructure:"watch"`
}

// WatchConfig configures hot reload of certificate files.
type WatchConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RequestsPerMin int           `mapstructure:"requestsPerMin"`
	BurstCapacity  int           `mapstructure:"burstCapacity"`
	ByAPIKey       bool          `mapstructure:"byAPIKey"` // key limiters by API key instead of client IP
	CleanupAfter   time.Duration `mapstructure:"cleanupAfter"`
}

// AppConfig holds general application configuration.
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// VaultConfig holds HashiCorp Vault configuration.
type VaultConfig struct {
	Enabled   bool         `mapstructure:"enabled"`
	Address   string       `mapstructure:"address"`
	Token     string       `mapstructure:"token"`
	TokenFile string       `mapstructure:"tokenFile"`
	Namespace string       `mapstructure:"namespace"`
	Secrets   VaultSecrets `mapstructure:"secrets"`
}

// VaultSecrets names the KV paths the loader reads.
type VaultSecrets struct {
	GeminiKey string `mapstructure:"geminiKey"` // path holding the AI API key
	APIKeys   string `mapstructure:"apiKeys"`   // path holding server API keys (comma-separated)
	TLSCerts  string `mapstructure:"tlsCerts"`  // path holding cert/key PEM content
}

// ObservabilityConfig holds tracing and metrics configuration.
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	SampleRate      float64          `mapstructure:"sampleRate"`
	Tracing         TracingConfig    `mapstructure:"tracing"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Console         ConsoleConfig    `mapstructure:"console"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration.
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console exporter configuration.
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus exporter configuration.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration.
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from defaults, a config file, and
// environment variables, then resolves Vault secrets and prompt files.
func LoadConfig() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("RESUMEFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumeforge/")
	v.AddConfigPath("$HOME/.resumeforge")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyFallbacks()

	if config.Vault.Enabled {
		if err := config.loadVaultSecrets(); err != nil {
			return nil, fmt.Errorf("failed to load Vault secrets: %w", err)
		}
	}

	if err := config.resolvePromptFiles(); err != nil {
		return nil, fmt.Errorf("failed to load prompt files: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI timeout must be positive")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Pipeline.SectionGrowthLimit <= 0 || c.Pipeline.SectionGrowthLimit >= 1 {
		return fmt.Errorf("pipeline sectionGrowthLimit must be in (0,1), got %v", c.Pipeline.SectionGrowthLimit)
	}
	if c.Pipeline.MaxNewBullets < 0 {
		return fmt.Errorf("pipeline maxNewBullets must not be negative")
	}
	if c.Pipeline.StageRetryLimit < 0 {
		return fmt.Errorf("pipeline stageRetryLimit must not be negative")
	}
	if c.Pipeline.FuzzyMatchThreshold <= 0 || c.Pipeline.FuzzyMatchThreshold > 1 {
		return fmt.Errorf("pipeline fuzzyMatchThreshold must be in (0,1]")
	}
	if c.Pipeline.WorkDir == "" {
		return fmt.Errorf("pipeline workDir is required")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

// ValidateTLSConfig revalidates TLS settings, used after CLI flag
// overrides are applied on top of a loaded config.
func (c *Config) ValidateTLSConfig() error {
	return c.validateTLS()
}

func (c *Config) validateTLS() error {
	tls := c.Server.TLS
	if !tls.Enabled {
		return nil
	}
	if (tls.CertFile == "" && tls.CertContent == "") || (tls.KeyFile == "" && tls.KeyContent == "") {
		return fmt.Errorf("certificate and key are required when TLS is enabled")
	}
	if tls.CertFile != "" && tls.CertContent != "" {
		return fmt.Errorf("cannot specify both certFile and certContent")
	}
	if tls.KeyFile != "" && tls.KeyContent != "" {
		return fmt.Errorf("cannot specify both keyFile and keyContent")
	}
	switch tls.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}
	return nil
}

// applyFallbacks applies environment variable fallbacks and derived
// values viper cannot express.
func (c *Config) applyFallbacks() {
	if len(c.Server.APIKeys) == 0 {
		if apiKeysEnv := os.Getenv("RESUMEFORGE_SERVER_APIKEYS"); apiKeysEnv != "" {
			c.Server.APIKeys = strings.Split(apiKeysEnv, ",")
			for i, key := range c.Server.APIKeys {
				c.Server.APIKeys[i] = strings.TrimSpace(key)
			}
		}
	}

	// Legacy env var for the Gemini key.
	if c.AI.APIKey == "" {
		c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if c.Server.TLS.Enabled && c.Server.TLS.MinVersion == "" {
		c.Server.TLS.MinVersion = "1.2"
	}

	if c.Observability.ServiceInstance == "" {
		if hostname, err := os.Hostname(); err == nil {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-%s", c.Observability.ServiceName, hostname)
		} else {
			c.Observability.ServiceInstance = fmt.Sprintf("%s-1", c.Observability.ServiceName)
		}
	}
}

// applyOperationDefaults applies global defaults to operation-specific
// configuration.
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		opCfg.Timeout = &c.AI.Timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		opCfg.MaxRetries = &c.AI.MaxRetries
	}
	if opCfg.Temperature == nil {
		opCfg.Temperature = &c.AI.Temperature
	}
}

// GetSummarizeConfig returns the AI configuration for job-description
// summarization with fallback to global config.
func (c *Config) GetSummarizeConfig() OperationAIConfig {
	config := c.AI.Summarize
	c.applyOperationDefaults(&config)
	return config
}

// GetProposeConfig returns the AI configuration for edit proposal with
// fallback to global config.
func (c *Config) GetProposeConfig() OperationAIConfig {
	config := c.AI.Propose
	c.applyOperationDefaults(&config)
	return config
}

// resolvePromptFiles reads prompt file overrides into the inline fields.
// A file override wins over an inline value.
func (c *Config) resolvePromptFiles() error {
	for _, op := range []*OperationAIConfig{&c.AI.Summarize, &c.AI.Propose} {
		if op.PromptFile == "" {
			continue
		}
		data, err := os.ReadFile(op.PromptFile)
		if err != nil {
			return fmt.Errorf("read prompt file %s: %w", op.PromptFile, err)
		}
		if len(strings.TrimSpace(string(data))) == 0 {
			return fmt.Errorf("prompt file %s is empty", op.PromptFile)
		}
		op.SystemPrompt = string(data)
	}
	return nil
}
