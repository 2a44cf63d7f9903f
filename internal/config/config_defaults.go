package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// AI Configuration - global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.maxRetries", 3)
	v.SetDefault("ai.temperature", 0.3)

	// Summarize operation defaults
	v.SetDefault("ai.summarize.provider", "gemini")
	v.SetDefault("ai.summarize.model", "")
	v.SetDefault("ai.summarize.timeout", 90*time.Second)
	v.SetDefault("ai.summarize.maxRetries", 2)
	v.SetDefault("ai.summarize.temperature", 0.1) // extraction wants determinism
	v.SetDefault("ai.summarize.circuitBreaker.enabled", true)
	v.SetDefault("ai.summarize.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.summarize.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.summarize.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.summarize.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.summarize.circuitBreaker.failureThreshold", 0.6)

	// Propose operation defaults
	v.SetDefault("ai.propose.provider", "gemini")
	v.SetDefault("ai.propose.model", "")
	v.SetDefault("ai.propose.timeout", 60*time.Second)
	v.SetDefault("ai.propose.maxRetries", 2)
	v.SetDefault("ai.propose.temperature", 0.4) // phrasing benefits from some variety
	v.SetDefault("ai.propose.circuitBreaker.enabled", true)
	v.SetDefault("ai.propose.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.propose.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.propose.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.propose.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.propose.circuitBreaker.failureThreshold", 0.6)

	// Pipeline Configuration
	v.SetDefault("pipeline.workDir", "./workspace")
	v.SetDefault("pipeline.sectionGrowthLimit", 0.30)
	v.SetDefault("pipeline.maxNewBullets", 5)
	v.SetDefault("pipeline.maxBulletsPerEntry", 8)
	v.SetDefault("pipeline.stageRetryLimit", 1)
	v.SetDefault("pipeline.fuzzyMatchThreshold", 0.72)
	v.SetDefault("pipeline.quantifiedRatio", map[string]float64{
		"junior": 0.0,
		"mid":    0.25,
		"senior": 0.35,
		"staff+": 0.45,
	})
	v.SetDefault("pipeline.retainArtifacts", true)

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 10*1024*1024) // uploads carry whole documents
	v.SetDefault("server.apiKeys", []string{})

	// TLS defaults
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.watch.enabled", true)
	v.SetDefault("server.tls.watch.debounceDelay", time.Second)

	// Rate limiting defaults
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byAPIKey", false)
	v.SetDefault("server.rateLimit.cleanupAfter", 10*time.Minute)

	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.tlsCerts", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumeforge")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
