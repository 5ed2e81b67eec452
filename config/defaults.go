// =============================================================================
// IdeaForge default configuration
// =============================================================================
// Sane defaults for every config section. File/env overlays apply on top.
// =============================================================================
package config

import (
	"time"

	"github.com/ideaforge/engine/llm/providers"
)

// DefaultConfig returns a fully populated Config with conservative defaults.
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Database:     DefaultDatabaseConfig(),
		Redis:        DefaultRedisConfig(),
		Providers:    DefaultProvidersConfig(),
		Engine:       DefaultEngineConfig(),
		Instructions: DefaultInstructionsConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           8080,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		CORSAllowedOrigins: nil,
		APIKeys:            nil,
		RateLimitRPS:       50,
		RateLimitBurst:     100,
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Host:            "localhost",
		Port:            5432,
		User:            "ideaforge",
		Password:        "",
		Name:            "ideaforge",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultProvidersConfig seeds a single "claude" provider entry; real
// deployments overlay api_key/base_url/model via YAML or env.
func DefaultProvidersConfig() map[string]providers.Config {
	return map[string]providers.Config{
		"claude": {
			Model:          "claude-sonnet-4",
			Timeout:        2 * time.Minute,
			ConcurrencyCap: 4,
		},
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ContextTokenCeiling:   180_000,
		DefaultConcurrencyCap: 4,
		ReviewWaitDefault:     24 * time.Hour,
		ProviderQueueWait:     30 * time.Second,
	}
}

func DefaultInstructionsConfig() InstructionsConfig {
	return InstructionsConfig{
		Dir:            "./instructions",
		ReloadEnabled:  true,
		ReloadDebounce: 500 * time.Millisecond,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "ideaforge",
		SampleRate:   0.1,
	}
}
