// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and validates relay configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. YAML config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the relay.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	SMS      SMSConfig      `koanf:"sms"`
	Chain    ChainConfig    `koanf:"chain"`
	Dispatch DispatchConfig `koanf:"dispatch"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`     // read/write timeout and graceful shutdown budget
	Environment string        `koanf:"environment"` // development or production
}

// DatabaseConfig holds DuckDB settings for the transaction ledger.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// SMSConfig holds notification sink settings.
//
// Provider "log" writes messages to the log instead of delivering them;
// it is the default so the relay runs without SMS credentials.
type SMSConfig struct {
	Provider      string        `koanf:"provider"` // log or termii
	BaseURL       string        `koanf:"base_url"`
	APIKey        string        `koanf:"api_key"`
	SenderID      string        `koanf:"sender_id"`
	Timeout       time.Duration `koanf:"timeout"`
	RatePerSecond float64       `koanf:"rate_per_second"` // client-side throttle, 0 = unlimited
}

// ChainConfig holds on-chain event source settings.
//
// The webhook endpoint is always available; the WebSocket listener is an
// optional second event source and requires a provider URL.
type ChainConfig struct {
	ProgramID       string        `koanf:"program_id"`
	ListenerEnabled bool          `koanf:"listener_enabled"`
	WebSocketURL    string        `koanf:"websocket_url"`
	APIKey          string        `koanf:"api_key"`
	ReconnectDelay  time.Duration `koanf:"reconnect_delay"`
	PingInterval    time.Duration `koanf:"ping_interval"`
	WebhookSecret   string        `koanf:"webhook_secret"` // HMAC-SHA256 secret; empty disables verification
}

// DispatchConfig holds notification dispatch settings.
type DispatchConfig struct {
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	OutputBuffer         int           `koanf:"output_buffer"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	AuthMode        string        `koanf:"auth_mode"` // none or jwt
	JWTSecret       string        `koanf:"jwt_secret"`
	SessionTimeout  time.Duration `koanf:"session_timeout"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first and overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3001,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/payflux.duckdb",
			MaxMemory: "512MB",
			Threads:   0,
		},
		SMS: SMSConfig{
			Provider:      "log",
			BaseURL:       "",
			APIKey:        "",
			SenderID:      "PayFlux",
			Timeout:       15 * time.Second,
			RatePerSecond: 10,
		},
		Chain: ChainConfig{
			ProgramID:       "",
			ListenerEnabled: false,
			WebSocketURL:    "",
			APIKey:          "",
			ReconnectDelay:  5 * time.Second,
			PingInterval:    30 * time.Second,
			WebhookSecret:   "",
		},
		Dispatch: DispatchConfig{
			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			OutputBuffer:         256,
		},
		Security: SecurityConfig{
			AuthMode:        "none",
			JWTSecret:       "",
			SessionTimeout:  24 * time.Hour,
			AdminUsername:   "",
			AdminPassword:   "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for internally inconsistent or
// unusable settings. It is called by Load after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.SMS.Provider {
	case "log":
	case "termii":
		if c.SMS.BaseURL == "" {
			return fmt.Errorf("sms.base_url is required when sms.provider is termii")
		}
		if c.SMS.APIKey == "" {
			return fmt.Errorf("sms.api_key is required when sms.provider is termii")
		}
	default:
		return fmt.Errorf("sms.provider must be log or termii, got %q", c.SMS.Provider)
	}

	if c.Chain.ListenerEnabled && c.Chain.WebSocketURL == "" {
		return fmt.Errorf("chain.websocket_url is required when chain.listener_enabled is true")
	}

	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters when auth_mode is jwt")
		}
		if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
			return fmt.Errorf("security.admin_username and security.admin_password are required when auth_mode is jwt")
		}
	default:
		return fmt.Errorf("security.auth_mode must be none or jwt, got %q", c.Security.AuthMode)
	}

	return nil
}

// IsProduction reports whether the relay runs with production checks.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
