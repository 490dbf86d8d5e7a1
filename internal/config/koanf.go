// PayFlux - Crypto-to-Fiat Payment Bridge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/payflux/config.yaml",
	"/etc/payflux/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// envMappings maps flat environment variable names to koanf config paths.
// Only listed variables are honored; everything else in the environment is
// ignored so unrelated variables cannot perturb the config.
var envMappings = map[string]string{
	"HOST":        "server.host",
	"PORT":        "server.port",
	"ENVIRONMENT": "server.environment",

	"DUCKDB_PATH":       "database.path",
	"DUCKDB_MAX_MEMORY": "database.max_memory",
	"DUCKDB_THREADS":    "database.threads",

	"SMS_PROVIDER":        "sms.provider",
	"SMS_BASE_URL":        "sms.base_url",
	"SMS_API_KEY":         "sms.api_key",
	"SMS_SENDER_ID":       "sms.sender_id",
	"SMS_RATE_PER_SECOND": "sms.rate_per_second",

	"PROGRAM_ID":            "chain.program_id",
	"CHAIN_LISTENER":        "chain.listener_enabled",
	"QUICKNODE_WSS_URL":     "chain.websocket_url",
	"QUICKNODE_API_KEY":     "chain.api_key",
	"CHAIN_WEBHOOK_SECRET":  "chain.webhook_secret",
	"CHAIN_RECONNECT_DELAY": "chain.reconnect_delay",

	"AUTH_MODE":         "security.auth_mode",
	"JWT_SECRET":        "security.jwt_secret",
	"ADMIN_USERNAME":    "security.admin_username",
	"ADMIN_PASSWORD":    "security.admin_password",
	"RATE_LIMIT_REQS":   "security.rate_limit_reqs",
	"RATE_LIMIT_WINDOW": "security.rate_limit_window",
	"CORS_ORIGINS":      "security.cors_origins",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",
}

// Load builds the relay configuration from defaults, an optional YAML
// config file, and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Environment variables win over everything.
	envProvider := env.Provider("", ".", func(key string) string {
		return envMappings[key]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as plain strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated strings into slices for
// known slice fields. YAML-sourced values are already slices and are
// left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
