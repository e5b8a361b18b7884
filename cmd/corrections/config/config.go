// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the corrections.yaml file used by the corrections
// command and converts it into service configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/demidovbig/Corrections-System/pkg/extensions"
	"github.com/demidovbig/Corrections-System/pkg/logging"
	"github.com/demidovbig/Corrections-System/services/corrections"
)

// DefaultPath is read when neither --config nor CORRECTIONS_CONFIG is set.
const DefaultPath = "corrections.yaml"

// Environment variables that override the file.
const (
	EnvConfigPath   = "CORRECTIONS_CONFIG"
	EnvPort         = "CORRECTIONS_PORT"
	EnvDBPath       = "CORRECTIONS_DB_PATH"
	EnvLogLevel     = "CORRECTIONS_LOG_LEVEL"
	EnvOTelEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvAPITokens    = "CORRECTIONS_API_TOKENS"
	EnvAPIURL       = "CORRECTIONS_API_URL"
	EnvAPIToken     = "CORRECTIONS_API_TOKEN"
)

type FileConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
	Client    ClientConfig    `yaml:"client"`

	// Scopes are created at startup when missing.
	Scopes []string `yaml:"scopes"`

	// Path is the file the config was read from; empty when defaults were used.
	Path string `yaml:"-"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Path         string        `yaml:"path"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	BusyTimeout  time.Duration `yaml:"busy_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

type TracingConfig struct {
	Exporter string `yaml:"exporter"` // otlp, stdout or none
	Endpoint string `yaml:"endpoint"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AuthConfig struct {
	// Tokens maps reviewer name to bearer token. Empty disables auth.
	Tokens map[string]string `yaml:"tokens"`
}

type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// ClientConfig is used by the terminal UI.
type ClientConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token"`
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() FileConfig {
	return FileConfig{
		Server: ServerConfig{
			Port:            5001,
			GinMode:         "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path:         "./data/corrections.db",
			MaxOpenConns: 10,
			BusyTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{Exporter: corrections.ExporterNone, Endpoint: "localhost:4317"},
		Client:  ClientConfig{APIURL: "http://localhost:5001"},
		Scopes:  []string{"General"},
	}
}

// Load reads the config file, applies environment overrides and validates
// the result.
//
// # Description
//
// path wins over CORRECTIONS_CONFIG, which wins over DefaultPath. A missing
// file is not an error: defaults are used. A file that exists but does not
// parse is.
func Load(path string) (FileConfig, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (FileConfig, error) {
	if path == "" {
		path = getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read the config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse the config file %s: %w", path, err)
		}
		cfg.Path = path
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *FileConfig) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a port number", EnvPort, v)
		}
		c.Server.Port = port
	}
	if v := getenv(EnvDBPath); v != "" {
		c.Store.Path = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := getenv(EnvOTelEndpoint); v != "" {
		c.Tracing.Endpoint = strings.TrimPrefix(strings.TrimPrefix(v, "http://"), "https://")
	}
	if v := getenv(EnvAPITokens); v != "" {
		tokens, err := extensions.ParseReviewerTokens(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAPITokens, err)
		}
		c.Auth.Tokens = tokens
	}
	if v := getenv(EnvAPIURL); v != "" {
		c.Client.APIURL = v
	}
	if v := getenv(EnvAPIToken); v != "" {
		c.Client.Token = v
	}
	return nil
}

// Validate rejects values the service cannot start with.
func (c FileConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path is required")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Tracing.Exporter {
	case "", corrections.ExporterNone, corrections.ExporterOTLP, corrections.ExporterStdout:
	default:
		return fmt.Errorf("tracing.exporter must be one of otlp, stdout, none; got %q", c.Tracing.Exporter)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative, got %v", c.RateLimit.RPS)
	}
	return nil
}

// LoggingOptions returns the pkg/logging config for service.
func (c FileConfig) LoggingOptions(service string) logging.Config {
	level, _ := logging.ParseLevel(c.Logging.Level)
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}
}

// ToServiceConfig converts the file into corrections.Config.
func (c FileConfig) ToServiceConfig(logger *slog.Logger) corrections.Config {
	return corrections.Config{
		Port:            c.Server.Port,
		Host:            c.Server.Host,
		DBPath:          c.Store.Path,
		MaxOpenConns:    c.Store.MaxOpenConns,
		MaxIdleConns:    c.Store.MaxIdleConns,
		BusyTimeout:     c.Store.BusyTimeout,
		Scopes:          c.Scopes,
		TracingExporter: c.Tracing.Exporter,
		OTelEndpoint:    c.Tracing.Endpoint,
		GinMode:         c.Server.GinMode,
		RateLimitRPS:    c.RateLimit.RPS,
		RateLimitBurst:  c.RateLimit.Burst,
		CORSOrigins:     c.Server.CORSOrigins,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		Logger:          logger,
	}
}

// ServiceOptions builds the auth and audit extensions the file asks for.
func (c FileConfig) ServiceOptions(logger *slog.Logger) extensions.ServiceOptions {
	opts := extensions.DefaultOptions()
	if len(c.Auth.Tokens) > 0 {
		opts = opts.WithAuth(extensions.NewStaticTokenAuthProvider(c.Auth.Tokens))
	}
	if c.Audit.Enabled {
		opts = opts.WithAudit(extensions.NewSlogAuditLogger(logger))
	}
	return opts
}
