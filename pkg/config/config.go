// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads runtime configuration for claimsight.
//
// Configuration is environment first: every setting has an env variable and
// a sensible default, and an optional YAML file can override both. String
// values in the YAML file support ${VAR:-default} expansion.
package config

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/claimsight/pkg/observability"
)

const (
	// DefaultDatabasePath is where generated insurance data lives.
	DefaultDatabasePath = "insurance_data.db"

	// DefaultHost and DefaultPort are the agent server bind defaults.
	DefaultHost = "127.0.0.1"
	DefaultPort = 5050

	// DefaultMaxIterations bounds the agent reasoning loop.
	DefaultMaxIterations = 3

	// defaultLangfuseEndpoint is the Langfuse cloud OTLP gRPC endpoint.
	defaultLangfuseEndpoint = "cloud.langfuse.com:443"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig            `yaml:"llm,omitempty"`
	Server        ServerConfig         `yaml:"server,omitempty"`
	Database      DatabaseConfig       `yaml:"database,omitempty"`
	Agent         AgentConfig          `yaml:"agent,omitempty"`
	Observability observability.Config `yaml:"observability,omitempty"`
}

// LLMConfig configures the Azure OpenAI backend.
type LLMConfig struct {
	// APIKey authenticates against Azure OpenAI (env: AZURE_OPENAI_API_KEY).
	APIKey string `yaml:"api_key,omitempty"`

	// Endpoint is the resource base URL (env: AZURE_OPENAI_ENDPOINT).
	Endpoint string `yaml:"endpoint,omitempty"`

	// Deployment is the model deployment name
	// (env: AZURE_OPENAI_DEPLOYMENT_NAME).
	Deployment string `yaml:"deployment,omitempty"`

	// APIVersion selects the REST API version
	// (env: AZURE_OPENAI_API_VERSION, default 2024-02-01).
	APIVersion string `yaml:"api_version,omitempty"`

	Temperature *float64      `yaml:"temperature,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
}

// ServerConfig configures the A2A HTTP server.
type ServerConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// Address returns the host:port bind address.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DatabaseConfig configures the SQLite insurance database.
type DatabaseConfig struct {
	Path string `yaml:"path,omitempty"`
}

// AgentConfig configures agent behavior.
type AgentConfig struct {
	// MaxIterations caps the reasoning loop (default 3).
	MaxIterations int `yaml:"max_iterations,omitempty"`
}

// Load reads configuration from the environment, then overlays the YAML
// file at path when one is given. Missing env files are ignored.
func Load(path string) (*Config, error) {
	if err := LoadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := FromEnv()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		expanded, err := yaml.Marshal(ExpandEnvVarsInData(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to process config file: %w", err)
		}
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to apply config file: %w", err)
		}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables only.
func FromEnv() *Config {
	cfg := &Config{
		LLM: LLMConfig{
			APIKey:     os.Getenv("AZURE_OPENAI_API_KEY"),
			Endpoint:   os.Getenv("AZURE_OPENAI_ENDPOINT"),
			Deployment: os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME"),
			APIVersion: os.Getenv("AZURE_OPENAI_API_VERSION"),
		},
		Server: ServerConfig{
			Host: os.Getenv("CLAIMSIGHT_HOST"),
		},
		Database: DatabaseConfig{
			Path: os.Getenv("CLAIMSIGHT_DB_PATH"),
		},
	}

	if port := os.Getenv("CLAIMSIGHT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Observability.Tracing = tracingFromEnv()

	return cfg
}

// tracingFromEnv enables OTLP tracing from environment variables alone.
// CLAIMSIGHT_OTLP_ENDPOINT points at any OTLP gRPC collector;
// LANGFUSE_PUBLIC_KEY/LANGFUSE_SECRET_KEY enable the Langfuse OTLP endpoint
// (LANGFUSE_HOST overrides the cloud default) with basic auth headers.
func tracingFromEnv() observability.TracerConfig {
	tc := observability.TracerConfig{}

	if endpoint := os.Getenv("CLAIMSIGHT_OTLP_ENDPOINT"); endpoint != "" {
		tc.Enabled = true
		tc.EndpointURL = endpoint
	}

	public := os.Getenv("LANGFUSE_PUBLIC_KEY")
	secret := os.Getenv("LANGFUSE_SECRET_KEY")
	if public != "" && secret != "" {
		tc.Enabled = true
		if tc.EndpointURL == "" {
			host := os.Getenv("LANGFUSE_HOST")
			if host == "" {
				host = defaultLangfuseEndpoint
			}
			tc.EndpointURL = host
			tc.Secure = true
		}
		auth := base64.StdEncoding.EncodeToString([]byte(public + ":" + secret))
		tc.Headers = map[string]string{"Authorization": "Basic " + auth}
	}

	return tc
}

// SetDefaults fills in zero values.
func (c *Config) SetDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	c.Observability.SetDefaults()
}

// Validate checks the configuration for errors. LLM credentials are checked
// at client construction, not here, so data generation works without them.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent max_iterations must not be negative")
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	return nil
}
