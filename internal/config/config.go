// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the application configuration from a YAML file and
// the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration.
type Config struct {
	Defaults struct {
		Provider string `yaml:"provider"` // "entity" or "llm"
		Mode     string `yaml:"mode"`     // "alias" or "tag"
		Refill   bool   `yaml:"refill"`
		Verbose  bool   `yaml:"verbose"`
		Debug    bool   `yaml:"debug"`
		NoColor  bool   `yaml:"no_color"`
	} `yaml:"defaults"`

	// Entities restricts the entity-detector to the listed types. Empty
	// means all recognizers.
	Entities []string `yaml:"entities"`

	LLM struct {
		Endpoint  string        `yaml:"endpoint"`
		Model     string        `yaml:"model"`
		APIKeyEnv string        `yaml:"api_key_env"`
		Timeout   time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Web struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"web"`
}

// Load reads the configuration file at path; an empty path yields the
// defaults. LLM API keys are never stored in the file, only the name of
// the environment variable holding them.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Defaults.Provider = "entity"
	cfg.Defaults.Mode = "alias"
	cfg.LLM.Endpoint = "https://api.openai.com/v1/chat/completions"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	cfg.LLM.Timeout = 60 * time.Second
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = 8080

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Defaults.Provider {
	case "entity", "llm":
	default:
		return fmt.Errorf("unknown provider %q (want entity or llm)", c.Defaults.Provider)
	}
	switch c.Defaults.Mode {
	case "alias", "tag":
	default:
		return fmt.Errorf("unknown mode %q (want alias or tag)", c.Defaults.Mode)
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

// APIKey resolves the LLM API key from the configured environment
// variable.
func (c *Config) APIKey() string {
	return strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
}

// FindConfigFile returns the first config file present in the standard
// locations, or "" when none exists.
func FindConfigFile() string {
	candidates := []string{"anonymail.yaml", ".anonymail.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".anonymail.yaml"),
			filepath.Join(home, ".config", "anonymail", "config.yaml"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
