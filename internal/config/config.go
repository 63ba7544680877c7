// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

// Package config loads strand configuration with the standard precedence:
// flags > environment > config file > defaults.
package config

import (
	"github.com/spf13/viper"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// Config is the top-level strand configuration.
type Config struct {
	Provider  string                    `mapstructure:"provider" yaml:"provider"`
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Loop      LoopConfig                `mapstructure:"loop" yaml:"loop"`
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
	Logging   LoggingConfig             `mapstructure:"logging" yaml:"logging"`
}

// ProviderConfig holds credentials and model selection for one provider.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
	Model   string `mapstructure:"model" yaml:"model"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`
}

// LoopConfig tunes chat-loop behaviour.
type LoopConfig struct {
	MaxRounds    int     `mapstructure:"max_rounds" yaml:"max_rounds"`
	MaxToolTurns int     `mapstructure:"max_tool_turns" yaml:"max_tool_turns"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	SystemPrompt string  `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// ServerConfig controls the SSE relay server.
type ServerConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// SetDefaults installs baseline values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("loop.max_rounds", 10)
	v.SetDefault("loop.max_tool_turns", 3)
	v.SetDefault("loop.max_tokens", 4096)
	v.SetDefault("loop.temperature", 1.0)
	v.SetDefault("server.listen", "127.0.0.1:8740")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// SetupEnv binds the provider environment variables. The driver-facing names
// (OPENAI_API_KEY and friends) are bound explicitly so they keep their
// conventional spelling.
func SetupEnv(v *viper.Viper) {
	bindings := map[string][]string{
		"providers.openai.api_key":    {"OPENAI_API_KEY"},
		"providers.openai.model":      {"OPENAI_MODEL"},
		"providers.openai.base_url":   {"OPENAI_BASE_URL"},
		"providers.anthropic.api_key": {"ANTHROPIC_API_KEY"},
		"providers.anthropic.model":   {"ANTHROPIC_MODEL"},
		"providers.gemini.api_key":    {"GEMINI_API_KEY"},
		"providers.gemini.model":      {"GEMINI_MODEL"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		// BindEnv only fails on an empty key.
		_ = v.BindEnv(args...)
	}

	v.SetEnvPrefix("STRAND")
	v.AutomaticEnv()
}

// Load unmarshals and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, stranderr.Wrapf(err, stranderr.CodeConfigLoadReadFailure, "unmarshaling config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range values.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic", "gemini", "":
	default:
		return stranderr.Errorf(stranderr.CodeConfigInvalidValue,
			"unknown provider %q (want openai, anthropic or gemini)", c.Provider)
	}

	if c.Loop.Temperature < 0 || c.Loop.Temperature > 2 {
		return stranderr.Errorf(stranderr.CodeConfigInvalidValue,
			"temperature %v out of range [0, 2]", c.Loop.Temperature)
	}
	if c.Loop.MaxTokens < 0 {
		return stranderr.Errorf(stranderr.CodeConfigInvalidValue,
			"max_tokens must be positive, got %d", c.Loop.MaxTokens)
	}
	if c.Loop.MaxRounds < 0 {
		return stranderr.Errorf(stranderr.CodeConfigInvalidValue,
			"max_rounds must be positive, got %d", c.Loop.MaxRounds)
	}

	return nil
}

// ProviderSettings returns the section for the named provider, which may be
// absent.
func (c *Config) ProviderSettings(name string) ProviderConfig {
	if c.Providers == nil {
		return ProviderConfig{}
	}
	return c.Providers[name]
}
