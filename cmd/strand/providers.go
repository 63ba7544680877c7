// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/strand-ai/strand/internal/config"
	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/provider/anthropic"
	"github.com/strand-ai/strand/internal/provider/gemini"
	"github.com/strand-ai/strand/internal/provider/openai"
	"github.com/strand-ai/strand/internal/secrets"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// buildProvider constructs the selected provider from config, environment
// and keyring, applying loop tuning from the config file.
func buildProvider(cmd *cobra.Command, cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}

	modelOverride, _ := cmd.Root().PersistentFlags().GetString("model")
	store := secrets.KeyringStore{}

	var p provider.Provider
	var err error

	switch name {
	case "openai":
		settings := cfg.ProviderSettings("openai")
		p, err = openai.New(openai.Config{
			APIKey:  secrets.ResolveAPIKey(store, "OPENAI_API_KEY", settings.APIKey, "openai_api_key"),
			Model:   firstNonEmpty(modelOverride, settings.Model),
			BaseURL: settings.BaseURL,
		})
	case "anthropic":
		settings := cfg.ProviderSettings("anthropic")
		p, err = anthropic.New(anthropic.Config{
			APIKey:  secrets.ResolveAPIKey(store, "ANTHROPIC_API_KEY", settings.APIKey, "anthropic_api_key"),
			Model:   firstNonEmpty(modelOverride, settings.Model),
			BaseURL: settings.BaseURL,
		})
	case "gemini":
		settings := cfg.ProviderSettings("gemini")
		p, err = gemini.New(gemini.Config{
			APIKey: secrets.ResolveAPIKey(store, "GEMINI_API_KEY", settings.APIKey, "gemini_api_key"),
			Model:  firstNonEmpty(modelOverride, settings.Model),
		})
	default:
		return nil, stranderr.Errorf(stranderr.CodeCLIInputInvalid, "unknown provider %q", name)
	}
	if err != nil {
		return nil, err
	}

	p.UpdateConfig(func(pc *provider.Config) {
		if cfg.Loop.MaxTokens > 0 {
			pc.MaxTokens = cfg.Loop.MaxTokens
		}
		if cfg.Loop.Temperature > 0 {
			pc.Temperature = cfg.Loop.Temperature
		}
		if cfg.Loop.MaxToolTurns > 0 {
			turns := cfg.Loop.MaxToolTurns
			pc.MaxToolTurns = &turns
		}
		if cfg.Loop.SystemPrompt != "" {
			pc.SystemPrompt = cfg.Loop.SystemPrompt
		}
	})

	return p, nil
}

// buildAllProviders constructs every provider that has a resolvable API key.
func buildAllProviders(cfg *config.Config) map[string]provider.Provider {
	store := secrets.KeyringStore{}
	out := make(map[string]provider.Provider)

	if key := secrets.ResolveAPIKey(store, "OPENAI_API_KEY", cfg.ProviderSettings("openai").APIKey, "openai_api_key"); key != "" {
		settings := cfg.ProviderSettings("openai")
		if p, err := openai.New(openai.Config{APIKey: key, Model: settings.Model, BaseURL: settings.BaseURL}); err == nil {
			out["openai"] = p
		}
	}
	if key := secrets.ResolveAPIKey(store, "ANTHROPIC_API_KEY", cfg.ProviderSettings("anthropic").APIKey, "anthropic_api_key"); key != "" {
		settings := cfg.ProviderSettings("anthropic")
		if p, err := anthropic.New(anthropic.Config{APIKey: key, Model: settings.Model, BaseURL: settings.BaseURL}); err == nil {
			out["anthropic"] = p
		}
	}
	if key := secrets.ResolveAPIKey(store, "GEMINI_API_KEY", cfg.ProviderSettings("gemini").APIKey, "gemini_api_key"); key != "" {
		settings := cfg.ProviderSettings("gemini")
		if p, err := gemini.New(gemini.Config{APIKey: key, Model: settings.Model}); err == nil {
			out["gemini"] = p
		}
	}

	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
