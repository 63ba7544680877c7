// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/strand-ai/strand/internal/config"
	"github.com/strand-ai/strand/internal/logging"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// NewRootCmd creates the root strand command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "strand",
		Short:         "Strand — agent runtime for LLM providers",
		Long:          "Strand drives multi-turn tool-calling conversations against OpenAI, Anthropic and Gemini backends.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			v := viper.GetViper()
			logging.Setup(logging.ParseLevel(v.GetString("logging.level")), v.GetString("logging.format"))
			return nil
		},
	}

	// Global flags — initViper reads --config and binds --provider to its
	// viper key; buildProvider reads --model directly.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().StringP("provider", "p", "", "provider to use (openai, anthropic, gemini)")
	root.PersistentFlags().String("model", "", "model override for the selected provider")

	root.AddCommand(
		newAskCmd(),
		newModelsCmd(),
		newServeCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return stranderr.Wrapf(err, stranderr.CodeConfigLoadReadFailure, "reading config file")
		}
	} else {
		v.SetConfigName("strand")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/strand")
		v.AddConfigPath("/etc/strand")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return stranderr.Wrapf(err, stranderr.CodeConfigLoadReadFailure, "reading config")
			}
		}
	}

	if err := v.BindPFlag("provider", cmd.Root().PersistentFlags().Lookup("provider")); err != nil {
		return stranderr.Wrapf(err, stranderr.CodeConfigLoadReadFailure, "binding provider flag")
	}

	return nil
}

// loadConfig unmarshals the resolved viper state.
func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetViper())
}
