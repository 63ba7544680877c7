// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	stranderr "github.com/strand-ai/strand/pkg/errors"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			// API keys are redacted; the keyring and env stay the source
			// of truth.
			for name, settings := range cfg.Providers {
				if settings.APIKey != "" {
					settings.APIKey = "<redacted>"
					cfg.Providers[name] = settings
				}
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return stranderr.Wrapf(err, stranderr.CodeConfigLoadReadFailure, "rendering config")
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	})

	return cmd
}
