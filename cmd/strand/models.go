// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/strand-ai/strand/internal/provider"
)

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List known models for the configured providers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			providers := buildAllProviders(cfg)
			if len(providers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no providers configured; set OPENAI_API_KEY, ANTHROPIC_API_KEY or GEMINI_API_KEY")
				return nil
			}

			var models []provider.ModelInfo
			for _, p := range providers {
				known, err := p.ListModels(cmd.Context())
				if err != nil {
					continue
				}
				models = append(models, known...)
			}
			sort.Slice(models, func(i, j int) bool {
				if models[i].Provider != models[j].Provider {
					return models[i].Provider < models[j].Provider
				}
				return models[i].ID < models[j].ID
			})

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tTOOLS\tTHINKING\tCONTEXT")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%d\n",
					m.Provider, m.ID,
					m.Capabilities.SupportsTools,
					m.Capabilities.SupportsThinking,
					m.Capabilities.MaxContextTokens)
			}
			return w.Flush()
		},
	}
}
