// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/server"
	"github.com/strand-ai/strand/internal/tools"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

func newServeCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the SSE relay server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			providers := buildAllProviders(cfg)
			if len(providers) == 0 {
				return stranderr.New(stranderr.CodeServerStartFailure,
					"no providers configured; set an API key first")
			}

			addr := cfg.Server.Listen
			if listen != "" {
				addr = listen
			}

			srv, err := server.New(server.Config{
				Listen:    addr,
				Providers: providers,
				Default:   resolveDefaultProvider(cfg.Provider, providers),
				Registry:  tools.DefaultRegistry(),
				MaxRounds: cfg.Loop.MaxRounds,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides config)")

	return cmd
}

// resolveDefaultProvider keeps the configured default when it was actually
// constructed, otherwise falls back to any available provider.
func resolveDefaultProvider(configured string, providers map[string]provider.Provider) string {
	if _, ok := providers[configured]; ok {
		return configured
	}
	for name := range providers {
		return name
	}
	return ""
}
