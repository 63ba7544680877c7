// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/strand-ai/strand/internal/agent"
	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/tools"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

func newAskCmd() *cobra.Command {
	var withTools bool
	var showUsage bool

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Run a one-shot prompt, streaming the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			p, err := buildProvider(cmd, cfg)
			if err != nil {
				return err
			}
			defer p.Close()

			prompt := strings.Join(args, " ")

			if !withTools {
				return runPlainAsk(cmd, p, prompt, showUsage)
			}

			detectorCfg := agent.DefaultDetectorConfig()
			resp, err := agent.ChatLoopWithTools(cmd.Context(), p,
				[]provider.Message{{Role: provider.RoleUser, Content: prompt}},
				nil,
				agent.Config{
					Registry:  tools.DefaultRegistry(),
					MaxRounds: cfg.Loop.MaxRounds,
					OnContent: func(text string) {
						fmt.Fprint(cmd.OutOrStdout(), text)
					},
					OnToolCalls: func(calls []provider.ToolCall) {
						for _, call := range calls {
							fmt.Fprintf(os.Stderr, "\n[tool] %s %s\n", call.Name, call.Arguments)
						}
					},
					LoopDetection: &detectorCfg,
				})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout())
			if showUsage {
				printUsage(resp.Usage, resp.Rounds)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&withTools, "tools", "t", false, "enable the built-in tools")
	cmd.Flags().BoolVarP(&showUsage, "usage", "u", false, "print token usage after the answer")

	return cmd
}

// runPlainAsk streams a single-shot completion without tools.
func runPlainAsk(cmd *cobra.Command, p provider.Provider, prompt string, showUsage bool) error {
	chunks, err := p.Chat(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	for chunk := range chunks {
		switch chunk.Type {
		case provider.ChunkContent:
			fmt.Fprint(cmd.OutOrStdout(), chunk.Text)
		case provider.ChunkError:
			return chunk.Err
		case provider.ChunkDone:
			fmt.Fprintln(cmd.OutOrStdout())
			if showUsage {
				printUsage(chunk.Usage, 0)
			}
		}
	}

	if err := cmd.Context().Err(); err != nil {
		return stranderr.Wrapf(err, stranderr.CodeLoopCancelled, "ask cancelled")
	}
	return nil
}

func printUsage(usage provider.TokenUsage, rounds int) {
	fmt.Fprintf(os.Stderr, "tokens: %d in / %d out / %d cached", usage.InputTokens, usage.OutputTokens, usage.CachedTokens)
	if rounds > 0 {
		fmt.Fprintf(os.Stderr, ", rounds: %d", rounds)
	}
	fmt.Fprintln(os.Stderr)
}
