// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

// Package agent drives multi-turn tool-calling conversations: the
// orchestrator consumes chat-loop events, executes tools, applies loop
// detection, and enforces round budgets.
package agent

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/tools"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// defaultMaxRounds bounds tool-calling rounds when MaxRounds is unset.
const defaultMaxRounds = 10

// ToolExecutor is a fallback executor for a single tool, used only when no
// registry entry matches the call.
type ToolExecutor func(ctx context.Context, call provider.ToolCall) (string, error)

// Config holds the orchestrator's dependencies and callbacks. Callbacks are
// invoked synchronously from the orchestrator's task and must not block for
// long.
type Config struct {
	// Registry resolves and executes tool calls. Preferred over
	// ToolExecutors when both are set.
	Registry *tools.Registry

	// ToolExecutors maps tool names to fallback executors.
	ToolExecutors map[string]ToolExecutor

	OnContent     func(text string)
	OnThinking    func(text string)
	OnToolCalls   func(calls []provider.ToolCall)
	OnToolResults func(results []provider.ToolResult)

	// OnLoopDetected delegates the response to a detection. Returning true
	// continues the loop (any warning still applies); returning false
	// terminates it.
	OnLoopDetected func(detection *Detection) bool

	// MaxRounds bounds how many tool-calling rounds one invocation may
	// consume. Defaults to 10.
	MaxRounds int

	// LoopDetection enables the loop detector with the given tuning.
	LoopDetection *DetectorConfig
}

// Response is the terminal result of a chat loop invocation.
type Response struct {
	Content      string
	Usage        provider.TokenUsage
	AllToolCalls []provider.ToolCall
	Rounds       int
}

// ChatLoopWithTools runs a complete chat loop: it streams events from the
// provider's driver, executes requested tools, submits their results, and
// returns once the model produces a terminal answer.
func ChatLoopWithTools(
	ctx context.Context,
	p provider.Provider,
	messages []provider.Message,
	toolDefs []provider.Tool,
	cfg Config,
) (*Response, error) {
	if p == nil {
		return nil, stranderr.New(stranderr.CodeAgentLoopFailure, "provider is required")
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}

	toolsForLLM := toolDefs
	if cfg.Registry != nil {
		toolsForLLM = cfg.Registry.ToolsForLLM()
	}

	var detector *LoopDetector
	if cfg.LoopDetection != nil {
		detector = NewLoopDetector(*cfg.LoopDetection)
	}

	handle, err := p.ChatLoop(ctx, messages, toolsForLLM)
	if err != nil {
		return nil, err
	}
	defer handle.Cancel()

	var content strings.Builder
	var allToolCalls []provider.ToolCall
	rounds := 0

	for {
		step, ok := handle.Next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return nil, stranderr.Wrapf(ctx.Err(), stranderr.CodeLoopCancelled, "chat loop cancelled")
			}
			return nil, stranderr.New(stranderr.CodeProviderAPIFailure, "chat loop ended unexpectedly")
		}

		switch step.Type {
		case provider.StepThinking:
			if cfg.OnThinking != nil {
				cfg.OnThinking(step.Text)
			}

		case provider.StepContent:
			content.WriteString(step.Text)
			if cfg.OnContent != nil {
				cfg.OnContent(step.Text)
			}

		case provider.StepToolCallsRequested:
			rounds++
			if rounds > maxRounds {
				return nil, stranderr.Errorf(stranderr.CodeAgentMaxRoundsExceeded,
					"maximum tool-calling rounds (%d) exceeded", maxRounds)
			}

			// Content deltas were already streamed; only merge text the
			// driver accumulated that we have not seen.
			if step.Content != "" && !strings.HasSuffix(content.String(), step.Content) {
				content.WriteString(step.Content)
			}

			allToolCalls = append(allToolCalls, step.ToolCalls...)

			if cfg.OnToolCalls != nil {
				cfg.OnToolCalls(step.ToolCalls)
			}

			warnings, err := inspectCalls(detector, step.ToolCalls, cfg.OnLoopDetected)
			if err != nil {
				return nil, err
			}

			results := executeCalls(ctx, step.ToolCalls, cfg)

			for i := range results {
				if warning, ok := warnings[results[i].ToolCallID]; ok {
					results[i].Content = warning + "\n\n" + results[i].Content
				}
			}

			if cfg.OnToolResults != nil {
				cfg.OnToolResults(results)
			}

			if err := handle.SubmitToolResults(results); err != nil {
				return nil, err
			}

		case provider.StepToolResultsReceived:
			// Internal acknowledgement; not dispatched to callbacks.

		case provider.StepError:
			return nil, step.Err

		case provider.StepDone:
			return &Response{
				Content:      content.String(),
				Usage:        step.Usage,
				AllToolCalls: allToolCalls,
				Rounds:       rounds,
			}, nil
		}
	}
}

// inspectCalls runs each requested call through the detector. It returns the
// warning messages to prepend, keyed by tool call id, or an error when a
// detection terminates the loop.
func inspectCalls(detector *LoopDetector, calls []provider.ToolCall, onDetected func(*Detection) bool) (map[string]string, error) {
	if detector == nil {
		return nil, nil
	}

	warnings := make(map[string]string)
	for _, call := range calls {
		detection := detector.Check(call)
		if detection == nil {
			continue
		}

		slog.Warn("tool call loop detected",
			"kind", detection.Kind,
			"action", detection.Action,
			"detections", detection.DetectionCount)

		terminate := detection.Action == ActionTerminate
		if onDetected != nil {
			terminate = !onDetected(detection)
		}

		if terminate {
			detector.Clear()
			return nil, stranderr.New(stranderr.CodeAgentLoopDetected, detection.Suggestion,
				stranderr.Field("kind", string(detection.Kind)))
		}

		if detection.Action == ActionWarn && detection.WarningMessage != "" {
			warnings[call.ID] = detection.WarningMessage
		}
	}

	return warnings, nil
}

// executeCalls runs the round's tool calls, registry first and fallback
// executors second. Calls run concurrently; results keep request order
// because submissions are one bundle per round.
func executeCalls(ctx context.Context, calls []provider.ToolCall, cfg Config) []provider.ToolResult {
	results := make([]provider.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call provider.ToolCall) {
			defer wg.Done()
			results[i] = executeCall(ctx, call, cfg)
		}(i, call)
	}
	wg.Wait()

	return results
}

func executeCall(ctx context.Context, call provider.ToolCall, cfg Config) provider.ToolResult {
	if cfg.Registry != nil && cfg.Registry.Has(call.Name) {
		return cfg.Registry.Execute(ctx, call)
	}

	if executor, ok := cfg.ToolExecutors[call.Name]; ok {
		output, err := executor(ctx, call)
		if err != nil {
			return provider.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true}
		}
		return provider.ToolResult{ToolCallID: call.ID, Content: output}
	}

	return provider.ToolResult{
		ToolCallID: call.ID,
		Content:    "tool " + call.Name + " is not registered",
		IsError:    true,
	}
}
