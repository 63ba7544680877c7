// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package provider

import (
	"context"
	"log/slog"

	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// eventBufferSize bounds the in-flight event window. The producer rate is
// bounded by the model's token rate, so a modest buffer keeps the driver off
// the consumer's critical path.
const eventBufferSize = 64

// TurnResult is everything one streaming HTTP turn produced. Content and
// thinking deltas are emitted through the turn's emit callback as they
// arrive; the result carries the turn-level aggregates.
type TurnResult struct {
	Content      string
	ToolCalls    []AssembledCall
	FinishReason FinishReason
	Usage        TokenUsage
}

// TurnRunner executes one streaming request against the backend: it sends
// the given history and tool declarations, forwards Thinking/Content deltas
// through emit, and returns the assembled turn. emit reports false when the
// loop has been cancelled; runners should stop streaming when it does.
type TurnRunner func(ctx context.Context, history []Message, tools []Tool, emit func(LoopStep) bool) (TurnResult, error)

// ChatLoopHandle is the caller-facing side of a running chat loop: an event
// stream out and a tool-result submission channel in. Its lifetime bounds
// the background driver task.
type ChatLoopHandle struct {
	events      chan LoopStep
	submissions chan []ToolResult
	cancel      context.CancelFunc
	done        chan struct{}
}

// Next blocks until the driver emits the next event, the event stream
// closes, or ctx is cancelled. The second return is false once no further
// events will arrive.
func (h *ChatLoopHandle) Next(ctx context.Context) (LoopStep, bool) {
	select {
	case step, ok := <-h.events:
		return step, ok
	case <-ctx.Done():
		return LoopStep{}, false
	}
}

// Events exposes the raw event stream. It is closed when the driver exits.
func (h *ChatLoopHandle) Events() <-chan LoopStep {
	return h.events
}

// SubmitToolResults enqueues one bundle of tool results and returns
// immediately. It fails with loop.channel.closed once the driver has exited.
func (h *ChatLoopHandle) SubmitToolResults(results []ToolResult) error {
	select {
	case <-h.done:
		return stranderr.New(stranderr.CodeLoopChannelClosed, "chat loop closed")
	default:
	}

	select {
	case h.submissions <- results:
		return nil
	case <-h.done:
		return stranderr.New(stranderr.CodeLoopChannelClosed, "chat loop closed")
	}
}

// IsActive reports whether the driver is still accepting submissions.
func (h *ChatLoopHandle) IsActive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Cancel tears down the loop: the driver's context is cancelled, in-flight
// HTTP reads abort, and the event stream closes after the driver exits.
func (h *ChatLoopHandle) Cancel() {
	h.cancel()
}

// StartChatLoop spawns the background driver for one chat-loop invocation
// and returns its handle. The driver owns the streaming connection; it
// alternates between issuing requests (via run), forwarding events, and
// waiting on tool-result submissions until the model produces a terminal
// answer or the handle is cancelled.
func (c *Core) StartChatLoop(ctx context.Context, history []Message, tools []Tool, run TurnRunner) *ChatLoopHandle {
	ctx, cancel := context.WithCancel(ctx)
	handle := &ChatLoopHandle{
		events:      make(chan LoopStep, eventBufferSize),
		submissions: make(chan []ToolResult, 1),
		cancel:      cancel,
		done:        make(chan struct{}),
	}

	go c.driveChatLoop(ctx, handle, CloneHistory(history), tools, run)

	return handle
}

// driveChatLoop is the driver state machine: AwaitingResponse → Streaming →
// (AwaitingToolResults → AwaitingResponse)* → Terminal.
func (c *Core) driveChatLoop(ctx context.Context, handle *ChatLoopHandle, hist []Message, tools []Tool, run TurnRunner) {
	defer func() {
		handle.cancel()
		close(handle.done)
		close(handle.events)
	}()

	emit := func(step LoopStep) bool {
		select {
		case handle.events <- step:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var totalUsage TokenUsage
	var allToolCalls []ToolCall

	for {
		turn, err := run(ctx, hist, tools, emit)
		c.recordRequest(turn.Usage)
		totalUsage.Add(turn.Usage)

		if err != nil {
			if ctx.Err() != nil {
				// Cancelled by the handle; exit silently.
				return
			}
			emit(LoopStep{Type: StepError, Err: err})
			return
		}

		switch turn.FinishReason {
		case FinishToolCalls:
			calls := make([]ToolCall, 0, len(turn.ToolCalls))
			for _, assembled := range turn.ToolCalls {
				if assembled.Err != nil {
					slog.Warn("tool call arguments failed to parse, substituting empty object",
						"tool", assembled.Call.Name,
						"tool_call_id", assembled.Call.ID,
						"error", assembled.Err)
				}
				calls = append(calls, assembled.Call)
			}

			hist = append(hist, Message{
				Role:      RoleAssistant,
				Content:   turn.Content,
				ToolCalls: calls,
			})
			c.setHistory(hist)
			allToolCalls = append(allToolCalls, calls...)

			if !emit(LoopStep{Type: StepToolCallsRequested, ToolCalls: calls, Content: turn.Content}) {
				return
			}

			var results []ToolResult
			select {
			case results = <-handle.submissions:
			case <-ctx.Done():
				return
			}

			for _, result := range results {
				hist = append(hist, Message{
					Role:       RoleTool,
					ToolCallID: result.ToolCallID,
					Content:    result.Content,
				})
			}

			cfg := c.Config()
			if cfg.MaxToolTurns != nil {
				hist = PruneToolTurns(hist, *cfg.MaxToolTurns)
			}
			c.setHistory(hist)
			c.recordTurn()

			if !emit(LoopStep{Type: StepToolResultsReceived, Count: len(results)}) {
				return
			}

		case FinishLength:
			emit(LoopStep{Type: StepError, Err: stranderr.New(
				stranderr.CodeProviderAPIFailure, "response truncated: max_tokens reached")})
			return

		default:
			if turn.Content != "" {
				hist = append(hist, Message{Role: RoleAssistant, Content: turn.Content})
			}
			c.setHistory(hist)
			c.recordTurn()

			emit(LoopStep{
				Type:         StepDone,
				Content:      turn.Content,
				FinishReason: turn.FinishReason,
				Usage:        totalUsage,
				AllToolCalls: allToolCalls,
			})
			return
		}
	}
}

// StartChat runs a single streaming turn for a one-shot prompt, translating
// loop events into StreamChunk values. The channel closes after the terminal
// chunk.
func (c *Core) StartChat(ctx context.Context, prompt string, run TurnRunner) <-chan StreamChunk {
	out := make(chan StreamChunk, eventBufferSize)

	go func() {
		defer close(out)

		send := func(chunk StreamChunk) bool {
			select {
			case out <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		emit := func(step LoopStep) bool {
			switch step.Type {
			case StepThinking:
				return send(StreamChunk{Type: ChunkThinking, Text: step.Text})
			case StepContent:
				return send(StreamChunk{Type: ChunkContent, Text: step.Text})
			}
			return true
		}

		history := []Message{{Role: RoleUser, Content: prompt}}
		turn, err := run(ctx, history, nil, emit)
		c.recordRequest(turn.Usage)

		if err != nil {
			if ctx.Err() == nil {
				send(StreamChunk{Type: ChunkError, Err: err})
			}
			return
		}

		send(StreamChunk{
			Type:         ChunkDone,
			FinishReason: turn.FinishReason,
			Usage:        turn.Usage,
			FullContent:  turn.Content,
		})
	}()

	return out
}
