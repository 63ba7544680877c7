// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package openai

import (
	"context"
	"encoding/json"

	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// compactPath is the Responses API compaction endpoint, relative to the
// client base URL.
const compactPath = "responses/compact"

// compactRequest is the wire shape sent to /responses/compact.
type compactRequest struct {
	Model string         `json:"model"`
	Input []compactInput `json:"input"`
}

type compactInput struct {
	Type       string `json:"type"`
	Role       string `json:"role,omitempty"`
	Content    string `json:"content,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// compactResponse carries the compacted sequence. Items are kept raw: the
// endpoint may return message items or provider-opaque compacted items, and
// the latter have no schema we depend on.
type compactResponse struct {
	Output []json.RawMessage `json:"output"`
}

// Compact compresses the history according to the configured strategy. The
// native path posts the conversation to the Responses compaction endpoint;
// user messages come back verbatim while older assistant and tool content
// may be replaced by opaque summary items.
func (p *Provider) Compact(ctx context.Context, history []provider.Message) ([]provider.Message, error) {
	cfg := p.Config()

	switch cfg.CompactStrategy {
	case provider.CompactDisabled:
		return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
			"openai: compaction disabled by configuration")
	case provider.CompactTruncate:
		keep := provider.DefaultMaxToolTurns
		if cfg.MaxToolTurns != nil {
			keep = *cfg.MaxToolTurns
		}
		return provider.TruncateHistory(history, keep), nil
	case provider.CompactSummarize:
		return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
			"openai: summarize strategy not supported, use native compaction")
	}

	return p.compactNative(ctx, history)
}

func (p *Provider) compactNative(ctx context.Context, history []provider.Message) ([]provider.Message, error) {
	req := compactRequest{
		Model: p.model,
		Input: make([]compactInput, 0, len(history)),
	}
	for _, msg := range history {
		req.Input = append(req.Input, compactInput{
			Type:       "message",
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		})
	}

	var resp compactResponse
	if err := p.client.Post(ctx, compactPath, req, &resp); err != nil {
		return nil, classifyError(err)
	}

	compacted := make([]provider.Message, 0, len(resp.Output))
	for _, raw := range resp.Output {
		msg, err := decodeCompactItem(raw)
		if err != nil {
			return nil, err
		}
		compacted = append(compacted, msg)
	}

	return compacted, nil
}

// decodeCompactItem converts one output item back into a Message. Message
// items map onto their role; compacted items become assistant messages whose
// content is the opaque summary payload, preserved for resubmission.
func decodeCompactItem(raw json.RawMessage) (provider.Message, error) {
	var item struct {
		Type       string `json:"type"`
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	}
	if err := json.Unmarshal(raw, &item); err != nil {
		return provider.Message{}, stranderr.Wrapf(err, stranderr.CodeProviderResponseInvalid,
			"openai: decoding compact output item")
	}

	if item.Type == "message" {
		switch item.Role {
		case "system", "user", "assistant":
			return provider.Message{Role: provider.Role(item.Role), Content: item.Content}, nil
		case "tool":
			// A tool message is only valid when it still names the call it
			// answers; an unpaired one would orphan the history.
			if item.ToolCallID == "" {
				return provider.Message{}, stranderr.New(stranderr.CodeProviderResponseInvalid,
					"openai: tool item in compact output is missing tool_call_id")
			}
			return provider.Message{
				Role:       provider.RoleTool,
				Content:    item.Content,
				ToolCallID: item.ToolCallID,
			}, nil
		}
		return provider.Message{}, stranderr.Errorf(stranderr.CodeProviderResponseInvalid,
			"openai: unknown role %q in compact output", item.Role)
	}

	return provider.Message{Role: provider.RoleAssistant, Content: item.Content}, nil
}
