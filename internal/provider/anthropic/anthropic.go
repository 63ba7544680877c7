// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package anthropic

import (
	"context"
	"errors"
	"os"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// defaultModel is used when ANTHROPIC_MODEL is unset.
const defaultModel = "claude-sonnet-4-5"

// thinkingBudgetTokens is the reasoning budget applied when EnableReasoning
// is set.
const thinkingBudgetTokens = 4096

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	*provider.Core

	client anthropicsdk.Client
	model  string

	cacheMu     sync.RWMutex
	cachePrompt string
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Anthropic provider. Returns an error if the API key is
// missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, stranderr.New(stranderr.CodeProviderRequestInvalid,
			"anthropic: missing api key", stranderr.FieldProvider("anthropic"))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		Core:   provider.NewCore(provider.DefaultConfig()),
		client: anthropicsdk.NewClient(opts...),
		model:  model,
	}, nil
}

// FromEnv constructs a provider from ANTHROPIC_API_KEY and ANTHROPIC_MODEL.
func FromEnv() (*Provider, error) {
	return New(Config{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  os.Getenv("ANTHROPIC_MODEL"),
	})
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Model() string { return p.model }

func (p *Provider) Close() error { return nil }

// knownModels returns the hardcoded set of known Anthropic models.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID:       "claude-opus-4-6",
			Name:     "Claude Opus 4.6",
			Provider: "anthropic",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  200000,
				MaxOutputTokens:   32000,
			},
		},
		{
			ID:       "claude-sonnet-4-5",
			Name:     "Claude Sonnet 4.5",
			Provider: "anthropic",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  200000,
				MaxOutputTokens:   16000,
			},
		},
		{
			ID:       "claude-haiku-4-5",
			Name:     "Claude Haiku 4.5",
			Provider: "anthropic",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				MaxContextTokens:  200000,
				MaxOutputTokens:   8192,
			},
		},
	}
}

func (p *Provider) ListModels(_ context.Context) ([]provider.ModelInfo, error) {
	return knownModels(), nil
}

func (p *Provider) Chat(ctx context.Context, prompt string) (<-chan provider.StreamChunk, error) {
	return p.StartChat(ctx, prompt, p.runTurn), nil
}

func (p *Provider) ChatLoop(ctx context.Context, history []provider.Message, tools []provider.Tool) (*provider.ChatLoopHandle, error) {
	return p.StartChatLoop(ctx, history, tools, p.runTurn), nil
}

// PromptCache marks a prompt prefix for server-side caching. The prefix is
// sent as a system block with an ephemeral cache_control marker on
// subsequent requests.
func (p *Provider) PromptCache(prompt string) error {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cachePrompt = prompt
	return nil
}

// Compact has no native endpoint on Anthropic; only the truncate strategy is
// available.
func (p *Provider) Compact(_ context.Context, history []provider.Message) ([]provider.Message, error) {
	cfg := p.Config()

	switch cfg.CompactStrategy {
	case provider.CompactDisabled:
		return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
			"anthropic: compaction disabled by configuration")
	case provider.CompactTruncate:
		keep := provider.DefaultMaxToolTurns
		if cfg.MaxToolTurns != nil {
			keep = *cfg.MaxToolTurns
		}
		return provider.TruncateHistory(history, keep), nil
	}

	return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
		"anthropic: no native compaction endpoint, set the truncate strategy")
}

// buildParams converts history and tools into MessageNewParams using the
// current configuration.
func (p *Provider) buildParams(history []provider.Message, tools []provider.Tool) (anthropicsdk.MessageNewParams, error) {
	cfg := p.Config()

	msgs, err := convertMessages(history)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(p.model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	system := p.systemBlocks(cfg.SystemPrompt)
	if len(system) > 0 {
		params.System = system
	}

	if cfg.Temperature > 0 {
		params.Temperature = anthropicsdk.Float(cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = anthropicsdk.Float(*cfg.TopP)
	}
	if cfg.TopK != nil {
		params.TopK = anthropicsdk.Int(int64(*cfg.TopK))
	}
	if len(cfg.StopSequences) > 0 {
		params.StopSequences = cfg.StopSequences
	}

	if cfg.EnableReasoning {
		params.Thinking = anthropicsdk.ThinkingConfigParamUnion{
			OfEnabled: &anthropicsdk.ThinkingConfigEnabledParam{
				BudgetTokens: thinkingBudgetTokens,
			},
		}
	}

	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	return params, nil
}

// systemBlocks assembles the system prompt blocks, marking the cached prefix
// when one has been registered via PromptCache.
func (p *Provider) systemBlocks(systemPrompt string) []anthropicsdk.TextBlockParam {
	p.cacheMu.RLock()
	cachePrompt := p.cachePrompt
	p.cacheMu.RUnlock()

	var blocks []anthropicsdk.TextBlockParam
	if cachePrompt != "" {
		blocks = append(blocks, anthropicsdk.TextBlockParam{
			Text:         cachePrompt,
			CacheControl: anthropicsdk.NewCacheControlEphemeralParam(),
		})
	}
	if systemPrompt != "" {
		blocks = append(blocks, anthropicsdk.TextBlockParam{Text: systemPrompt})
	}
	return blocks
}

// convertMessages transforms internal messages into Anthropic SDK message
// params. Tool results travel as user messages carrying tool_result blocks;
// assistant tool calls become tool_use blocks.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, error) {
	var result []anthropicsdk.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			// Handled via the top-level system param.
			continue
		case provider.RoleUser:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case provider.RoleAssistant:
			var blocks []anthropicsdk.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropicsdk.NewTextBlock(""))
			}
			result = append(result, anthropicsdk.NewAssistantMessage(blocks...))
		case provider.RoleTool:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			return nil, stranderr.Errorf(stranderr.CodeProviderRequestInvalid,
				"anthropic: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertTools transforms tool declarations into Anthropic SDK tool params.
func convertTools(tools []provider.Tool) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.Opt(t.Description),
				InputSchema: extractSchema(t.Parameters),
			},
		})
	}
	return result
}

// extractSchema maps a full JSON Schema object (keys "type", "properties",
// "required") into the SDK's ToolInputSchemaParam, which wants Properties
// and Required as separate fields.
func extractSchema(raw map[string]any) anthropicsdk.ToolInputSchemaParam {
	schema := anthropicsdk.ToolInputSchemaParam{}
	if props, ok := raw["properties"]; ok {
		schema.Properties = props
	}
	switch req := raw["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		strs := make([]string, 0, len(req))
		for _, v := range req {
			if s, ok := v.(string); ok {
				strs = append(strs, s)
			}
		}
		schema.Required = strs
	}
	return schema
}

// runTurn issues one streaming Messages request and assembles the turn from
// its SSE events.
func (p *Provider) runTurn(ctx context.Context, history []provider.Message, tools []provider.Tool, emit func(provider.LoopStep) bool) (provider.TurnResult, error) {
	params, err := p.buildParams(history, tools)
	if err != nil {
		return provider.TurnResult{}, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	assembler := provider.NewToolCallAssembler()
	var turn provider.TurnResult
	var content []byte
	stopReason := ""

	for stream.Next() {
		event := stream.Current()

		switch variant := event.AsAny().(type) {
		case anthropicsdk.MessageStartEvent:
			turn.Usage.InputTokens += int(variant.Message.Usage.InputTokens)
			turn.Usage.CachedTokens += int(variant.Message.Usage.CacheReadInputTokens)

		case anthropicsdk.ContentBlockStartEvent:
			if block, ok := variant.ContentBlock.AsAny().(anthropicsdk.ToolUseBlock); ok {
				err := assembler.ProcessDelta(provider.ToolCallDelta{
					Index: int(variant.Index),
					ID:    block.ID,
					Name:  block.Name,
				})
				if err != nil {
					return turn, err
				}
			}

		case anthropicsdk.ContentBlockDeltaEvent:
			switch delta := variant.Delta.AsAny().(type) {
			case anthropicsdk.TextDelta:
				if delta.Text == "" {
					continue
				}
				content = append(content, delta.Text...)
				if !emit(provider.LoopStep{Type: provider.StepContent, Text: delta.Text}) {
					return turn, ctx.Err()
				}
			case anthropicsdk.ThinkingDelta:
				if delta.Thinking == "" {
					continue
				}
				if !emit(provider.LoopStep{Type: provider.StepThinking, Text: delta.Thinking}) {
					return turn, ctx.Err()
				}
			case anthropicsdk.InputJSONDelta:
				if delta.PartialJSON == "" {
					continue
				}
				err := assembler.ProcessDelta(provider.ToolCallDelta{
					Index:          int(variant.Index),
					ArgumentsDelta: delta.PartialJSON,
				})
				if err != nil {
					return turn, err
				}
			}

		case anthropicsdk.MessageDeltaEvent:
			if variant.Delta.StopReason != "" {
				stopReason = string(variant.Delta.StopReason)
			}
			turn.Usage.OutputTokens += int(variant.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return turn, classifyError(err)
	}

	turn.Content = string(content)
	turn.ToolCalls = assembler.Finalize()
	turn.FinishReason = mapStopReason(stopReason, len(turn.ToolCalls) > 0)

	return turn, nil
}

// mapStopReason translates Anthropic stop reasons into the internal grammar.
func mapStopReason(raw string, hasToolCalls bool) provider.FinishReason {
	if hasToolCalls {
		return provider.FinishToolCalls
	}
	switch raw {
	case "end_turn", "stop_sequence", "":
		return provider.FinishStop
	case "max_tokens":
		return provider.FinishLength
	case "tool_use":
		return provider.FinishToolCalls
	case "refusal":
		return provider.FinishContentFilter
	default:
		return provider.FinishReason(raw)
	}
}

// classifyError maps SDK errors onto the error taxonomy.
func classifyError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return stranderr.Wrapf(err, stranderr.CodeProviderAuthUnauthorized, "anthropic: authentication failed")
		case 429:
			return stranderr.Wrapf(err, stranderr.CodeProviderRateLimited, "anthropic: rate limit exceeded")
		default:
			return stranderr.Wrapf(err, stranderr.CodeProviderAPIFailure, "anthropic: api error")
		}
	}
	return stranderr.Wrapf(err, stranderr.CodeProviderNetworkFailure, "anthropic: stream failed")
}
