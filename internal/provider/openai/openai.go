// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package openai

import (
	"context"
	"errors"
	"os"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// defaultModel is used when OPENAI_MODEL is unset.
const defaultModel = "gpt-4o"

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the OpenAI Chat Completions
// API, with compaction via the Responses API.
type Provider struct {
	*provider.Core

	client openaisdk.Client
	model  string
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new OpenAI provider. Returns an error if the API key is
// missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, stranderr.New(stranderr.CodeProviderRequestInvalid,
			"openai: missing api key", stranderr.FieldProvider("openai"))
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
		client: openaisdk.NewClient(opts...),
		model:  model,
	}, nil
}

// FromEnv constructs a provider from OPENAI_API_KEY, OPENAI_MODEL and
// OPENAI_BASE_URL.
func FromEnv() (*Provider, error) {
	return New(Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		Model:   os.Getenv("OPENAI_MODEL"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	})
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Model() string { return p.model }

func (p *Provider) Close() error { return nil }

// knownModels returns the hardcoded set of known OpenAI models.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID:       "gpt-4.1",
			Name:     "GPT-4.1",
			Provider: "openai",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				MaxContextTokens:  128000,
				MaxOutputTokens:   32768,
			},
		},
		{
			ID:       "gpt-4o",
			Name:     "GPT-4o",
			Provider: "openai",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				MaxContextTokens:  128000,
				MaxOutputTokens:   16384,
			},
		},
		{
			ID:       "o3",
			Name:     "o3",
			Provider: "openai",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  200000,
				MaxOutputTokens:   100000,
			},
		},
		{
			ID:       "o4-mini",
			Name:     "o4-mini",
			Provider: "openai",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  200000,
				MaxOutputTokens:   100000,
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

// PromptCache is not a client-side operation on OpenAI: prompt prefixes are
// cached automatically server-side.
func (p *Provider) PromptCache(_ string) error {
	return stranderr.New(stranderr.CodeProviderCachingUnsupported,
		"openai: prompt caching is automatic and cannot be requested explicitly")
}

// buildParams converts history and tools into ChatCompletionNewParams using
// the current configuration.
func (p *Provider) buildParams(history []provider.Message, tools []provider.Tool) (openaisdk.ChatCompletionNewParams, error) {
	cfg := p.Config()

	msgs, err := convertMessages(history, cfg.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(p.model),
		Messages: msgs,
		StreamOptions: openaisdk.ChatCompletionStreamOptionsParam{
			IncludeUsage: param.NewOpt(true),
		},
	}

	if cfg.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(cfg.MaxTokens))
	}

	if cfg.Temperature > 0 {
		params.Temperature = param.NewOpt(cfg.Temperature)
	}

	if cfg.TopP != nil {
		params.TopP = param.NewOpt(*cfg.TopP)
	}

	if len(cfg.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: cfg.StopSequences,
		}
	}

	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	return params, nil
}

// convertMessages transforms internal messages into OpenAI SDK message
// params. The system prompt is prepended as a system message if present.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			result = append(result, openaisdk.SystemMessage(msg.Content))
		case provider.RoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content = openaisdk.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				}
			}
			for _, tc := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openaisdk.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openaisdk.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			result = append(result, openaisdk.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		case provider.RoleTool:
			result = append(result, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, stranderr.Errorf(stranderr.CodeProviderRequestInvalid,
				"openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertTools transforms tool declarations into OpenAI SDK tool params.
func convertTools(tools []provider.Tool) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name,
				Description: param.NewOpt(t.Description),
				Parameters:  shared.FunctionParameters(t.Parameters),
			},
		})
	}
	return result
}

// runTurn issues one streaming Chat Completions request and assembles the
// turn from its SSE deltas.
func (p *Provider) runTurn(ctx context.Context, history []provider.Message, tools []provider.Tool, emit func(provider.LoopStep) bool) (provider.TurnResult, error) {
	params, err := p.buildParams(history, tools)
	if err != nil {
		return provider.TurnResult{}, err
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	assembler := provider.NewToolCallAssembler()
	var turn provider.TurnResult
	var content []byte
	finish := ""

	for stream.Next() {
		chunk := stream.Current()

		for _, choice := range chunk.Choices {
			delta := choice.Delta

			if delta.Content != "" {
				content = append(content, delta.Content...)
				if !emit(provider.LoopStep{Type: provider.StepContent, Text: delta.Content}) {
					return provider.TurnResult{}, ctx.Err()
				}
			}

			for _, tc := range delta.ToolCalls {
				err := assembler.ProcessDelta(provider.ToolCallDelta{
					Index:          int(tc.Index),
					ID:             tc.ID,
					Name:           tc.Function.Name,
					ArgumentsDelta: tc.Function.Arguments,
				})
				if err != nil {
					return provider.TurnResult{}, err
				}
			}

			if choice.FinishReason != "" {
				finish = choice.FinishReason
			}
		}

		// The usage chunk arrives last when stream_options.include_usage is
		// set, typically with no choices.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			turn.Usage = provider.TokenUsage{
				InputTokens:  int(chunk.Usage.PromptTokens),
				OutputTokens: int(chunk.Usage.CompletionTokens),
				CachedTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
			}
		}
	}

	if err := stream.Err(); err != nil {
		return turn, classifyError(err)
	}

	turn.Content = string(content)
	turn.ToolCalls = assembler.Finalize()
	turn.FinishReason = mapFinishReason(finish, len(turn.ToolCalls) > 0)

	return turn, nil
}

// mapFinishReason translates the wire finish_reason. Some OpenAI-compatible
// backends omit it when tool calls end the turn, so assembled calls force
// FinishToolCalls.
func mapFinishReason(raw string, hasToolCalls bool) provider.FinishReason {
	if hasToolCalls {
		return provider.FinishToolCalls
	}
	switch raw {
	case "stop", "":
		return provider.FinishStop
	case "length":
		return provider.FinishLength
	case "tool_calls":
		return provider.FinishToolCalls
	case "content_filter":
		return provider.FinishContentFilter
	default:
		return provider.FinishReason(raw)
	}
}

// classifyError maps SDK errors onto the error taxonomy.
func classifyError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403:
			return stranderr.Wrapf(err, stranderr.CodeProviderAuthUnauthorized, "openai: authentication failed")
		case 429:
			return stranderr.Wrapf(err, stranderr.CodeProviderRateLimited, "openai: rate limit exceeded")
		default:
			return stranderr.Wrapf(err, stranderr.CodeProviderAPIFailure, "openai: api error")
		}
	}
	return stranderr.Wrapf(err, stranderr.CodeProviderNetworkFailure, "openai: stream failed")
}
