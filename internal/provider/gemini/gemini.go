// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// defaultModel is used when GEMINI_MODEL is unset.
const defaultModel = "gemini-2.5-flash"

// Config holds Gemini provider configuration.
type Config struct {
	APIKey string
	Model  string
}

// Provider implements provider.Provider using the Google Gemini API.
type Provider struct {
	*provider.Core

	client *genai.Client
	model  string
}

var _ provider.Provider = (*Provider)(nil)

// New creates a new Gemini provider. Returns an error if the API key is
// missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, stranderr.New(stranderr.CodeProviderRequestInvalid,
			"gemini: missing api key", stranderr.FieldProvider("gemini"))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, stranderr.Wrapf(err, stranderr.CodeProviderNetworkFailure, "gemini: creating client")
	}

	return &Provider{
		Core:   provider.NewCore(provider.DefaultConfig()),
		client: client,
		model:  model,
	}, nil
}

// FromEnv constructs a provider from GEMINI_API_KEY and GEMINI_MODEL.
func FromEnv() (*Provider, error) {
	return New(Config{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	})
}

func (p *Provider) Name() string { return "gemini" }

func (p *Provider) Model() string { return p.model }

func (p *Provider) Close() error { return nil }

// knownModels returns the hardcoded set of known Gemini models.
func knownModels() []provider.ModelInfo {
	return []provider.ModelInfo{
		{
			ID:       "gemini-2.5-pro",
			Name:     "Gemini 2.5 Pro",
			Provider: "gemini",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  1000000,
				MaxOutputTokens:   65536,
			},
		},
		{
			ID:       "gemini-2.5-flash",
			Name:     "Gemini 2.5 Flash",
			Provider: "gemini",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				SupportsThinking:  true,
				MaxContextTokens:  1000000,
				MaxOutputTokens:   65536,
			},
		},
		{
			ID:       "gemini-2.0-flash",
			Name:     "Gemini 2.0 Flash",
			Provider: "gemini",
			Capabilities: provider.ModelCapabilities{
				SupportsTools:     true,
				SupportsVision:    true,
				SupportsStreaming: true,
				MaxContextTokens:  1000000,
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

// PromptCache is not supported through this driver.
func (p *Provider) PromptCache(_ string) error {
	return stranderr.New(stranderr.CodeProviderCachingUnsupported,
		"gemini: prompt caching not supported")
}

// Compact has no native endpoint on Gemini; only the truncate strategy is
// available.
func (p *Provider) Compact(_ context.Context, history []provider.Message) ([]provider.Message, error) {
	cfg := p.Config()

	switch cfg.CompactStrategy {
	case provider.CompactDisabled:
		return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
			"gemini: compaction disabled by configuration")
	case provider.CompactTruncate:
		keep := provider.DefaultMaxToolTurns
		if cfg.MaxToolTurns != nil {
			keep = *cfg.MaxToolTurns
		}
		return provider.TruncateHistory(history, keep), nil
	}

	return nil, stranderr.New(stranderr.CodeProviderCompactionUnsupported,
		"gemini: no native compaction endpoint, set the truncate strategy")
}

// buildConfig converts the provider configuration into a
// genai.GenerateContentConfig.
func (p *Provider) buildConfig(tools []provider.Tool) *genai.GenerateContentConfig {
	cfg := p.Config()

	out := &genai.GenerateContentConfig{}

	if cfg.Temperature > 0 {
		out.Temperature = genai.Ptr(float32(cfg.Temperature))
	}
	if cfg.TopP != nil {
		out.TopP = genai.Ptr(float32(*cfg.TopP))
	}
	if cfg.TopK != nil {
		out.TopK = genai.Ptr(float32(*cfg.TopK))
	}
	if cfg.MaxTokens > 0 {
		out.MaxOutputTokens = int32(cfg.MaxTokens)
	}
	if len(cfg.StopSequences) > 0 {
		out.StopSequences = cfg.StopSequences
	}
	if cfg.SystemPrompt != "" {
		out.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: cfg.SystemPrompt},
			},
		}
	}
	if cfg.EnableReasoning {
		out.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: true,
		}
	}
	if len(tools) > 0 {
		out.Tools = convertTools(tools)
	}

	return out
}

// convertMessages transforms internal messages into genai.Content values.
// Tool results need the original function name, which Gemini requires; it is
// recovered from the assistant call the result answers.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	callNames := make(map[string]string)
	for _, msg := range msgs {
		for _, tc := range msg.ToolCalls {
			callNames[tc.ID] = tc.Name
		}
	}

	var result []*genai.Content
	for _, msg := range msgs {
		switch msg.Role {
		case provider.RoleSystem:
			// Handled via SystemInstruction in the generation config.
			continue
		case provider.RoleUser:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case provider.RoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				args, err := tc.DecodedArguments()
				if err != nil {
					return nil, stranderr.Wrapf(err, stranderr.CodeProviderRequestInvalid,
						"gemini: decoding arguments for tool call %q", tc.Name)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			result = append(result, &genai.Content{Role: "model", Parts: parts})
		case provider.RoleTool:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{
						FunctionResponse: &genai.FunctionResponse{
							ID:       msg.ToolCallID,
							Name:     callNames[msg.ToolCallID],
							Response: map[string]any{"result": msg.Content},
						},
					},
				},
			})
		default:
			return nil, stranderr.Errorf(stranderr.CodeProviderRequestInvalid,
				"gemini: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertTools transforms tool declarations into genai.Tool values.
func convertTools(tools []provider.Tool) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		})
	}
	return []*genai.Tool{
		{FunctionDeclarations: decls},
	}
}

// runTurn issues one streaming GenerateContent request. Gemini delivers tool
// calls as complete function-call parts, so no delta assembly is needed.
func (p *Provider) runTurn(ctx context.Context, history []provider.Message, tools []provider.Tool, emit func(provider.LoopStep) bool) (provider.TurnResult, error) {
	contents, err := convertMessages(history)
	if err != nil {
		return provider.TurnResult{}, err
	}

	config := p.buildConfig(tools)

	var turn provider.TurnResult
	var content []byte
	var calls []provider.AssembledCall
	finish := genai.FinishReasonUnspecified

	for result, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return turn, stranderr.Wrapf(err, stranderr.CodeProviderNetworkFailure, "gemini: stream failed")
		}

		for _, candidate := range result.Candidates {
			if candidate.FinishReason != "" {
				finish = candidate.FinishReason
			}
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					step := provider.LoopStep{Type: provider.StepContent, Text: part.Text}
					if part.Thought {
						step.Type = provider.StepThinking
					} else {
						content = append(content, part.Text...)
					}
					if !emit(step) {
						return turn, ctx.Err()
					}
				}
				if part.FunctionCall != nil {
					raw, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return turn, stranderr.Wrapf(err, stranderr.CodeProviderResponseInvalid,
							"gemini: marshaling arguments for %q", part.FunctionCall.Name)
					}
					id := part.FunctionCall.ID
					if id == "" {
						id = fmt.Sprintf("call_%d", len(calls))
					}
					calls = append(calls, provider.AssembledCall{
						Call: provider.ToolCall{
							ID:        id,
							Name:      part.FunctionCall.Name,
							Arguments: raw,
						},
					})
				}
			}
		}

		if result.UsageMetadata != nil {
			turn.Usage = provider.TokenUsage{
				InputTokens:  int(result.UsageMetadata.PromptTokenCount),
				OutputTokens: int(result.UsageMetadata.CandidatesTokenCount),
				CachedTokens: int(result.UsageMetadata.CachedContentTokenCount),
			}
		}
	}

	turn.Content = string(content)
	turn.ToolCalls = calls
	turn.FinishReason = mapFinishReason(finish, len(calls) > 0)

	return turn, nil
}

// mapFinishReason translates Gemini finish reasons into the internal grammar.
func mapFinishReason(raw genai.FinishReason, hasToolCalls bool) provider.FinishReason {
	if hasToolCalls {
		return provider.FinishToolCalls
	}
	switch raw {
	case genai.FinishReasonStop, genai.FinishReasonUnspecified:
		return provider.FinishStop
	case genai.FinishReasonMaxTokens:
		return provider.FinishLength
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent:
		return provider.FinishContentFilter
	default:
		return provider.FinishReason(raw)
	}
}
