// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package provider_test

import (
	"encoding/json"
	"testing"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/stretchr/testify/assert"
)

func TestToolCallEqual_IgnoresIDAndKeyOrder(t *testing.T) {
	a := provider.ToolCall{ID: "t1", Name: "add", Arguments: json.RawMessage(`{"a":1,"b":2}`)}
	b := provider.ToolCall{ID: "t2", Name: "add", Arguments: json.RawMessage(`{"b":2,"a":1}`)}
	c := provider.ToolCall{ID: "t3", Name: "add", Arguments: json.RawMessage(`{"a":1,"b":3}`)}
	d := provider.ToolCall{ID: "t4", Name: "sub", Arguments: json.RawMessage(`{"a":1,"b":2}`)}

	assert.True(t, a.Equal(b), "id and key order are not part of identity")
	assert.False(t, a.Equal(c), "different argument values differ")
	assert.False(t, a.Equal(d), "different names differ")
}

func TestToolCallEqual_EmptyArguments(t *testing.T) {
	a := provider.ToolCall{Name: "ping"}
	b := provider.ToolCall{Name: "ping", Arguments: json.RawMessage(`{}`)}

	assert.True(t, a.Equal(b))
}

func TestToolCallClone_Independent(t *testing.T) {
	orig := provider.ToolCall{ID: "t1", Name: "add", Arguments: json.RawMessage(`{"a":1}`)}
	dup := orig.Clone()
	dup.Arguments[1] = 'x'

	assert.JSONEq(t, `{"a":1}`, string(orig.Arguments))
}

func TestMessageClone_DeepCopiesToolCalls(t *testing.T) {
	orig := provider.Message{
		Role:      provider.RoleAssistant,
		ToolCalls: []provider.ToolCall{{ID: "t1", Name: "add", Arguments: json.RawMessage(`{}`)}},
	}
	dup := orig.Clone()
	dup.ToolCalls[0].Name = "changed"

	assert.Equal(t, "add", orig.ToolCalls[0].Name)
}

func TestDecodedArguments(t *testing.T) {
	call := provider.ToolCall{Arguments: json.RawMessage(`{"a":1}`)}
	args, err := call.DecodedArguments()
	assert.NoError(t, err)
	assert.Equal(t, float64(1), args["a"])

	empty := provider.ToolCall{}
	args, err = empty.DecodedArguments()
	assert.NoError(t, err)
	assert.Empty(t, args)

	bad := provider.ToolCall{Arguments: json.RawMessage(`{`)}
	_, err = bad.DecodedArguments()
	assert.Error(t, err)
}

func TestTokenUsage(t *testing.T) {
	u := provider.TokenUsage{InputTokens: 10, OutputTokens: 5, CachedTokens: 3}
	assert.Equal(t, 15, u.Total())

	u.Add(provider.TokenUsage{InputTokens: 1, OutputTokens: 2, CachedTokens: 4})
	assert.Equal(t, 11, u.InputTokens)
	assert.Equal(t, 7, u.OutputTokens)
	assert.Equal(t, 7, u.CachedTokens)
}

func TestConfigClone_Independent(t *testing.T) {
	topP := 0.9
	turns := 5
	cfg := provider.Config{
		TopP:          &topP,
		MaxToolTurns:  &turns,
		StopSequences: []string{"END"},
		ExtraOptions:  map[string]any{"seed": 42},
	}

	dup := cfg.Clone()
	*dup.TopP = 0.1
	*dup.MaxToolTurns = 1
	dup.StopSequences[0] = "STOP"
	dup.ExtraOptions["seed"] = 7

	assert.Equal(t, 0.9, *cfg.TopP)
	assert.Equal(t, 5, *cfg.MaxToolTurns)
	assert.Equal(t, "END", cfg.StopSequences[0])
	assert.Equal(t, 42, cfg.ExtraOptions["seed"])
}

func TestDefaultConfig(t *testing.T) {
	cfg := provider.DefaultConfig()
	assert.Equal(t, 1.0, cfg.Temperature)
	assert.Equal(t, 4096, cfg.MaxTokens)
	if assert.NotNil(t, cfg.MaxToolTurns) {
		assert.Equal(t, provider.DefaultMaxToolTurns, *cfg.MaxToolTurns)
	}
}
