// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/tools"
	stranderr "github.com/strand-ai/strand/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addTool struct{}

func (addTool) Name() string            { return "add" }
func (addTool) Brief() string           { return "Add two numbers" }
func (addTool) FullDescription() string { return "Add two numbers a and b and return the sum" }

func (addTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

func (addTool) Execute(_ context.Context, call provider.ToolCall) (string, error) {
	var args struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return "", err
	}
	sum, _ := json.Marshal(args.A + args.B)
	return string(sum), nil
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(addTool{}))

	tool, ok := r.Lookup("add")
	require.True(t, ok)
	assert.Equal(t, "add", tool.Name())
	assert.True(t, r.Has("add"))
	assert.False(t, r.Has("sub"))
	assert.Equal(t, []string{"add"}, r.Names())
}

func TestRegistry_DuplicateRegistrationRejected(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(addTool{}))

	err := r.Register(addTool{})
	require.Error(t, err)
	assert.True(t, stranderr.HasCode(err, stranderr.CodeToolDuplicateRegistration))
}

func TestRegistry_ToolsForLLM(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(addTool{}))

	defs := r.ToolsForLLM()
	require.Len(t, defs, 1)
	assert.Equal(t, "add", defs[0].Name)
	assert.Equal(t, "Add two numbers", defs[0].Description,
		"the wire declaration carries the brief description, not the full usage text")
	assert.Equal(t, "object", defs[0].Parameters["type"])
}

func TestRegistry_Execute(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(addTool{}))

	result := r.Execute(context.Background(), provider.ToolCall{
		ID:        "t1",
		Name:      "add",
		Arguments: json.RawMessage(`{"a":1,"b":2}`),
	})
	assert.Equal(t, "t1", result.ToolCallID)
	assert.False(t, result.IsError)
	assert.Equal(t, "3", result.Content)
}

func TestRegistry_ExecuteUnknownToolIsErrorResult(t *testing.T) {
	r := tools.NewRegistry()

	result := r.Execute(context.Background(), provider.ToolCall{
		ID:   "t1",
		Name: "missing",
	})
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "missing")
	assert.Equal(t, "t1", result.ToolCallID)
}

func TestRegistry_ExecuteBadArgumentsIsErrorResult(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(addTool{}))

	result := r.Execute(context.Background(), provider.ToolCall{
		ID:        "t1",
		Name:      "add",
		Arguments: json.RawMessage(`not json`),
	})
	assert.True(t, result.IsError)
	assert.NotEmpty(t, result.Content)
}

func TestDefaultRegistry(t *testing.T) {
	r := tools.DefaultRegistry()
	assert.True(t, r.Has("run_command"))
	assert.True(t, r.Has("read_file"))
	assert.True(t, r.Has("edit_file"))
}
