// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

// Package tools defines the Tool interface and Registry used by the agent
// loop, plus the built-in tool implementations.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// Tool is an executable action exposed to the model. Brief is the short
// description forwarded as the declaration description; FullDescription
// carries the complete usage details and is not sent by ToolsForLLM.
type Tool interface {
	Name() string
	Brief() string
	FullDescription() string
	Parameters() map[string]any
	Execute(ctx context.Context, call provider.ToolCall) (string, error)
}

// Registry maps tool names to their implementations and executes requested
// calls. It is safe for concurrent use; the internal lock is released before
// a tool runs, so parallel tool calls execute concurrently.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return stranderr.Errorf(stranderr.CodeToolDuplicateRegistration,
			"tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolsForLLM returns the declarations to forward to the provider, sorted by
// name for a stable request shape. Only the brief description goes on the
// wire; the full usage text stays client-side.
func (r *Registry) ToolsForLLM() []provider.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]provider.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, provider.Tool{
			Name:        tool.Name(),
			Description: tool.Brief(),
			Parameters:  tool.Parameters(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the requested call and returns its result. Failures — an
// unknown tool, bad arguments, or a tool-internal error — are encoded as
// error results addressed to the model, never as panics or out-of-band
// errors.
func (r *Registry) Execute(ctx context.Context, call provider.ToolCall) provider.ToolResult {
	tool, ok := r.Lookup(call.Name)
	if !ok {
		return provider.ToolResult{
			ToolCallID: call.ID,
			Content:    "tool " + call.Name + " is not registered",
			IsError:    true,
		}
	}

	output, err := tool.Execute(ctx, call)
	if err != nil {
		return provider.ToolResult{
			ToolCallID: call.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}

	return provider.ToolResult{
		ToolCallID: call.ID,
		Content:    output,
	}
}

// DefaultRegistry returns a registry with the built-in tools registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, tool := range []Tool{
		RunCommandTool{},
		ReadFileTool{},
		EditFileTool{},
	} {
		// Built-in names are unique by construction.
		_ = r.Register(tool)
	}
	return r
}
