// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package provider

import (
	"encoding/json"
	"sort"
	"strings"

	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// ToolCallAssembler reconstructs complete tool calls from streamed deltas.
//
// Providers emit tool calls as fragments keyed by an index: the first delta
// for a call carries (index, id, name), later deltas may carry only the
// index and an arguments fragment. The assembler correlates fragments by
// index and concatenates argument text in arrival order; the accumulated
// JSON is parsed only at finalisation.
type ToolCallAssembler struct {
	calls map[int]*partialToolCall
}

type partialToolCall struct {
	index int
	id    string
	name  string
	args  strings.Builder
}

// AssembledCall is one finalised tool call. Err is non-nil when the
// accumulated arguments failed to parse; the call is still returned with
// empty-object arguments so the caller can surface a failed tool call
// instead of aborting the loop.
type AssembledCall struct {
	Call ToolCall
	Err  error
}

// NewToolCallAssembler creates an empty assembler.
func NewToolCallAssembler() *ToolCallAssembler {
	return &ToolCallAssembler{calls: make(map[int]*partialToolCall)}
}

// ProcessDelta folds one fragment into the assembler. The (id, name) pair is
// idempotent per index: a repeat with the same value is ignored, a repeat
// with a different value is a protocol violation.
func (a *ToolCallAssembler) ProcessDelta(delta ToolCallDelta) error {
	call, ok := a.calls[delta.Index]
	if !ok {
		call = &partialToolCall{index: delta.Index}
		a.calls[delta.Index] = call
	}

	if delta.ID != "" {
		if call.id != "" && call.id != delta.ID {
			return stranderr.Errorf(stranderr.CodeProviderProtocolViolation,
				"conflicting tool call id at index %d: %q then %q", delta.Index, call.id, delta.ID)
		}
		call.id = delta.ID
	}

	if delta.Name != "" {
		if call.name != "" && call.name != delta.Name {
			return stranderr.Errorf(stranderr.CodeProviderProtocolViolation,
				"conflicting tool call name at index %d: %q then %q", delta.Index, call.name, delta.Name)
		}
		call.name = delta.Name
	}

	if delta.ArgumentsDelta != "" {
		call.args.WriteString(delta.ArgumentsDelta)
	}

	return nil
}

// IsEmpty reports whether any fragments have been recorded.
func (a *ToolCallAssembler) IsEmpty() bool {
	return len(a.calls) == 0
}

// Drain resets the assembler for reuse across turns.
func (a *ToolCallAssembler) Drain() {
	a.calls = make(map[int]*partialToolCall)
}

// Finalize returns the assembled calls ordered by ascending provider index
// and resets the assembler. Argument payloads are checked to be valid JSON
// (any JSON value is accepted); an empty accumulation yields an empty object.
func (a *ToolCallAssembler) Finalize() []AssembledCall {
	partials := make([]*partialToolCall, 0, len(a.calls))
	for _, call := range a.calls {
		partials = append(partials, call)
	}
	sort.Slice(partials, func(i, j int) bool { return partials[i].index < partials[j].index })

	out := make([]AssembledCall, 0, len(partials))
	for _, partial := range partials {
		assembled := AssembledCall{
			Call: ToolCall{
				ID:        partial.id,
				Name:      partial.name,
				Arguments: json.RawMessage("{}"),
			},
		}

		raw := partial.args.String()
		if raw != "" {
			if json.Valid([]byte(raw)) {
				assembled.Call.Arguments = json.RawMessage(raw)
			} else {
				assembled.Err = stranderr.Errorf(stranderr.CodeProviderResponseInvalid,
					"tool call %q arguments are not valid JSON", partial.name)
			}
		}

		out = append(out, assembled)
	}

	a.Drain()
	return out
}
