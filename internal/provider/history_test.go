// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package provider_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toolTurn builds one assistant-with-calls message plus its tool results.
func toolTurn(n, results int) []provider.Message {
	var calls []provider.ToolCall
	for i := 0; i < results; i++ {
		calls = append(calls, provider.ToolCall{
			ID:        fmt.Sprintf("turn%d_call%d", n, i),
			Name:      "search",
			Arguments: json.RawMessage(`{}`),
		})
	}
	msgs := []provider.Message{
		{Role: provider.RoleAssistant, Content: fmt.Sprintf("turn %d", n), ToolCalls: calls},
	}
	for _, call := range calls {
		msgs = append(msgs, provider.Message{
			Role:       provider.RoleTool,
			ToolCallID: call.ID,
			Content:    "result",
		})
	}
	return msgs
}

// assertPairing checks that every tool message references an assistant tool
// call appearing earlier in the history.
func assertPairing(t *testing.T, msgs []provider.Message) {
	t.Helper()
	seen := make(map[string]bool)
	for _, msg := range msgs {
		for _, call := range msg.ToolCalls {
			seen[call.ID] = true
		}
		if msg.Role == provider.RoleTool {
			assert.True(t, seen[msg.ToolCallID],
				"tool message %q has no earlier matching assistant call", msg.ToolCallID)
		}
	}
}

func TestPruneToolTurns_NoToolsUntouched(t *testing.T) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: "be helpful"},
		{Role: provider.RoleUser, Content: "hi"},
		{Role: provider.RoleAssistant, Content: "hello"},
	}

	pruned := provider.PruneToolTurns(provider.CloneHistory(msgs), 3)
	assert.Len(t, pruned, 3)
}

func TestPruneToolTurns_UnderLimitUntouched(t *testing.T) {
	msgs := []provider.Message{{Role: provider.RoleUser, Content: "go"}}
	msgs = append(msgs, toolTurn(1, 1)...)
	msgs = append(msgs, toolTurn(2, 1)...)

	pruned := provider.PruneToolTurns(provider.CloneHistory(msgs), 3)
	assert.Equal(t, len(msgs), len(pruned))
	assert.Equal(t, 2, provider.CountToolTurns(pruned))
}

func TestPruneToolTurns_RemovesOldestTurns(t *testing.T) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: "sys"},
		{Role: provider.RoleUser, Content: "go"},
	}
	msgs = append(msgs, toolTurn(1, 1)...)
	msgs = append(msgs, toolTurn(2, 2)...)
	msgs = append(msgs, toolTurn(3, 1)...)
	msgs = append(msgs, provider.Message{Role: provider.RoleAssistant, Content: "done"})

	pruned := provider.PruneToolTurns(provider.CloneHistory(msgs), 2)

	assert.Equal(t, 2, provider.CountToolTurns(pruned))
	assertPairing(t, pruned)

	// The oldest turn's messages are gone; turns 2 and 3 survive.
	for _, msg := range pruned {
		assert.NotContains(t, msg.Content, "turn 1")
		assert.NotEqual(t, "turn1_call0", msg.ToolCallID)
	}

	// Non-tool messages are never removed.
	assert.Equal(t, provider.RoleSystem, pruned[0].Role)
	assert.Equal(t, provider.RoleUser, pruned[1].Role)
	assert.Equal(t, "done", pruned[len(pruned)-1].Content)
}

func TestPruneToolTurns_MultipleResultsRemovedWithTurn(t *testing.T) {
	msgs := []provider.Message{{Role: provider.RoleUser, Content: "go"}}
	msgs = append(msgs, toolTurn(1, 3)...)
	msgs = append(msgs, toolTurn(2, 1)...)

	pruned := provider.PruneToolTurns(provider.CloneHistory(msgs), 1)

	require.Equal(t, 1, provider.CountToolTurns(pruned))
	assertPairing(t, pruned)
	// user + assistant + one result.
	assert.Len(t, pruned, 3)
}

func TestPruneToolTurns_ZeroMeansUnlimited(t *testing.T) {
	msgs := toolTurn(1, 1)
	msgs = append(msgs, toolTurn(2, 1)...)

	pruned := provider.PruneToolTurns(provider.CloneHistory(msgs), 0)
	assert.Equal(t, 2, provider.CountToolTurns(pruned))
}

func TestTruncateHistory_KeepsUserMessagesVerbatim(t *testing.T) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: "sys"},
		{Role: provider.RoleUser, Content: "first question"},
	}
	msgs = append(msgs, toolTurn(1, 1)...)
	msgs = append(msgs, provider.Message{Role: provider.RoleUser, Content: "second question"})
	msgs = append(msgs, toolTurn(2, 1)...)
	msgs = append(msgs, toolTurn(3, 1)...)

	truncated := provider.TruncateHistory(msgs, 1)

	var users []string
	for _, msg := range truncated {
		if msg.Role == provider.RoleUser {
			users = append(users, msg.Content)
		}
	}
	assert.Equal(t, []string{"first question", "second question"}, users)
	assert.Equal(t, 1, provider.CountToolTurns(truncated))
	assertPairing(t, truncated)

	// The input is not mutated.
	assert.Equal(t, 3, provider.CountToolTurns(msgs))
}
