// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package provider

// A tool turn is one assistant message carrying tool calls together with the
// contiguous block of tool messages answering those calls.

// toolTurnRanges returns the [start, end) index ranges of every tool turn in
// msgs, oldest first.
func toolTurnRanges(msgs []Message) [][2]int {
	var ranges [][2]int
	i := 0
	for i < len(msgs) {
		if msgs[i].Role == RoleAssistant && len(msgs[i].ToolCalls) > 0 {
			start := i
			i++
			for i < len(msgs) && msgs[i].Role == RoleTool {
				i++
			}
			ranges = append(ranges, [2]int{start, i})
			continue
		}
		i++
	}
	return ranges
}

// PruneToolTurns removes the oldest tool turns until at most maxTurns remain.
// Non-tool messages are never removed, and every surviving tool message still
// references an assistant tool call earlier in the history because turns are
// removed whole. maxTurns <= 0 leaves the history untouched.
func PruneToolTurns(msgs []Message, maxTurns int) []Message {
	if maxTurns <= 0 {
		return msgs
	}

	ranges := toolTurnRanges(msgs)
	if len(ranges) <= maxTurns {
		return msgs
	}

	drop := make(map[int]bool)
	for _, r := range ranges[:len(ranges)-maxTurns] {
		for i := r[0]; i < r[1]; i++ {
			drop[i] = true
		}
	}

	out := msgs[:0]
	for i, m := range msgs {
		if !drop[i] {
			out = append(out, m)
		}
	}
	return out
}

// CountToolTurns returns the number of tool turns in msgs.
func CountToolTurns(msgs []Message) int {
	return len(toolTurnRanges(msgs))
}

// TruncateHistory is the fallback compaction. It works on a copy: every user
// and system message is kept verbatim and in order, and only the most recent
// keepTurns tool turns survive (all of them when keepTurns <= 0). Plain
// assistant messages without tool calls are kept, except those that precede
// the first user message.
func TruncateHistory(msgs []Message, keepTurns int) []Message {
	pruned := PruneToolTurns(CloneHistory(msgs), keepTurns)

	// After pruning, drop assistant text that precedes the first remaining
	// user message; it refers to context that no longer exists.
	firstUser := -1
	for i, m := range pruned {
		if m.Role == RoleUser {
			firstUser = i
			break
		}
	}
	if firstUser <= 0 {
		return pruned
	}

	out := make([]Message, 0, len(pruned))
	for i, m := range pruned {
		if i < firstUser && m.Role == RoleAssistant && len(m.ToolCalls) == 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}
