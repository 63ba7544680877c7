// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package agent_test

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/strand-ai/strand/internal/agent"
	"github.com/strand-ai/strand/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callCounter atomic.Int64

// makeCall fabricates a tool call with a unique id, since identity is
// (name, arguments) only.
func makeCall(name, args string) provider.ToolCall {
	return provider.ToolCall{
		ID:        fmt.Sprintf("call_%d", callCounter.Add(1)),
		Name:      name,
		Arguments: json.RawMessage(args),
	}
}

func TestLoopDetector_ExactDuplicate(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())
	call := makeCall("bash", `{"command":"ls"}`)

	assert.Nil(t, d.Check(call))
	assert.Nil(t, d.Check(call))

	// max_duplicates prior occurrences exist now; the next call triggers.
	detection := d.Check(call)
	require.NotNil(t, detection)
	assert.Equal(t, agent.KindExactDuplicate, detection.Kind)
	assert.Equal(t, 3, detection.Count)
	assert.Equal(t, 1.0, detection.Confidence)
	assert.Equal(t, 1, detection.DetectionCount)
}

func TestLoopDetector_DuplicateIgnoresIDAndKeyOrder(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())

	assert.Nil(t, d.Check(makeCall("add", `{"a":1,"b":2}`)))
	assert.Nil(t, d.Check(makeCall("add", `{"b":2,"a":1}`)))

	detection := d.Check(makeCall("add", `{"a":1,"b":2}`))
	require.NotNil(t, detection)
	assert.Equal(t, agent.KindExactDuplicate, detection.Kind)
}

func TestLoopDetector_DistinctCallsNoDetection(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())

	for i := 0; i < 8; i++ {
		call := makeCall("bash", fmt.Sprintf(`{"command":"cmd%d"}`, i))
		assert.Nil(t, d.Check(call), "pairwise-distinct calls must not fire")
	}
}

func TestLoopDetector_PatternABAB(t *testing.T) {
	d := agent.NewLoopDetector(agent.DetectorConfig{
		MinPatternLength:      2,
		MaxPatternLength:      2,
		MinPatternRepetitions: 2,
		MaxDuplicates:         99, // keep exact-duplicate detection quiet
	})

	a := makeCall("tool_a", `{"p":"a"}`)
	b := makeCall("tool_b", `{"p":"b"}`)

	assert.Nil(t, d.Check(a))
	assert.Nil(t, d.Check(b))
	assert.Nil(t, d.Check(a))

	detection := d.Check(b)
	require.NotNil(t, detection, "A,B,A,B completes the cycle")
	assert.Equal(t, agent.KindPattern, detection.Kind)
	require.Len(t, detection.Pattern, 2)
	assert.Equal(t, "tool_a", detection.Pattern[0].Name)
	assert.Equal(t, "tool_b", detection.Pattern[1].Name)
	assert.Equal(t, 2, detection.Repetitions)
	assert.Equal(t, 0.9, detection.Confidence)
}

func TestLoopDetector_PatternABCABC(t *testing.T) {
	d := agent.NewLoopDetector(agent.DetectorConfig{
		MinPatternLength:      2,
		MaxPatternLength:      5,
		MinPatternRepetitions: 2,
		MaxDuplicates:         99,
	})

	a := makeCall("tool_a", `{"x":1}`)
	b := makeCall("tool_b", `{"x":2}`)
	c := makeCall("tool_c", `{"x":3}`)

	for _, call := range []provider.ToolCall{a, b, c, a, b} {
		assert.Nil(t, d.Check(call))
	}

	detection := d.Check(c)
	require.NotNil(t, detection)
	assert.Equal(t, agent.KindPattern, detection.Kind)
	assert.Len(t, detection.Pattern, 3)
}

func TestLoopDetector_ExactDuplicateTakesPriority(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())
	call := makeCall("bash", `{"command":"ls"}`)

	d.Check(call)
	d.Check(call)
	d.Check(call)

	// The same call also forms an A,A pattern by now, but the duplicate
	// detection wins.
	detection := d.Check(call)
	require.NotNil(t, detection)
	assert.Equal(t, agent.KindExactDuplicate, detection.Kind)
}

func TestLoopDetector_GraduatedResponse(t *testing.T) {
	d := agent.NewLoopDetector(agent.DetectorConfig{
		MaxDuplicates: 1,
		Actions:       []agent.LoopAction{agent.ActionWarn, agent.ActionWarn, agent.ActionTerminate},
	})
	call := makeCall("bash", `{"command":"ls"}`)

	assert.Nil(t, d.Check(call))

	var actions []agent.LoopAction
	for i := 0; i < 4; i++ {
		detection := d.Check(call)
		require.NotNil(t, detection)
		actions = append(actions, detection.Action)
	}

	// Warn, Warn, then Terminate — clamped to the last action thereafter.
	assert.Equal(t, []agent.LoopAction{
		agent.ActionWarn, agent.ActionWarn, agent.ActionTerminate, agent.ActionTerminate,
	}, actions)
}

func TestLoopDetector_WarnCarriesMessage(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())
	call := makeCall("bash", `{"command":"ls"}`)

	d.Check(call)
	d.Check(call)
	detection := d.Check(call)
	require.NotNil(t, detection)
	require.Equal(t, agent.ActionWarn, detection.Action)
	assert.Contains(t, detection.WarningMessage, "LOOP DETECTION WARNING")
	assert.Contains(t, detection.WarningMessage, "bash")
}

func TestLoopDetector_WindowEvictsOldCalls(t *testing.T) {
	d := agent.NewLoopDetector(agent.DetectorConfig{
		WindowSize:    3,
		MaxDuplicates: 2,
		// Pattern detection would fire on homogenous windows; disable by
		// raising the bar out of reach.
		MinPatternRepetitions: 99,
	})

	repeated := makeCall("bash", `{"command":"ls"}`)
	d.Check(repeated)
	d.Check(repeated)

	// Push distinct calls until the duplicates fall out of the window.
	d.Check(makeCall("bash", `{"command":"x"}`))
	d.Check(makeCall("bash", `{"command":"y"}`))
	d.Check(makeCall("bash", `{"command":"z"}`))

	assert.Nil(t, d.Check(repeated), "evicted occurrences do not count")
	assert.Equal(t, 3, d.TrackedCount())
}

func TestLoopDetector_Clear(t *testing.T) {
	d := agent.NewLoopDetector(agent.DefaultDetectorConfig())
	call := makeCall("bash", `{"command":"ls"}`)

	d.Check(call)
	d.Check(call)
	require.NotNil(t, d.Check(call))
	assert.Equal(t, 1, d.DetectionCount())

	d.Clear()
	assert.Equal(t, 0, d.TrackedCount())
	assert.Equal(t, 0, d.DetectionCount())

	// State does not leak into the next run.
	assert.Nil(t, d.Check(call))
	assert.Nil(t, d.Check(call))
	detection := d.Check(call)
	require.NotNil(t, detection)
	assert.Equal(t, 1, detection.DetectionCount)
}
