// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package agent

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/strand-ai/strand/internal/provider"
)

// LoopAction is what the orchestrator should do about a detection.
type LoopAction string

const (
	// ActionContinue ignores the detection.
	ActionContinue LoopAction = "continue"
	// ActionWarn injects a warning into the next tool result.
	ActionWarn LoopAction = "warn"
	// ActionTerminate aborts the chat loop.
	ActionTerminate LoopAction = "terminate"
)

// DetectionKind discriminates detection types.
type DetectionKind string

const (
	// KindExactDuplicate is the same tool called with the same arguments
	// repeatedly.
	KindExactDuplicate DetectionKind = "exact_duplicate"
	// KindPattern is a repeating sequence of tool calls.
	KindPattern DetectionKind = "pattern"
)

// DetectorConfig tunes the loop detector.
type DetectorConfig struct {
	// WindowSize bounds how many recent calls are tracked.
	WindowSize int
	// MaxDuplicates is how many identical prior calls trigger a detection.
	MaxDuplicates int
	// MinPatternLength and MaxPatternLength bound the cycle lengths checked.
	MinPatternLength int
	MaxPatternLength int
	// MinPatternRepetitions is how many consecutive repetitions of a cycle
	// trigger a detection.
	MinPatternRepetitions int
	// Actions is the graduated response: the nth detection maps to
	// Actions[n-1], clamped to the last entry.
	Actions []LoopAction
}

// DefaultDetectorConfig returns the standard tuning.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		WindowSize:            10,
		MaxDuplicates:         2,
		MinPatternLength:      2,
		MaxPatternLength:      5,
		MinPatternRepetitions: 2,
		Actions:               []LoopAction{ActionWarn, ActionWarn, ActionTerminate},
	}
}

// Detection is one flagged repetition.
type Detection struct {
	Kind DetectionKind

	// Call and Count are set for exact duplicates: the repeated call and
	// how many times it has now appeared in the window.
	Call  provider.ToolCall
	Count int

	// Pattern and Repetitions are set for pattern detections.
	Pattern     []provider.ToolCall
	Repetitions int

	Confidence float64
	Suggestion string

	// Action is the graduated response for this detection.
	Action LoopAction

	// DetectionCount is how many detections have fired since the last
	// Clear, this one included.
	DetectionCount int

	// WarningMessage is set when Action is ActionWarn; the orchestrator
	// prepends it to the corresponding tool result.
	WarningMessage string
}

type callRecord struct {
	call      provider.ToolCall
	signature string
	at        time.Time
}

// LoopDetector watches the stream of requested tool calls and flags
// repetitive behaviour before it burns budget. It is driven from the
// orchestrator's task and is not safe for concurrent use.
type LoopDetector struct {
	config         DetectorConfig
	recent         []callRecord
	detectionCount int
}

// NewLoopDetector creates a detector. Zero-valued config fields fall back to
// the defaults.
func NewLoopDetector(config DetectorConfig) *LoopDetector {
	defaults := DefaultDetectorConfig()
	if config.WindowSize <= 0 {
		config.WindowSize = defaults.WindowSize
	}
	if config.MaxDuplicates <= 0 {
		config.MaxDuplicates = defaults.MaxDuplicates
	}
	if config.MinPatternLength <= 0 {
		config.MinPatternLength = defaults.MinPatternLength
	}
	if config.MaxPatternLength <= 0 {
		config.MaxPatternLength = defaults.MaxPatternLength
	}
	if config.MinPatternRepetitions <= 0 {
		config.MinPatternRepetitions = defaults.MinPatternRepetitions
	}
	if len(config.Actions) == 0 {
		config.Actions = defaults.Actions
	}
	return &LoopDetector{config: config}
}

// signature renders a call's (name, arguments) identity. Argument object key
// order is insignificant; the id is deliberately excluded.
func signature(call provider.ToolCall) string {
	return call.Name + ":" + canonicalArguments(call.Arguments)
}

// canonicalArguments produces an order-insensitive rendering of the argument
// payload. encoding/json marshals map keys sorted, so a decode-then-encode
// round trip canonicalises object key order.
func canonicalArguments(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

// Check inspects a newly requested call. It returns a Detection when the
// call completes a duplicate run or a cycle, nil otherwise. Exact-duplicate
// detection takes priority over pattern detection within one check.
func (d *LoopDetector) Check(call provider.ToolCall) *Detection {
	sig := signature(call)

	duplicates := d.countInWindow(sig)
	d.record(call, sig)

	if duplicates >= d.config.MaxDuplicates {
		detection := &Detection{
			Kind:       KindExactDuplicate,
			Call:       call.Clone(),
			Count:      duplicates + 1,
			Confidence: 1.0,
			Suggestion: fmt.Sprintf(
				"The tool %q has been called %d times with identical arguments. This appears to be an unproductive loop.",
				call.Name, duplicates+1),
		}
		d.applyActionPolicy(detection)
		return detection
	}

	if detection := d.checkPattern(); detection != nil {
		d.applyActionPolicy(detection)
		return detection
	}

	return nil
}

// DetectionCount returns how many detections have fired since the last Clear.
func (d *LoopDetector) DetectionCount() int {
	return d.detectionCount
}

// TrackedCount returns how many recent calls are in the window.
func (d *LoopDetector) TrackedCount() int {
	return len(d.recent)
}

// Clear resets the window and the detection count. Invoke it after a
// terminate so state does not leak into a subsequent loop.
func (d *LoopDetector) Clear() {
	d.recent = nil
	d.detectionCount = 0
}

func (d *LoopDetector) countInWindow(sig string) int {
	count := 0
	for _, rec := range d.recent {
		if rec.signature == sig {
			count++
		}
	}
	return count
}

func (d *LoopDetector) record(call provider.ToolCall, sig string) {
	d.recent = append(d.recent, callRecord{call: call.Clone(), signature: sig, at: time.Now()})
	if len(d.recent) > d.config.WindowSize {
		d.recent = d.recent[len(d.recent)-d.config.WindowSize:]
	}
}

// checkPattern looks for a trailing cycle: for each candidate length L, the
// last L calls are compared with the preceding blocks of L until they stop
// matching.
func (d *LoopDetector) checkPattern() *Detection {
	for length := d.config.MinPatternLength; length <= d.config.MaxPatternLength; length++ {
		if len(d.recent) < length*d.config.MinPatternRepetitions {
			continue
		}

		repetitions := d.trailingRepetitions(length)
		if repetitions < d.config.MinPatternRepetitions {
			continue
		}

		pattern := make([]provider.ToolCall, 0, length)
		for _, rec := range d.recent[len(d.recent)-length:] {
			pattern = append(pattern, rec.call.Clone())
		}

		names := make([]string, 0, length)
		for _, call := range pattern {
			names = append(names, call.Name)
		}

		return &Detection{
			Kind:        KindPattern,
			Pattern:     pattern,
			Repetitions: repetitions,
			Confidence:  0.9,
			Suggestion: fmt.Sprintf(
				"Detected a repeating cycle of %d tool calls [%s], repeated %d times.",
				length, strings.Join(names, ", "), repetitions),
		}
	}

	return nil
}

// trailingRepetitions counts how many consecutive trailing blocks of the
// given length are identical.
func (d *LoopDetector) trailingRepetitions(length int) int {
	repetitions := 1
	last := len(d.recent) - length
	for start := last - length; start >= 0; start -= length {
		if !d.blocksEqual(start, last, length) {
			break
		}
		repetitions++
	}
	return repetitions
}

func (d *LoopDetector) blocksEqual(a, b, length int) bool {
	for i := 0; i < length; i++ {
		if d.recent[a+i].signature != d.recent[b+i].signature {
			return false
		}
	}
	return true
}

func (d *LoopDetector) applyActionPolicy(detection *Detection) {
	d.detectionCount++
	detection.DetectionCount = d.detectionCount

	idx := d.detectionCount - 1
	if idx >= len(d.config.Actions) {
		idx = len(d.config.Actions) - 1
	}
	detection.Action = d.config.Actions[idx]

	if detection.Action == ActionWarn {
		detection.WarningMessage = d.warningMessage(detection)
	}
}

func (d *LoopDetector) warningMessage(detection *Detection) string {
	var what string
	switch detection.Kind {
	case KindExactDuplicate:
		what = fmt.Sprintf("You have called the tool %q with identical arguments %d times",
			detection.Call.Name, detection.Count)
	case KindPattern:
		names := make([]string, 0, len(detection.Pattern))
		for _, call := range detection.Pattern {
			names = append(names, call.Name)
		}
		what = fmt.Sprintf("You are repeating a cycle of %d tool calls [%s] (%d repetitions)",
			len(detection.Pattern), strings.Join(names, " -> "), detection.Repetitions)
	}

	return fmt.Sprintf(
		"LOOP DETECTION WARNING (%d of %d before termination): %s.\n"+
			"This appears to be unproductive. Try a different approach, a different tool, "+
			"or explain what you have tried and why it is not working. "+
			"Continuing the same pattern will terminate the conversation.",
		detection.DetectionCount, len(d.config.Actions), what)
}
