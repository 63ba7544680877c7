// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// decodeArgs parses a tool call's JSON arguments into dst.
func decodeArgs(call provider.ToolCall, dst any) error {
	raw := call.Arguments
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return stranderr.Wrapf(err, stranderr.CodeToolInputInvalid,
			"%s: invalid arguments", call.Name)
	}
	return nil
}

// maxReadBytes bounds how much file content a single read returns.
const maxReadBytes = 256 * 1024

// ReadFileTool returns file contents.
type ReadFileTool struct{}

func (t ReadFileTool) Name() string { return "read_file" }

func (t ReadFileTool) Brief() string { return "Read a file" }

func (t ReadFileTool) FullDescription() string {
	return "Read a file from disk and return its contents as text. " +
		"Output is truncated at 256KiB."
}

func (t ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path of the file to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t ReadFileTool) Execute(_ context.Context, call provider.ToolCall) (string, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(call, &args); err != nil {
		return "", err
	}
	if args.Path == "" {
		return "", stranderr.New(stranderr.CodeToolInputInvalid, "read_file: path is required")
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return "", stranderr.Wrapf(err, stranderr.CodeToolExecutionFailure, "read_file: reading %s", args.Path)
	}

	if len(data) > maxReadBytes {
		return fmt.Sprintf("%s\n...[truncated %d bytes]", data[:maxReadBytes], len(data)-maxReadBytes), nil
	}
	return string(data), nil
}

// EditFileTool replaces an exact string in a file. The old string must match
// exactly once; this keeps edits unambiguous without line-number bookkeeping.
type EditFileTool struct{}

func (t EditFileTool) Name() string { return "edit_file" }

func (t EditFileTool) Brief() string { return "Edit a file by exact string replacement" }

func (t EditFileTool) FullDescription() string {
	return "Replace an exact occurrence of old_string with new_string in a file. " +
		"old_string must appear exactly once. " +
		"An empty old_string creates the file with new_string as its contents."
}

func (t EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path of the file to edit",
			},
			"old_string": map[string]any{
				"type":        "string",
				"description": "Exact text to replace; empty to create a new file",
			},
			"new_string": map[string]any{
				"type":        "string",
				"description": "Replacement text",
			},
		},
		"required": []string{"path", "new_string"},
	}
}

func (t EditFileTool) Execute(_ context.Context, call provider.ToolCall) (string, error) {
	var args struct {
		Path      string `json:"path"`
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
	if err := decodeArgs(call, &args); err != nil {
		return "", err
	}
	if args.Path == "" {
		return "", stranderr.New(stranderr.CodeToolInputInvalid, "edit_file: path is required")
	}

	if args.OldString == "" {
		if _, err := os.Stat(args.Path); err == nil {
			return "", stranderr.Errorf(stranderr.CodeToolExecutionFailure,
				"edit_file: %s already exists, pass old_string to edit it", args.Path)
		}
		if err := os.WriteFile(args.Path, []byte(args.NewString), 0o644); err != nil {
			return "", stranderr.Wrapf(err, stranderr.CodeToolExecutionFailure, "edit_file: creating %s", args.Path)
		}
		return fmt.Sprintf("created %s", args.Path), nil
	}

	data, err := os.ReadFile(args.Path)
	if err != nil {
		return "", stranderr.Wrapf(err, stranderr.CodeToolExecutionFailure, "edit_file: reading %s", args.Path)
	}
	content := string(data)

	switch count := strings.Count(content, args.OldString); count {
	case 0:
		return "", stranderr.Errorf(stranderr.CodeToolExecutionFailure,
			"edit_file: old_string not found in %s", args.Path)
	case 1:
	default:
		return "", stranderr.Errorf(stranderr.CodeToolExecutionFailure,
			"edit_file: old_string appears %d times in %s, make it unique", count, args.Path)
	}

	updated := strings.Replace(content, args.OldString, args.NewString, 1)
	if err := os.WriteFile(args.Path, []byte(updated), 0o644); err != nil {
		return "", stranderr.Wrapf(err, stranderr.CodeToolExecutionFailure, "edit_file: writing %s", args.Path)
	}

	return fmt.Sprintf("edited %s", args.Path), nil
}
