// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package tools_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCall(args string) provider.ToolCall {
	return provider.ToolCall{ID: "t1", Name: "run_command", Arguments: json.RawMessage(args)}
}

func TestRunCommand_Success(t *testing.T) {
	tool := tools.RunCommandTool{}

	out, err := tool.Execute(context.Background(), runCall(`{"command":"echo hello"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestRunCommand_NonZeroExitReportedInline(t *testing.T) {
	tool := tools.RunCommandTool{}

	out, err := tool.Execute(context.Background(), runCall(`{"command":"echo oops >&2; exit 3"}`))
	require.NoError(t, err, "non-zero exits are reported to the model, not as errors")
	assert.Contains(t, out, "oops")
	assert.Contains(t, out, "exit status 3")
}

func TestRunCommand_MissingCommand(t *testing.T) {
	tool := tools.RunCommandTool{}

	_, err := tool.Execute(context.Background(), runCall(`{}`))
	require.Error(t, err)
}

func TestRunCommand_Timeout(t *testing.T) {
	tool := tools.RunCommandTool{}

	_, err := tool.Execute(context.Background(), runCall(`{"command":"sleep 5","timeout_seconds":1}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunCommand_Workdir(t *testing.T) {
	dir := t.TempDir()
	tool := tools.RunCommandTool{Workdir: dir}

	out, err := tool.Execute(context.Background(), runCall(`{"command":"pwd"}`))
	require.NoError(t, err)
	assert.Contains(t, out, dir)
}
