// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package tools

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/strand-ai/strand/internal/provider"
	stranderr "github.com/strand-ai/strand/pkg/errors"
)

// defaultCommandTimeout bounds shell executions that do not request their
// own timeout.
const defaultCommandTimeout = 30 * time.Second

// maxCommandTimeout caps the timeout a call may request.
const maxCommandTimeout = 10 * time.Minute

// RunCommandTool executes shell commands. The timeout is the tool's own
// responsibility: the chat loop never imposes one.
type RunCommandTool struct {
	// Workdir is the working directory for commands; empty means the
	// process working directory.
	Workdir string
}

func (t RunCommandTool) Name() string { return "run_command" }

func (t RunCommandTool) Brief() string { return "Run a shell command" }

func (t RunCommandTool) FullDescription() string {
	return "Run a shell command with sh -c and return its combined stdout and stderr. " +
		"Commands are killed after the timeout (default 30s). " +
		"Use timeout_seconds for long-running commands."
}

func (t RunCommandTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Optional timeout in seconds (default 30, max 600)",
			},
		},
		"required": []string{"command"},
	}
}

type runCommandArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Execute runs the command and returns combined output, appending the exit
// status on failure so the model can react to it.
func (t RunCommandTool) Execute(ctx context.Context, call provider.ToolCall) (string, error) {
	var args runCommandArgs
	if err := decodeArgs(call, &args); err != nil {
		return "", err
	}
	if strings.TrimSpace(args.Command) == "" {
		return "", stranderr.New(stranderr.CodeToolInputInvalid,
			"run_command: command is required", stranderr.FieldTool(t.Name()))
	}

	timeout := defaultCommandTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
		if timeout > maxCommandTimeout {
			timeout = maxCommandTimeout
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
	cmd.Dir = t.Workdir

	out, err := cmd.CombinedOutput()
	output := string(out)

	if runCtx.Err() == context.DeadlineExceeded {
		return "", stranderr.Errorf(stranderr.CodeToolExecutionFailure,
			"run_command: command timed out after %s\n%s", timeout, output)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Sprintf("%s\nexit status %d", output, exitErr.ExitCode()), nil
		}
		return "", stranderr.Wrapf(err, stranderr.CodeToolExecutionFailure, "run_command: starting command")
	}

	return output, nil
}
