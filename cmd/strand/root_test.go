// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears the global viper between tests so bindings from one
// Execute do not leak into the next. initViper re-applies defaults and env
// bindings on every run.
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

// clearProviderEnv blanks the provider API keys so tests never pick up real
// credentials from the host environment.
func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENAI_MODEL", "OPENAI_BASE_URL",
		"ANTHROPIC_API_KEY", "ANTHROPIC_MODEL",
		"GEMINI_API_KEY", "GEMINI_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestRootCommand_Help(t *testing.T) {
	resetViper(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "strand")
	assert.Contains(t, buf.String(), "ask")
	assert.Contains(t, buf.String(), "models")
	assert.Contains(t, buf.String(), "serve")
	assert.Contains(t, buf.String(), "version")
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	resetViper(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "--config")
	assert.Contains(t, buf.String(), "--provider")
	assert.Contains(t, buf.String(), "--model")
}

func TestRootCommand_MissingConfigFile(t *testing.T) {
	resetViper(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"version", "--config", "/nonexistent/strand.yaml"})

	err := root.Execute()
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	resetViper(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"version"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "strand")
}
