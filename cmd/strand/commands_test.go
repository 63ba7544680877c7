// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/strand-ai/strand/internal/provider"
	"github.com/strand-ai/strand/internal/provider/openai"
	stranderr "github.com/strand-ai/strand/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskCommand_RequiresAPIKey(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"ask", "hello"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, stranderr.HasCode(err, stranderr.CodeProviderRequestInvalid))
	assert.Contains(t, err.Error(), "api key")
}

func TestAskCommand_UnknownProviderRejected(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"ask", "--provider", "cohere", "hello"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, stranderr.HasCode(err, stranderr.CodeConfigInvalidValue))
}

func TestAskCommand_RequiresPrompt(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"ask"})

	err := root.Execute()
	assert.Error(t, err)
}

func TestConfigShowCommand_Defaults(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"config", "show"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "provider: openai")
	assert.Contains(t, buf.String(), "max_rounds: 10")
	assert.Contains(t, buf.String(), "listen: 127.0.0.1:8740")
}

func TestConfigShowCommand_RedactsAPIKeys(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-secret-value")

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"config", "show"})

	err := root.Execute()
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "sk-secret-value")
	assert.Contains(t, buf.String(), "<redacted>")
}

func TestModelsCommand_NoProvidersConfigured(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"models"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "no providers configured")
}

func TestModelsCommand_ListsKnownModels(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"models"})

	err := root.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "PROVIDER")
	assert.Contains(t, buf.String(), "openai")
	assert.Contains(t, buf.String(), "gpt-4o")
}

func TestServeCommand_NoProvidersFails(t *testing.T) {
	resetViper(t)
	clearProviderEnv(t)

	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"serve"})

	err := root.Execute()
	require.Error(t, err)
	assert.True(t, stranderr.HasCode(err, stranderr.CodeServerStartFailure))
}

func TestResolveDefaultProvider(t *testing.T) {
	p, err := openai.New(openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)

	providers := map[string]provider.Provider{"openai": p}

	// The configured default wins when it was constructed.
	assert.Equal(t, "openai", resolveDefaultProvider("openai", providers))

	// An unavailable default falls back to whatever is available.
	assert.Equal(t, "openai", resolveDefaultProvider("anthropic", providers))
	assert.Equal(t, "openai", resolveDefaultProvider("", providers))

	// Nothing constructed, nothing to pick.
	assert.Empty(t, resolveDefaultProvider("openai", nil))
}
