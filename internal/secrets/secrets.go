// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strand Contributors

// Package secrets resolves provider API keys, falling back to the OS
// keyring when neither the environment nor the config file supplies one.
package secrets

import (
	"errors"
	"os"

	stranderr "github.com/strand-ai/strand/pkg/errors"
	"github.com/zalando/go-keyring"
)

// keyringService namespaces strand's entries in the OS keyring.
const keyringService = "strand"

// Store abstracts the keyring so tests can substitute an in-memory fake.
type Store interface {
	Retrieve(key string) (string, error)
	Save(key, value string) error
	Delete(key string) error
}

// KeyringStore implements Store using the OS keyring.
type KeyringStore struct{}

func (KeyringStore) Retrieve(key string) (string, error) {
	value, err := keyring.Get(keyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", stranderr.Wrapf(err, stranderr.CodeSecretsKeyringFailure, "reading %q from keyring", key)
	}
	return value, nil
}

func (KeyringStore) Save(key, value string) error {
	if err := keyring.Set(keyringService, key, value); err != nil {
		return stranderr.Wrapf(err, stranderr.CodeSecretsKeyringFailure, "storing %q in keyring", key)
	}
	return nil
}

func (KeyringStore) Delete(key string) error {
	if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return stranderr.Wrapf(err, stranderr.CodeSecretsKeyringFailure, "deleting %q from keyring", key)
	}
	return nil
}

// ResolveAPIKey returns the first available key: the environment variable,
// the configured value, then the keyring entry. Keyring errors are swallowed
// into an empty result; a missing key is reported by the caller with better
// context.
func ResolveAPIKey(store Store, envVar, configured, keyringKey string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if configured != "" {
		return configured
	}
	if store == nil {
		return ""
	}
	value, err := store.Retrieve(keyringKey)
	if err != nil {
		return ""
	}
	return value
}
