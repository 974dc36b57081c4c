// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets holds provider credentials. Keys either come from a
// directory of plain-text files (filename is the key name, trimmed
// contents the value) or are sealed in the store under a session
// passphrase; see Keyring.
//
// Key files follow the "<provider>-api-key" convention: openai-api-key,
// anthropic-api-key, gemini-api-key.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	if dir == "" {
		return map[string]string{}, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// KeyName is the file name holding the API key for provider.
func KeyName(provider string) string {
	return strings.ToLower(provider) + "-api-key"
}

// APIKey looks up the file-backed key for provider.
func APIKey(keys map[string]string, provider string) (string, bool) {
	v, ok := keys[KeyName(provider)]
	return v, ok && v != ""
}
