// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string // nil means the directory is not created
		dirs  []string
		want  map[string]string
	}{
		{
			name: "provider keys trimmed",
			files: map[string]string{
				KeyName("openai"):    "  sk_abc123  \n",
				KeyName("gemini"):    "g_xyz789",
				KeyName("anthropic"): "ak_1\n",
			},
			want: map[string]string{
				"openai-api-key":    "sk_abc123",
				"gemini-api-key":    "g_xyz789",
				"anthropic-api-key": "ak_1",
			},
		},
		{
			name: "missing directory",
			want: map[string]string{},
		},
		{
			name:  "empty directory",
			files: map[string]string{},
			want:  map[string]string{},
		},
		{
			name: "blank files and dotfiles ignored",
			files: map[string]string{
				KeyName("anthropic"): "valid-key",
				"empty-key":          "",
				"whitespace-only":    "   \n\t  ",
				".gitkeep":           "",
				".hidden-key":        "secret",
			},
			want: map[string]string{"anthropic-api-key": "valid-key"},
		},
		{
			name:  "subdirectories ignored",
			files: map[string]string{KeyName("openai"): "sk_real"},
			dirs:  []string{"openai-api-key.d"},
			want:  map[string]string{"openai-api-key": "sk_real"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "secrets")
			if tt.files != nil {
				require.NoError(t, os.Mkdir(dir, 0o700))
				for name, content := range tt.files {
					writeFile(t, dir, name, content)
				}
				for _, d := range tt.dirs {
					require.NoError(t, os.Mkdir(filepath.Join(dir, d), 0o755))
				}
			}
			got, err := Load(dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	got, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoad_SkipsUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file modes")
	}
	dir := t.TempDir()
	writeFile(t, dir, KeyName("gemini"), "value123")
	locked := filepath.Join(dir, KeyName("openai"))
	require.NoError(t, os.WriteFile(locked, []byte("secret"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o600) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"gemini-api-key": "value123"}, got)
}

func TestAPIKey(t *testing.T) {
	keys := map[string]string{"openai-api-key": "sk", "gemini-api-key": ""}

	v, ok := APIKey(keys, "OpenAI")
	assert.True(t, ok)
	assert.Equal(t, "sk", v)

	_, ok = APIKey(keys, "gemini")
	assert.False(t, ok)

	_, ok = APIKey(keys, "anthropic")
	assert.False(t, ok)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}
