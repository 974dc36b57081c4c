// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-council/internal/artifacts"
	"github.com/pdiddy/research-council/pkg/types"
)

func TestParseID(t *testing.T) {
	id, err := parseID("42", "idea id")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := parseID(bad, "idea id")
		assert.Error(t, err, bad)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a b c", truncate("a\n b\tc", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(types.LogConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = newLogger(types.LogConfig{Level: "bogus"}, &buf)
	assert.False(t, logger.Enabled(context.Background(), -4))
	logger.Info("text line")
	assert.Contains(t, buf.String(), "msg=\"text line\"")
}

func TestRootHelpNamesMailboxDir(t *testing.T) {
	dir := t.TempDir()
	path, err := artifacts.New(dir).WriteMailbox(types.AgentMemo{
		Direction: types.DirectionOutbox, Sender: "Council Agents", Topic: "Council Review", Content: "memo",
	})
	require.NoError(t, err)
	rel, err := filepath.Rel(dir, path)
	require.NoError(t, err)
	top := strings.Split(filepath.ToSlash(rel), "/")[0]
	assert.Contains(t, rootCmd.Long, "agent mailboxes under "+top+"/.")
}
