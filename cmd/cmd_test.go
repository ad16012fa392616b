package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compilerd/service/internal/resolver"
)

func TestReadPrimary(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "models", "m.malloy")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte("source: a is table('a')\n"), 0o644))

	url, content, err := readPrimary(root, file)
	require.NoError(t, err)
	assert.Equal(t, "models/m.malloy", url)
	assert.Equal(t, "source: a is table('a')\n", content)

	url, _, err = readPrimary(t.TempDir(), file)
	require.NoError(t, err)
	assert.Equal(t, "m.malloy", url, "outside root falls back to the base name")

	_, _, err = readPrimary(root, filepath.Join(root, "missing.malloy"))
	assert.Error(t, err)
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		event resolver.Event
		want  string
	}{
		{resolver.Event{Type: resolver.EventImport, Items: []string{"a.malloy", "b.malloy"}}, "Reading a.malloy, b.malloy"},
		{resolver.Event{Type: resolver.EventTableSchemas, Connection: "wh", Items: []string{"orders"}}, "Inspecting orders on wh"},
		{resolver.Event{Type: resolver.EventSQLBlock, Connection: "wh", Items: []string{"recent"}}, "Describing SQL block recent on wh"},
		{resolver.Event{Type: resolver.EventRun, Connection: "wh"}, "Running query on wh"},
		{resolver.Event{Type: resolver.EventError, Message: "boom"}, "boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, describeEvent(tt.event))
	}
}

func TestInlineSpinnerClearsLine(t *testing.T) {
	var buf bytes.Buffer
	stop := startInlineSpinner(&buf, "verifying", []string{"-"}, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	stop()
	out := buf.String()
	assert.Contains(t, out, "- verifying")
	assert.True(t, strings.HasSuffix(out, "\r"))
}

func TestFlagKeysAreRegistered(t *testing.T) {
	for name := range flagKeys {
		found := rootCmd.PersistentFlags().Lookup(name) != nil ||
			serveCmd.Flags().Lookup(name) != nil ||
			compileCmd.Flags().Lookup(name) != nil
		assert.True(t, found, "flag %s", name)
	}
}

func TestCollectReferences(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	write("m.malloy", "import \"lib/base.malloy\"\n")
	write("lib/base.malloy", "source: orders is table('orders')\n")
	write("lib/notes.txt", "not a model")
	write(".cache/stale.malloy", "source: old is table('old')\n")

	refs, err := collectReferences(root, "m.malloy")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "lib/base.malloy", refs[0].URL)
	assert.Equal(t, "source: orders is table('orders')\n", refs[0].Content)

	_, err = collectReferences(filepath.Join(root, "missing"), "m.malloy")
	assert.Error(t, err)
}
