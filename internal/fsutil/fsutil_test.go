package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name string
		path string
		data []byte
	}{
		{
			name: "write to new file",
			path: filepath.Join(tmpDir, "new.txt"),
			data: []byte("hello world"),
		},
		{
			name: "overwrite existing file",
			path: filepath.Join(tmpDir, "existing.txt"),
			data: []byte("updated content"),
		},
		{
			name: "write empty file",
			path: filepath.Join(tmpDir, "empty.txt"),
			data: []byte{},
		},
		{
			name: "write to nested directory",
			path: filepath.Join(tmpDir, "nested", "deep", "file.txt"),
			data: []byte("nested content"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name == "overwrite existing file" {
				require.NoError(t, os.WriteFile(tt.path, []byte("original"), 0600))
			}

			require.NoError(t, AtomicWrite(tt.path, tt.data))

			content, err := os.ReadFile(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.data, content)

			info, err := os.Stat(tt.path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
		})
	}
}

func TestAtomicWrite_LeavesNoTempFiles(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "file.txt")

	require.NoError(t, AtomicWrite(path, []byte("content")))

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp."),
			"temp file %s should have been renamed away", entry.Name())
	}
}

func TestAtomicWriteJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "state.json")

	value := map[string]any{"name": "den", "version": 1}
	require.NoError(t, AtomicWriteJSON(path, value))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"name": "den"`)
	assert.True(t, strings.HasSuffix(string(content), "\n"), "JSON output should end with newline")
}

func TestAtomicWriteJSON_NilValue(t *testing.T) {
	tmpDir := t.TempDir()

	err := AtomicWriteJSON(filepath.Join(tmpDir, "nil.json"), nil)
	assert.Error(t, err)
}

func TestTempSibling_SameDirectory(t *testing.T) {
	tmp, err := TempSibling("/some/dir/target.db")
	require.NoError(t, err)

	assert.Equal(t, "/some/dir", filepath.Dir(tmp))
	assert.True(t, strings.HasPrefix(filepath.Base(tmp), ".target.db.tmp."))
}

func TestCommitTemp(t *testing.T) {
	tmpDir := t.TempDir()
	final := filepath.Join(tmpDir, "artifact.db")

	tmp, err := TempSibling(final)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tmp, []byte("payload"), 0600))

	require.NoError(t, CommitTemp(tmp, final))

	content, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), content)

	_, err = os.Stat(tmp)
	assert.True(t, os.IsNotExist(err), "temp file should be gone after commit")
}
