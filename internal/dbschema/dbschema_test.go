package dbschema

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndValidate(t *testing.T) {
	for _, db := range []Database{Registry, AuditIndex, RAGIndex} {
		t.Run(db.Label, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "test.sqlite")

			require.NoError(t, Create(path, db, 1))
			assert.NoError(t, Validate(path, db, 1))
		})
	}
}

func TestCreate_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.sqlite")

	require.NoError(t, Create(path, Registry, 1))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.Contains(entry.Name(), ".tmp."),
			"build artifact %s should have been renamed away", entry.Name())
	}
}

func TestValidate_MissingFile(t *testing.T) {
	err := Validate(filepath.Join(t.TempDir(), "absent.sqlite"), Registry, 1)
	assert.ErrorContains(t, err, "missing")
}

func TestValidate_MissingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.sqlite")

	conn, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = conn.Exec("CREATE TABLE tasks (id TEXT PRIMARY KEY)")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = Validate(path, Registry, 1)
	assert.ErrorContains(t, err, "missing in registry database")
}

func TestValidate_VersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.sqlite")
	require.NoError(t, Create(path, AuditIndex, 1))

	err := Validate(path, AuditIndex, 2)
	assert.ErrorContains(t, err, "records version 1, expected 2")
}

func TestValidate_GarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.sqlite")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0600))

	err := Validate(path, Registry, 1)
	assert.Error(t, err)
}
