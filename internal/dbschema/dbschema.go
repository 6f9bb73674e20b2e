// Package dbschema owns the schemas of the embedded SQLite databases the
// workspace carries. The reconciliation engine treats these databases as
// opaque beyond openability, expected tables, and the stored version marker;
// the schema contents are the contract of the components that consume them.
package dbschema

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/denlabs/den/internal/fsutil"
)

// Database describes one embedded database artifact: its display label, the
// schema applied on creation, and the tables whose presence marks it healthy.
type Database struct {
	Label  string
	Schema string
	Tables []string
}

// Registry holds tasks, runs, and their produced artifacts.
var Registry = Database{
	Label: "registry database",
	Schema: `
BEGIN;
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    content TEXT,
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    tags TEXT,
    meta TEXT
);
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    stage TEXT NOT NULL,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    model TEXT,
    profile TEXT,
    tokens_in INTEGER NOT NULL DEFAULT 0,
    tokens_out INTEGER NOT NULL DEFAULT 0,
    success INTEGER NOT NULL DEFAULT 0,
    meta TEXT,
    FOREIGN KEY(task_id) REFERENCES tasks(id)
);
CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    path TEXT NOT NULL,
    sha256 TEXT,
    FOREIGN KEY(run_id) REFERENCES runs(id)
);
CREATE INDEX IF NOT EXISTS idx_tasks_status_updated_at ON tasks(status, updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_runs_task_stage_started_at ON runs(task_id, stage, started_at DESC);
CREATE VIRTUAL TABLE IF NOT EXISTS tasks_fts USING fts5(title, content, tokenize = 'unicode61');
COMMIT;
`,
	Tables: []string{"tasks", "runs", "artifacts"},
}

// AuditIndex indexes the append-only audit history by day and offset.
var AuditIndex = Database{
	Label: "audit index",
	Schema: `
BEGIN;
CREATE TABLE IF NOT EXISTS events (
    day TEXT NOT NULL,
    offset INTEGER NOT NULL,
    ts TEXT NOT NULL,
    event TEXT NOT NULL,
    task_id TEXT,
    run_id TEXT,
    PRIMARY KEY(day, offset)
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_event ON events(event);
CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id);
COMMIT;
`,
	Tables: []string{"events"},
}

// RAGIndex is the retrieval index over ingested documents.
var RAGIndex = Database{
	Label: "RAG index",
	Schema: `
BEGIN;
CREATE TABLE IF NOT EXISTS docs (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    meta TEXT
);
CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(doc_id UNINDEXED, content, tokenize = 'unicode61');
COMMIT;
`,
	Tables: []string{"docs", "docs_fts"},
}

// Create builds the database at a sibling temp path, applies the schema,
// stamps the version marker, and renames it into place. A crash mid-build
// never exposes a half-initialized database at the final path.
func Create(path string, db Database, version int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to prepare directory for %s: %w", db.Label, err)
	}

	tmpPath, err := fsutil.TempSibling(path)
	if err != nil {
		return fmt.Errorf("failed to generate temp path for %s: %w", db.Label, err)
	}

	if err := buildDatabase(tmpPath, db, version); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := fsutil.CommitTemp(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to install %s: %w", db.Label, err)
	}
	return nil
}

func buildDatabase(path string, db Database, version int) error {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", db.Label, err)
	}
	defer conn.Close()

	if _, err := conn.Exec(db.Schema); err != nil {
		return fmt.Errorf("failed to initialize %s schema: %w", db.Label, err)
	}
	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to stamp %s version: %w", db.Label, err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close %s after build: %w", db.Label, err)
	}
	return nil
}

// Validate checks that the database opens, carries every expected table, and
// records the expected version marker. Read-only; the returned error is a
// human-readable diagnostic suitable for the reconciliation report.
func Validate(path string, db Database, version int) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("missing %s at %s", db.Label, path)
	}

	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("failed to open %s: %v", db.Label, err)
	}
	defer conn.Close()

	for _, table := range db.Tables {
		var count int
		err := conn.QueryRow("SELECT count(1) FROM sqlite_master WHERE name = ?", table).Scan(&count)
		if err != nil {
			return fmt.Errorf("%s is unreadable (%s): %v", db.Label, table, err)
		}
		if count == 0 {
			return fmt.Errorf("table %q missing in %s", table, db.Label)
		}
	}

	var found int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&found); err != nil {
		return fmt.Errorf("failed to read %s version marker: %v", db.Label, err)
	}
	if found != version {
		return fmt.Errorf("%s records version %d, expected %d", db.Label, found, version)
	}
	return nil
}
