// Package catalog declares every artifact a workspace must contain. The
// declaration is a pure function of the schema version: no I/O happens here,
// and the validator, planner, and executor all iterate the same ordered list.
package catalog

import (
	"github.com/denlabs/den/internal/dbschema"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/workspace"
)

// Kind is the closed set of artifact kinds. Validator, planner, and executor
// switch exhaustively over it; adding a kind means touching all three.
type Kind int

const (
	KindDirectory Kind = iota
	KindFile
	KindDatabase
)

// Format describes how a file artifact's content is parsed during validation.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatTOML
)

// Spec is one declared workspace artifact. Immutable once declared.
type Spec struct {
	// Path is workspace-relative, slash-separated.
	Path  string
	Label string
	Kind  Kind

	// Format applies to KindFile only.
	Format Format

	// Required artifacts must exist; a missing optional artifact is fine.
	Required bool

	// Database applies to KindDatabase only.
	Database dbschema.Database

	// Factory produces the default content for KindFile artifacts.
	Factory func() ([]byte, error)
}

// Declare returns the ordered artifact catalog for a schema version.
// Directories come before the files they contain, files before databases.
// The manifest and lock files are prerequisites of reconciliation, not
// reconciled targets, so they are deliberately absent.
func Declare(schemaVersion int) []Spec {
	_ = schemaVersion // one catalog version exists per schema version

	return []Spec{
		{Path: "state", Label: "state directory", Kind: KindDirectory, Required: true},
		{Path: "state/session", Label: "session directory", Kind: KindDirectory, Required: true},
		{Path: "audit", Label: "audit directory", Kind: KindDirectory, Required: true},
		{Path: "cache", Label: "cache directory", Kind: KindDirectory, Required: true},
		{Path: "cache/rag", Label: "RAG cache directory", Kind: KindDirectory, Required: true},
		{Path: "migrations", Label: "migrations directory", Kind: KindDirectory, Required: true},
		{Path: "tasks", Label: "tasks directory", Kind: KindDirectory, Required: true},

		{
			Path:     ".gitignore",
			Label:    ".gitignore",
			Kind:     KindFile,
			Format:   FormatText,
			Required: true,
			Factory:  func() ([]byte, error) { return []byte(workspace.DefaultGitignore), nil },
		},
		{
			Path:     "state/project.toml",
			Label:    "project snapshot",
			Kind:     KindFile,
			Format:   FormatTOML,
			Required: true,
			Factory:  DefaultProjectSnapshot,
		},
		{
			Path:     "state/runtime.toml",
			Label:    "runtime snapshot",
			Kind:     KindFile,
			Format:   FormatTOML,
			Required: true,
			Factory:  DefaultRuntimeSnapshot,
		},
		{
			Path:     "state/session/current.json",
			Label:    "session state",
			Kind:     KindFile,
			Format:   FormatJSON,
			Required: true,
			Factory:  DefaultSessionState,
		},
		{
			Path:     "migrations/version",
			Label:    "schema marker",
			Kind:     KindFile,
			Format:   FormatText,
			Required: true,
			Factory:  func() ([]byte, error) { return manifest.MarkerContent(), nil },
		},

		{
			Path:     "state/registry.sqlite",
			Label:    "registry database",
			Kind:     KindDatabase,
			Required: true,
			Database: dbschema.Registry,
		},
		{
			Path:     "audit/index.sqlite",
			Label:    "audit index",
			Kind:     KindDatabase,
			Required: true,
			Database: dbschema.AuditIndex,
		},
		{
			Path:     "cache/rag/index.sqlite",
			Label:    "RAG index",
			Kind:     KindDatabase,
			Required: true,
			Database: dbschema.RAGIndex,
		},
	}
}
