package manifest

import (
	"fmt"
	"os"

	"github.com/denlabs/den/internal/workspace"
)

// Resolution is the outcome of resolving the workspace manifest. At most one
// of Created, Planned, or a non-empty CorruptReason is set.
type Resolution struct {
	Manifest Manifest

	// Created means a fresh manifest was written this run.
	Created bool
	// Planned means creation is needed but was deferred (check or dry-run).
	Planned bool
	// CorruptReason is non-empty when an existing manifest failed to parse.
	// The caller decides whether Repair runs; until then Manifest holds a
	// fresh in-memory value so reconciliation can still proceed.
	CorruptReason string

	// RegistryCreated / RegistryUpdated report workspace-id registry writes.
	RegistryCreated bool
	RegistryUpdated bool
}

// Resolve reads or creates the workspace manifest and gates the schema
// version. It is the first thing that runs after the lock is held: an
// incompatible schema aborts before any reconciliation. When mutate is false
// (check and dry-run modes) no file is written.
func Resolve(ws workspace.Workspace, mutate bool) (Resolution, error) {
	existing, err := Read(ws.ManifestPath())
	if err == nil && existing != nil {
		if verr := CheckVersion(existing.SchemaVersion); verr != nil {
			return Resolution{}, verr
		}
		if merr := CheckMarker(ws); merr != nil {
			return Resolution{}, merr
		}

		res := Resolution{Manifest: *existing}
		if mutate {
			res.RegistryCreated, res.RegistryUpdated, err = recordID(ws, existing.WorkspaceID)
			if err != nil {
				return Resolution{}, err
			}
		}
		return res, nil
	}

	if err != nil {
		// Manifest exists but is unreadable. The schema marker can still
		// gate the run; a corrupted manifest alone is a repairable finding,
		// not a fatal error.
		if merr := CheckMarker(ws); merr != nil {
			return Resolution{}, merr
		}
		return Resolution{Manifest: New(), CorruptReason: err.Error()}, nil
	}

	// No manifest: this is a fresh workspace (or one missing its manifest).
	if merr := CheckMarker(ws); merr != nil {
		return Resolution{}, merr
	}

	fresh := New()
	if !mutate {
		return Resolution{Manifest: fresh, Planned: true}, nil
	}

	res := Resolution{Manifest: fresh, Created: true}
	res.RegistryCreated, res.RegistryUpdated, err = recordID(ws, fresh.WorkspaceID)
	if err != nil {
		return Resolution{}, err
	}
	if err := Write(ws.ManifestPath(), fresh); err != nil {
		return Resolution{}, fmt.Errorf("failed to write manifest: %w", err)
	}
	return res, nil
}

// Repair replaces a corrupted manifest with a fresh one and records the new
// workspace id in the registry. Only called after explicit consent.
func Repair(ws workspace.Workspace) (Manifest, error) {
	fresh := New()
	if _, _, err := recordID(ws, fresh.WorkspaceID); err != nil {
		return Manifest{}, err
	}
	if err := Write(ws.ManifestPath(), fresh); err != nil {
		return Manifest{}, fmt.Errorf("failed to write manifest: %w", err)
	}
	return fresh, nil
}

func recordID(ws workspace.Workspace, id string) (created, updated bool, err error) {
	path := ws.IDRegistryPath()
	existedBefore := fileExists(path)

	changed, err := EnsureIDRecorded(path, id)
	if err != nil {
		return false, false, err
	}
	if !changed {
		return false, false, nil
	}
	if existedBefore {
		return false, true, nil
	}
	return true, false, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
