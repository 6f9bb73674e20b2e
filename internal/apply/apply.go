// Package apply executes a confirmed reconciliation plan. Every mutation
// follows the temp-sibling-then-atomic-rename discipline, so a crash never
// leaves a half-written artifact where a valid one existed; a brand-new
// artifact can at worst be missing again on the next run.
package apply

import (
	"context"
	"fmt"
	"os"

	"github.com/denlabs/den/internal/catalog"
	"github.com/denlabs/den/internal/dbschema"
	"github.com/denlabs/den/internal/fsutil"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/plan"
	"github.com/denlabs/den/internal/report"
	"github.com/denlabs/den/internal/workspace"
)

// Result tallies what the executor did.
type Result struct {
	Created   int
	Repaired  int
	Recreated int
	Skipped   int
}

// PartialFailureError reports that the plan stopped partway. Steps applied
// before the failure stay applied; re-running reconciliation is the recovery
// path.
type PartialFailureError struct {
	Index int
	Step  plan.Step
	Err   error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("plan stopped at step %d (%s %s): %v",
		e.Index, e.Step.Action, e.Step.Spec.Path, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// Apply executes the plan in order. Cancellation is honored between steps,
// never mid-step: an individual mutation always runs to completion or fails
// on its own.
func Apply(ctx context.Context, ws workspace.Workspace, p plan.Plan, rep *report.Reporter) (Result, error) {
	var result Result

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if step.Action == plan.ActionSkip {
			result.Skipped++
			if step.Reason != "" {
				rep.Skipped(step.Spec.Label, ws.Path(step.Spec.Path))
			} else {
				rep.Exists(step.Spec.Label, ws.Path(step.Spec.Path))
			}
			continue
		}

		if err := applyStep(ws, step); err != nil {
			return result, &PartialFailureError{Index: i, Step: step, Err: err}
		}

		path := ws.Path(step.Spec.Path)
		switch step.Action {
		case plan.ActionCreate:
			result.Created++
			rep.Created(step.Spec.Label, path)
		case plan.ActionRepair:
			result.Repaired++
			rep.Updated(step.Spec.Label, path)
		case plan.ActionRecreate:
			result.Recreated++
			rep.Updated(step.Spec.Label, path)
		}
	}

	return result, nil
}

func applyStep(ws workspace.Workspace, step plan.Step) error {
	path := ws.Path(step.Spec.Path)

	switch step.Spec.Kind {
	case catalog.KindDirectory:
		return applyDirectory(path, step)
	case catalog.KindFile:
		return applyFile(path, step)
	case catalog.KindDatabase:
		return applyDatabase(path, step)
	default:
		return fmt.Errorf("no executor for artifact kind %d", step.Spec.Kind)
	}
}

func applyDirectory(path string, step plan.Step) error {
	if step.Action == plan.ActionRepair {
		// A stray file occupies the directory's path.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to clear path for directory: %w", err)
		}
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func applyFile(path string, step plan.Step) error {
	if step.Action == plan.ActionRepair {
		// A directory can occupy the file's path; AtomicWrite cannot rename
		// over it.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to clear path for file: %w", err)
			}
		}
	}

	content, err := step.Spec.Factory()
	if err != nil {
		return fmt.Errorf("failed to produce default content: %w", err)
	}
	if err := fsutil.AtomicWrite(path, content); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func applyDatabase(path string, step plan.Step) error {
	if step.Action != plan.ActionCreate {
		// Repair and Recreate replace whatever sits there; the build happens
		// at a temp path, so the old database stays intact until the rename.
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to clear path for database: %w", err)
			}
		}
	}
	return dbschema.Create(path, step.Spec.Database, manifest.SchemaVersion)
}
