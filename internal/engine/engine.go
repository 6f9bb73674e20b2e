// Package engine wires the reconciliation pipeline together: lock the
// workspace, resolve the manifest, declare the catalog, scan, diff, negotiate
// repairs, and apply — releasing the lock on every exit path.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/denlabs/den/internal/apply"
	"github.com/denlabs/den/internal/catalog"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/plan"
	"github.com/denlabs/den/internal/report"
	"github.com/denlabs/den/internal/validate"
	"github.com/denlabs/den/internal/workspace"
)

var (
	// ErrValidationFailed means check mode found work to do.
	ErrValidationFailed = errors.New("workspace validation failed")
	// ErrUnresolved means required artifacts stayed corrupted after
	// negotiation. The rest of the run still applied.
	ErrUnresolved = errors.New("corrupted artifacts remain unresolved")
)

// Options selects the reconciliation mode.
type Options struct {
	// Check validates only: no mutation, non-zero exit on any finding.
	Check bool
	// DryRun computes and reports the plan without touching disk.
	DryRun bool
	// Force rebuilds database artifacts from scratch and implies consent.
	Force bool
	// AssumeYes answers every repair question affirmatively.
	AssumeYes bool
	// Interactive means a terminal is attached and repairs may prompt.
	Interactive bool
}

// Validate rejects contradictory flag combinations.
func (o Options) Validate() error {
	if o.Check && o.DryRun {
		return fmt.Errorf("%w: --check cannot be combined with --dry-run", ErrValidationFailed)
	}
	if o.Check && o.Force {
		return fmt.Errorf("%w: --check cannot be combined with --force", ErrValidationFailed)
	}
	return nil
}

func (o Options) mutates() bool {
	return !o.Check && !o.DryRun
}

// Outcome is what a completed run produced.
type Outcome struct {
	Manifest   manifest.Manifest
	Plan       plan.Plan
	Result     apply.Result
	Unresolved []plan.Unresolved
}

// Run executes one reconciliation pass against the workspace.
func Run(ctx context.Context, ws workspace.Workspace, opts Options, prompter plan.Prompter, rep *report.Reporter, logger *slog.Logger) (*Outcome, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	lock, err := acquireByPolicy(ws, opts, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil {
			logger.Warn("failed to release workspace lock", "error", rerr)
		}
	}()

	outcome, err := run(ctx, ws, opts, prompter, rep, logger)
	if err != nil {
		return outcome, err
	}
	// An interrupt that raced the final step still counts as an interrupt.
	if cerr := ctx.Err(); cerr != nil {
		return outcome, cerr
	}
	return outcome, nil
}

func run(ctx context.Context, ws workspace.Workspace, opts Options, prompter plan.Prompter, rep *report.Reporter, logger *slog.Logger) (*Outcome, error) {
	outcome := &Outcome{}

	m, manifestIssue, err := resolveManifest(ctx, ws, opts, prompter, rep, outcome)
	if err != nil {
		return nil, err
	}
	outcome.Manifest = m

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	specs := catalog.Declare(m.SchemaVersion)
	states := validate.Scan(ws, specs)

	if err := ctx.Err(); err != nil {
		return outcome, err
	}

	outcome.Plan = plan.Diff(states, opts.Force, opts.AssumeYes)

	switch {
	case opts.Check:
		return outcome, runCheck(outcome, manifestIssue, rep)
	case opts.DryRun:
		runDryRun(ws, outcome, rep)
		return outcome, nil
	default:
		return outcome, runApply(ctx, ws, opts, prompter, rep, logger, outcome)
	}
}

func runCheck(outcome *Outcome, manifestIssue bool, rep *report.Reporter) error {
	failed := manifestIssue
	for _, step := range outcome.Plan.Steps {
		switch step.Action {
		case plan.ActionCreate:
			rep.Issue(fmt.Sprintf("Missing %s: %s", step.Spec.Label, step.Spec.Path))
			failed = true
		case plan.ActionRepair:
			rep.Issue(fmt.Sprintf("Corrupted %s: %s (%s)", step.Spec.Label, step.Spec.Path, step.Reason))
			failed = true
		}
	}

	if failed {
		return ErrValidationFailed
	}
	rep.Summarize()
	return nil
}

func runDryRun(ws workspace.Workspace, outcome *Outcome, rep *report.Reporter) {
	for _, step := range outcome.Plan.Steps {
		path := ws.Path(step.Spec.Path)
		switch step.Action {
		case plan.ActionSkip:
			rep.Exists(step.Spec.Label, path)
		case plan.ActionCreate:
			rep.Planned(fmt.Sprintf("Create %s", step.Spec.Label), path)
		case plan.ActionRepair:
			rep.Planned(fmt.Sprintf("Overwrite %s", step.Spec.Label), path)
		case plan.ActionRecreate:
			rep.Planned(fmt.Sprintf("Recreate %s", step.Spec.Label), path)
		}
	}
	rep.Summarize()
}

func runApply(ctx context.Context, ws workspace.Workspace, opts Options, prompter plan.Prompter, rep *report.Reporter, logger *slog.Logger, outcome *Outcome) error {
	confirmed, unresolved, err := plan.Negotiate(ctx, outcome.Plan, prompter, opts.Interactive)
	if err != nil {
		return err
	}
	outcome.Unresolved = append(outcome.Unresolved, unresolved...)

	result, err := apply.Apply(ctx, ws, confirmed, rep)
	outcome.Result = result
	if err != nil {
		return err
	}

	for _, u := range outcome.Unresolved {
		rep.Unresolved(u.Spec.Label, ws.Path(u.Spec.Path), u.Reason)
	}
	rep.Summarize()

	for _, u := range outcome.Unresolved {
		if u.Spec.Required {
			logger.Warn("required artifact remains corrupted", "path", u.Spec.Path)
			return ErrUnresolved
		}
	}
	return nil
}

// acquireByPolicy takes the lock for mutating runs unconditionally, and only
// when the workspace already exists for read-only runs (a check against a
// nonexistent workspace has nothing to protect).
func acquireByPolicy(ws workspace.Workspace, opts Options, logger *slog.Logger) (*workspace.Lock, error) {
	if !opts.mutates() && !ws.Exists() {
		return nil, nil
	}
	return workspace.AcquireLock(ws, logger)
}

func resolveManifest(ctx context.Context, ws workspace.Workspace, opts Options, prompter plan.Prompter, rep *report.Reporter, outcome *Outcome) (manifest.Manifest, bool, error) {
	res, err := manifest.Resolve(ws, opts.mutates())
	if err != nil {
		return manifest.Manifest{}, false, err
	}

	path := ws.ManifestPath()
	switch {
	case res.Created:
		reportRegistry(res, ws, rep)
		rep.Created("manifest.json", path)
	case res.Planned:
		rep.Planned("Create manifest.json", path)
	case res.CorruptReason != "":
		return repairManifest(ctx, ws, opts, prompter, rep, outcome, res)
	default:
		reportRegistry(res, ws, rep)
		rep.Exists("manifest.json", path)
	}
	return res.Manifest, res.Planned, nil
}

func repairManifest(ctx context.Context, ws workspace.Workspace, opts Options, prompter plan.Prompter, rep *report.Reporter, outcome *Outcome, res manifest.Resolution) (manifest.Manifest, bool, error) {
	path := ws.ManifestPath()
	manifestSpec := catalog.Spec{Path: "manifest.json", Label: "manifest.json", Kind: catalog.KindFile, Format: catalog.FormatJSON, Required: true}

	if opts.Check {
		rep.Issue(fmt.Sprintf("Malformed manifest at %s: %s", path, res.CorruptReason))
		return res.Manifest, true, nil
	}
	if opts.DryRun {
		rep.Planned("Overwrite manifest.json", path)
		return res.Manifest, false, nil
	}

	consent := opts.Force || opts.AssumeYes
	if !consent && opts.Interactive {
		ok, err := prompter.Confirm(ctx, manifestSpec.Label, path, res.CorruptReason)
		if err != nil {
			return manifest.Manifest{}, false, err
		}
		consent = ok
	}

	if !consent {
		rep.Skipped(manifestSpec.Label, path)
		outcome.Unresolved = append(outcome.Unresolved, plan.Unresolved{Spec: manifestSpec, Reason: res.CorruptReason})
		// Reconciliation continues against a fresh in-memory manifest so the
		// rest of the workspace still converges.
		return res.Manifest, false, nil
	}

	repaired, err := manifest.Repair(ws)
	if err != nil {
		return manifest.Manifest{}, false, err
	}
	rep.Updated(manifestSpec.Label, path)
	return repaired, false, nil
}

func reportRegistry(res manifest.Resolution, ws workspace.Workspace, rep *report.Reporter) {
	switch {
	case res.RegistryCreated:
		rep.Created("workspace_id registry", ws.IDRegistryPath())
	case res.RegistryUpdated:
		rep.Updated("workspace_id registry", ws.IDRegistryPath())
	}
}
