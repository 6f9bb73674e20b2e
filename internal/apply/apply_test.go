package apply

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/denlabs/den/internal/catalog"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/plan"
	"github.com/denlabs/den/internal/report"
	"github.com/denlabs/den/internal/validate"
	"github.com/denlabs/den/internal/workspace"
)

func quietReporter() *report.Reporter {
	return report.New(io.Discard, io.Discard, false)
}

func tempWorkspace(t *testing.T) workspace.Workspace {
	t.Helper()
	ws := workspace.New(t.TempDir())
	require.NoError(t, os.MkdirAll(ws.Root(), 0700))
	return ws
}

func fullPlan(t *testing.T, ws workspace.Workspace, force bool) plan.Plan {
	t.Helper()
	states := validate.Scan(ws, catalog.Declare(manifest.SchemaVersion))
	return plan.Diff(states, force, false)
}

func TestApply_CreatesEverythingOnFreshWorkspace(t *testing.T) {
	ws := tempWorkspace(t)

	result, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)
	assert.Equal(t, len(catalog.Declare(manifest.SchemaVersion)), result.Created)

	// Everything must now validate clean.
	states := validate.Scan(ws, catalog.Declare(manifest.SchemaVersion))
	for _, state := range states {
		assert.Equal(t, validate.StatusValid, state.Status, "artifact %s: %s", state.Spec.Path, state.Reason)
	}
}

func TestApply_SecondRunIsAllSkip(t *testing.T) {
	ws := tempWorkspace(t)

	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	second := fullPlan(t, ws, false)
	assert.True(t, second.Trivial(), "second plan must be all-skip")

	result, err := Apply(context.Background(), ws, second, quietReporter())
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Repaired)
	assert.Zero(t, result.Recreated)
}

func TestApply_RepairReplacesCorruptFile(t *testing.T) {
	ws := tempWorkspace(t)
	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	sessionPath := ws.Path("state/session/current.json")
	require.NoError(t, os.WriteFile(sessionPath, []byte("{broken"), 0600))

	p := fullPlan(t, ws, false)
	// Stand in for an affirmative negotiation.
	for i := range p.Steps {
		p.Steps[i].RequiresConfirmation = false
	}

	result, err := Apply(context.Background(), ws, p, quietReporter())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Repaired)

	states := validate.Scan(ws, catalog.Declare(manifest.SchemaVersion))
	for _, state := range states {
		assert.Equal(t, validate.StatusValid, state.Status)
	}
}

func TestApply_RepairClearsDirectoryAtFilePath(t *testing.T) {
	ws := tempWorkspace(t)
	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	gitignore := ws.Path(".gitignore")
	require.NoError(t, os.Remove(gitignore))
	require.NoError(t, os.MkdirAll(gitignore, 0700))

	p := fullPlan(t, ws, false)
	for i := range p.Steps {
		p.Steps[i].RequiresConfirmation = false
	}

	_, err = Apply(context.Background(), ws, p, quietReporter())
	require.NoError(t, err)

	info, err := os.Stat(gitignore)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestApply_ForceRecreatesDatabases(t *testing.T) {
	ws := tempWorkspace(t)
	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	before, err := os.ReadFile(ws.Path(".gitignore"))
	require.NoError(t, err)

	result, err := Apply(context.Background(), ws, fullPlan(t, ws, true), quietReporter())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Recreated, "the three databases get rebuilt")
	assert.Zero(t, result.Repaired)

	after, err := os.ReadFile(ws.Path(".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, before, after, "non-database artifacts stay untouched under force")
}

func TestApply_DemotedSkipLeavesCorruptionInPlace(t *testing.T) {
	ws := tempWorkspace(t)
	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	projectPath := ws.Path("state/project.toml")
	require.NoError(t, os.WriteFile(projectPath, []byte("[[[["), 0600))

	p := fullPlan(t, ws, false)
	confirmed, unresolved, err := plan.Negotiate(context.Background(), p, nil, false)
	require.NoError(t, err)
	require.Len(t, unresolved, 1)

	_, err = Apply(context.Background(), ws, confirmed, quietReporter())
	require.NoError(t, err)

	data, err := os.ReadFile(projectPath)
	require.NoError(t, err)
	assert.Equal(t, "[[[[", string(data), "declined repair must not touch the artifact")
}

func TestApply_PartialFailureStopsAndReportsStep(t *testing.T) {
	ws := tempWorkspace(t)

	boom := errors.New("factory exploded")
	steps := []plan.Step{
		{
			Spec: catalog.Spec{Path: "ok.txt", Label: "ok", Kind: catalog.KindFile, Required: true,
				Factory: func() ([]byte, error) { return []byte("fine"), nil }},
			Action: plan.ActionCreate,
		},
		{
			Spec: catalog.Spec{Path: "bad.txt", Label: "bad", Kind: catalog.KindFile, Required: true,
				Factory: func() ([]byte, error) { return nil, boom }},
			Action: plan.ActionCreate,
		},
		{
			Spec: catalog.Spec{Path: "never.txt", Label: "never", Kind: catalog.KindFile, Required: true,
				Factory: func() ([]byte, error) { return []byte("unreached"), nil }},
			Action: plan.ActionCreate,
		},
	}

	result, err := Apply(context.Background(), ws, plan.Plan{Steps: steps}, quietReporter())

	var partial *PartialFailureError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 1, partial.Index)
	assert.Equal(t, "bad.txt", partial.Step.Spec.Path)
	assert.ErrorIs(t, err, boom)

	// The step before the failure stays applied.
	assert.Equal(t, 1, result.Created)
	_, statErr := os.Stat(ws.Path("ok.txt"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(ws.Path("never.txt"))
	assert.True(t, os.IsNotExist(statErr), "steps after the failure must not run")
}

func TestApply_CancellationStopsBetweenSteps(t *testing.T) {
	ws := tempWorkspace(t)

	ctx, cancel := context.WithCancel(context.Background())

	steps := []plan.Step{
		{
			Spec: catalog.Spec{Path: "first.txt", Label: "first", Kind: catalog.KindFile, Required: true,
				Factory: func() ([]byte, error) {
					// Cancel while the first step runs; the second must not start.
					cancel()
					return []byte("content"), nil
				}},
			Action: plan.ActionCreate,
		},
		{
			Spec: catalog.Spec{Path: "second.txt", Label: "second", Kind: catalog.KindFile, Required: true,
				Factory: func() ([]byte, error) { return []byte("content"), nil }},
			Action: plan.ActionCreate,
		},
	}

	result, err := Apply(ctx, ws, plan.Plan{Steps: steps}, quietReporter())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, result.Created, "the in-flight step completes")

	_, statErr := os.Stat(ws.Path("first.txt"))
	assert.NoError(t, statErr, "cancellation never aborts a step mid-write")
	_, statErr = os.Stat(ws.Path("second.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApply_NoTempFilesLeftBehind(t *testing.T) {
	ws := tempWorkspace(t)

	_, err := Apply(context.Background(), ws, fullPlan(t, ws, false), quietReporter())
	require.NoError(t, err)

	err = filepath.WalkDir(ws.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		assert.NotContains(t, d.Name(), ".tmp.", "leftover temp artifact at %s", path)
		return nil
	})
	require.NoError(t, err)
}
