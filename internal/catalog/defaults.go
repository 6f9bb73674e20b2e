package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/BurntSushi/toml"
)

// ProjectSnapshot is the declarative project description the agent reads for
// task context. Reconciliation only guarantees the envelope parses; the
// fields belong to the components that consume the workspace.
type ProjectSnapshot struct {
	Project struct {
		Name        string `toml:"name"`
		Description string `toml:"description"`
		Language    string `toml:"language"`
	} `toml:"project"`
	Context struct {
		Include []string `toml:"include"`
		Exclude []string `toml:"exclude"`
	} `toml:"context"`
}

// RuntimeSnapshot captures the runtime profile the agent was last configured
// with (model, limits). Same envelope-only contract as ProjectSnapshot.
type RuntimeSnapshot struct {
	Runtime struct {
		Profile       string `toml:"profile"`
		Model         string `toml:"model"`
		MaxTokens     int    `toml:"max_tokens"`
		TimeoutSecs   int    `toml:"timeout_secs"`
		ParallelRuns  int    `toml:"parallel_runs"`
		AuditRetained int    `toml:"audit_retained_days"`
	} `toml:"runtime"`
}

// DefaultProjectSnapshot renders the initial project snapshot.
func DefaultProjectSnapshot() ([]byte, error) {
	var snap ProjectSnapshot
	snap.Context.Include = []string{"src", "docs"}
	snap.Context.Exclude = []string{"target", "node_modules", ".den"}

	data, err := toml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to render project snapshot: %w", err)
	}
	return data, nil
}

// DefaultRuntimeSnapshot renders the initial runtime snapshot.
func DefaultRuntimeSnapshot() ([]byte, error) {
	var snap RuntimeSnapshot
	snap.Runtime.Profile = "default"
	snap.Runtime.MaxTokens = 8192
	snap.Runtime.TimeoutSecs = 600
	snap.Runtime.ParallelRuns = 1
	snap.Runtime.AuditRetained = 90

	data, err := toml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to render runtime snapshot: %w", err)
	}
	return data, nil
}

// DefaultSessionState renders the empty session container. The engine
// validates only that this stays well-formed JSON; the payload is owned by
// the session tracker.
func DefaultSessionState() ([]byte, error) {
	state := map[string]any{
		"version":     1,
		"active_task": nil,
		"history":     []any{},
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to render session state: %w", err)
	}
	return append(data, '\n'), nil
}
