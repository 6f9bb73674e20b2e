// Package validate classifies the on-disk condition of every cataloged
// artifact. Scanning is strictly read-only: it never creates, repairs, or
// touches anything, and it tolerates files vanishing between the directory
// walk and the read.
package validate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/denlabs/den/internal/catalog"
	"github.com/denlabs/den/internal/dbschema"
	"github.com/denlabs/den/internal/manifest"
	"github.com/denlabs/den/internal/workspace"
)

// Status classifies one artifact against its spec.
type Status int

const (
	StatusValid Status = iota
	StatusMissing
	StatusCorrupted
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusMissing:
		return "missing"
	case StatusCorrupted:
		return "corrupted"
	default:
		return "unsupported"
	}
}

// State is the validation result for one artifact. Recomputed on every run,
// never persisted.
type State struct {
	Spec   catalog.Spec
	Status Status

	// Reason carries a human-readable diagnostic for corrupted artifacts.
	Reason string
}

// Scan validates every spec against disk, preserving catalog order.
func Scan(ws workspace.Workspace, specs []catalog.Spec) []State {
	states := make([]State, 0, len(specs))
	for _, spec := range specs {
		states = append(states, scanOne(ws, spec))
	}
	return states
}

func scanOne(ws workspace.Workspace, spec catalog.Spec) State {
	path := ws.Path(spec.Path)

	switch spec.Kind {
	case catalog.KindDirectory:
		return scanDirectory(spec, path)
	case catalog.KindFile:
		return scanFile(spec, path)
	case catalog.KindDatabase:
		return scanDatabase(spec, path)
	default:
		return State{Spec: spec, Status: StatusUnsupported,
			Reason: fmt.Sprintf("unknown artifact kind %d", spec.Kind)}
	}
}

func scanDirectory(spec catalog.Spec, path string) State {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return missing(spec)
		}
		return corrupted(spec, fmt.Sprintf("cannot inspect directory: %v", err))
	}
	if !info.IsDir() {
		return corrupted(spec, "a file sits where a directory belongs")
	}
	return State{Spec: spec, Status: StatusValid}
}

func scanFile(spec catalog.Spec, path string) State {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return missing(spec)
		}
		return corrupted(spec, fmt.Sprintf("cannot inspect file: %v", err))
	}
	if info.IsDir() {
		return corrupted(spec, "a directory sits where a file belongs")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// The file can vanish between stat and read; that is just missing.
		if os.IsNotExist(err) {
			return missing(spec)
		}
		return corrupted(spec, fmt.Sprintf("cannot read file: %v", err))
	}

	switch spec.Format {
	case catalog.FormatJSON:
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return corrupted(spec, fmt.Sprintf("content is not valid JSON: %v", err))
		}
	case catalog.FormatTOML:
		var v map[string]any
		if err := toml.Unmarshal(data, &v); err != nil {
			return corrupted(spec, fmt.Sprintf("content is not valid TOML: %v", err))
		}
	case catalog.FormatText:
		// Plain text has no structure to validate.
	}

	return State{Spec: spec, Status: StatusValid}
}

func scanDatabase(spec catalog.Spec, path string) State {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return missing(spec)
		}
		return corrupted(spec, fmt.Sprintf("cannot inspect database: %v", err))
	}

	if err := dbschema.Validate(path, spec.Database, manifest.SchemaVersion); err != nil {
		return corrupted(spec, err.Error())
	}
	return State{Spec: spec, Status: StatusValid}
}

func missing(spec catalog.Spec) State {
	if !spec.Required {
		// Nothing to do for an absent optional artifact.
		return State{Spec: spec, Status: StatusValid}
	}
	return State{Spec: spec, Status: StatusMissing}
}

func corrupted(spec catalog.Spec, reason string) State {
	return State{Spec: spec, Status: StatusCorrupted, Reason: reason}
}
