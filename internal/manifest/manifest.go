package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/denlabs/den/internal/fsutil"
	"github.com/denlabs/den/internal/workspace"
)

// SchemaVersion is the workspace schema this binary supports. There is no
// migration path: any other on-disk version is incompatible.
const SchemaVersion = 1

// ErrSchemaIncompatible is returned when the on-disk workspace records a
// schema version this binary does not support.
var ErrSchemaIncompatible = errors.New("workspace schema version is incompatible")

// Manifest identifies a workspace. Written once at creation and treated as
// read-only afterwards; the schema version only changes through an explicit
// migration, which this binary does not perform.
type Manifest struct {
	WorkspaceID   string    `json:"workspace_id"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
}

// New returns a fresh manifest stamped with the supported schema version.
func New() Manifest {
	return Manifest{
		WorkspaceID:   uuid.New().String(),
		SchemaVersion: SchemaVersion,
		CreatedAt:     time.Now().UTC(),
	}
}

// Read loads the manifest at path. A missing file returns (nil, nil); a file
// that exists but does not parse returns an error carrying a readable reason.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if m.WorkspaceID == "" {
		return nil, fmt.Errorf("manifest is missing a workspace_id")
	}
	if m.SchemaVersion <= 0 {
		return nil, fmt.Errorf("manifest records invalid schema_version %d", m.SchemaVersion)
	}
	return &m, nil
}

// Write persists the manifest atomically.
func Write(path string, m Manifest) error {
	return fsutil.AtomicWriteJSON(path, m)
}

// CheckVersion gates an on-disk schema version against the supported one.
func CheckVersion(found int) error {
	if found == SchemaVersion {
		return nil
	}
	return fmt.Errorf("%w: workspace records version %d, this binary supports %d",
		ErrSchemaIncompatible, found, SchemaVersion)
}

// CheckMarker gates the plain-text schema marker file. A missing marker is
// fine (reconciliation recreates it); existing content must match the
// supported version exactly.
func CheckMarker(ws workspace.Workspace) error {
	data, err := os.ReadFile(ws.SchemaMarkerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read schema marker: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == strconv.Itoa(SchemaVersion) {
		return nil
	}
	return fmt.Errorf("%w: schema marker reports %q, this binary supports %d",
		ErrSchemaIncompatible, content, SchemaVersion)
}

// MarkerContent is the factory content for the schema marker artifact.
func MarkerContent() []byte {
	return []byte(strconv.Itoa(SchemaVersion) + "\n")
}

// EnsureIDRecorded appends the workspace id to the id registry file unless it
// is already present. Returns whether the registry changed.
func EnsureIDRecorded(path, id string) (bool, error) {
	var lines []string
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to read workspace id registry: %w", err)
	}
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if line == id {
				return false, nil
			}
			lines = append(lines, line)
		}
	}

	lines = append(lines, id)
	content := strings.Join(lines, "\n") + "\n"
	if err := fsutil.AtomicWrite(path, []byte(content)); err != nil {
		return false, fmt.Errorf("failed to update workspace id registry: %w", err)
	}
	return true, nil
}
