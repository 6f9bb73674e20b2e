package workspace

import (
	"os"
	"path/filepath"
)

// DirName is the name of the managed workspace directory under a project root.
const DirName = ".den"

// DefaultGitignore is the content written to the workspace .gitignore so that
// locks, caches, and session state never end up in version control.
const DefaultGitignore = `# den workspace internals
.lock
cache/
state/session/
logs/
`

// Workspace locates the managed directory tree for one project. All state is
// derived from the explicit project root; nothing reads the current working
// directory after construction.
type Workspace struct {
	projectRoot string
}

// New returns a Workspace rooted at the given project directory.
func New(projectRoot string) Workspace {
	return Workspace{projectRoot: filepath.Clean(projectRoot)}
}

// ProjectRoot returns the directory that contains the workspace.
func (w Workspace) ProjectRoot() string {
	return w.projectRoot
}

// Root returns the workspace directory itself (<project>/.den).
func (w Workspace) Root() string {
	return filepath.Join(w.projectRoot, DirName)
}

// Exists reports whether the workspace directory is present.
func (w Workspace) Exists() bool {
	info, err := os.Stat(w.Root())
	return err == nil && info.IsDir()
}

// Path resolves a workspace-relative artifact path to an absolute one.
func (w Workspace) Path(relative string) string {
	return filepath.Join(w.Root(), filepath.FromSlash(relative))
}

// LockPath returns the location of the exclusive workspace lock file.
func (w Workspace) LockPath() string {
	return filepath.Join(w.Root(), ".lock")
}

// ManifestPath returns the location of the workspace manifest.
func (w Workspace) ManifestPath() string {
	return filepath.Join(w.Root(), "manifest.json")
}

// IDRegistryPath returns the file recording every workspace id ever stamped
// into this workspace's manifest.
func (w Workspace) IDRegistryPath() string {
	return filepath.Join(w.Root(), "workspace_ids")
}

// SchemaMarkerPath returns the plain-text schema version marker.
func (w Workspace) SchemaMarkerPath() string {
	return filepath.Join(w.Root(), "migrations", "version")
}
