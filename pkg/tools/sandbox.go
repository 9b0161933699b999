package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Sandbox confines file tools to a workspace directory under the configured
// desktop dir. Absolute paths and traversal outside the root are rejected.
type Sandbox struct {
	root string
}

// NewSandbox roots the sandbox at desktopDir/workspace.
func NewSandbox(desktopDir string) *Sandbox {
	return &Sandbox{root: filepath.Join(desktopDir, "workspace")}
}

// Root returns the sandbox root directory.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a relative path to its absolute location inside the sandbox.
// Absolute input paths and any path escaping the root are rejected.
func (s *Sandbox) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute path %q not allowed", path)
	}
	abs := filepath.Join(s.root, filepath.Clean(path))
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace", path)
	}
	return abs, nil
}
