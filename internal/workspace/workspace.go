// Package workspace manages the .prd directory that anchors a project: where
// specs are staged, PRDs are written, and agent run logs are kept.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the marker directory created at the project root.
const DirName = ".prd"

// GetRequiredDirectories returns the subdirectories that must exist inside
// the .prd directory.
func GetRequiredDirectories() []string {
	return []string{
		"specs", // staged copies of converted spec files
		"prds",  // generated PRD JSON documents
		"logs",  // raw agent output, one file per invocation
	}
}

// Root returns the .prd directory for a project root.
func Root(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// ConfigPath returns the workspace configuration file location.
func ConfigPath(projectRoot string) string {
	return filepath.Join(Root(projectRoot), "config.json")
}

// SpecsDir returns where converted spec files are staged.
func SpecsDir(projectRoot string) string {
	return filepath.Join(Root(projectRoot), "specs")
}

// PRDsDir returns where generated PRD documents are written.
func PRDsDir(projectRoot string) string {
	return filepath.Join(Root(projectRoot), "prds")
}

// LogsDir returns where per-invocation agent logs are written.
func LogsDir(projectRoot string) string {
	return filepath.Join(Root(projectRoot), "logs")
}

// Initialize creates the .prd directory tree with proper permissions (0700).
// This function is idempotent - safe to call multiple times.
func Initialize(projectRoot string) error {
	for _, dir := range GetRequiredDirectories() {
		path := filepath.Join(Root(projectRoot), dir)

		// MkdirAll is idempotent - won't error if directory exists
		if err := os.MkdirAll(path, 0700); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	}

	return nil
}

// IsInitialized checks if a project has the full .prd directory tree.
func IsInitialized(projectRoot string) (bool, error) {
	for _, dir := range GetRequiredDirectories() {
		path := filepath.Join(Root(projectRoot), dir)

		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to check directory %s: %w", path, err)
		}

		if !info.IsDir() {
			return false, nil
		}
	}

	return true, nil
}

// FindProjectRoot walks up from start looking for a directory containing
// .prd. Returns the project root, or an error when the filesystem root is
// reached without finding one.
func FindProjectRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve start directory: %w", err)
	}

	for {
		info, err := os.Stat(filepath.Join(dir, DirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s directory found in %s or any parent", DirName, start)
		}
		dir = parent
	}
}
