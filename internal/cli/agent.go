package cli

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// ResolveAgentBinary locates the agent CLI before any workflow launches a
// process. Launch failures are deterministic, so catching a missing binary
// here gives a better message than a LaunchError mid-run. Returns the path
// to hand to the supervisor.
func ResolveAgentBinary(binary string) (string, error) {
	if filepath.IsAbs(binary) {
		if _, err := os.Stat(binary); err == nil {
			return binary, nil
		}
		return "", fmt.Errorf("agent CLI not found at %s", binary)
	}

	if path, err := exec.LookPath(binary); err == nil {
		return path, nil
	}

	// Check common install locations
	home, _ := os.UserHomeDir()
	commonPaths := []string{
		filepath.Join(home, ".claude", "local", binary),
		filepath.Join("/usr/local/bin", binary),
		filepath.Join("/opt/homebrew/bin", binary),
	}
	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf(`agent CLI %q not found

Install with:
  npm install -g @anthropic-ai/claude-code

Or add the install directory to your PATH`, binary)
}
