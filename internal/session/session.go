// Package session locates and prepares implementation session directories
// under .prd/logs for observation runs.
package session

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Prefix is the naming convention for session directories:
// session_YYYYMMDD_HHMMSS. The embedded timestamp makes lexicographic order
// chronological.
const Prefix = "session_"

// Observation artifact names inside a session directory.
const (
	ObservationLog   = "observation.log"
	ReportFile       = "observation_report.md"
	SummaryFile      = "summary.json"
	legacyObserveLog = "observe.log"
)

// FindLatest returns the most recent session directory under logsDir.
func FindLatest(logsDir string) (string, error) {
	entries, err := os.ReadDir(logsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no session directories found in %s", logsDir)
		}
		return "", fmt.Errorf("failed to read logs directory: %w", err)
	}

	var latest string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		if entry.Name() > latest {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("no session directories found in %s", logsDir)
	}
	return filepath.Join(logsDir, latest), nil
}

// Resolve turns a user-supplied session argument into an existing session
// directory. Relative arguments are tried as given first, then under
// logsDir.
func Resolve(arg, logsDir string) (string, error) {
	candidates := []string{arg}
	if !filepath.IsAbs(arg) {
		candidates = append(candidates, filepath.Join(logsDir, arg))
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			return "", fmt.Errorf("not a directory: %s", candidate)
		}
		return candidate, nil
	}
	return "", fmt.Errorf("session directory not found: %s", arg)
}

// CleanupObservation removes a previous run's observation artifacts so a
// re-run starts clean. Includes the log name an older version used.
func CleanupObservation(sessionDir string, logger *slog.Logger) error {
	for _, name := range []string{ObservationLog, ReportFile, legacyObserveLog} {
		path := filepath.Join(sessionDir, name)
		err := os.Remove(path)
		if err == nil {
			logger.Info("removed previous observation file", "file", name)
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// HasSummary reports whether the session finished writing its summary. A
// missing summary usually means the session is incomplete or still running.
func HasSummary(sessionDir string) bool {
	info, err := os.Stat(filepath.Join(sessionDir, SummaryFile))
	return err == nil && !info.IsDir()
}

// ObservationLogPath returns where the observation run's raw output goes.
func ObservationLogPath(sessionDir string) string {
	return filepath.Join(sessionDir, ObservationLog)
}

// ReportPath returns where the agent is asked to write its report.
func ReportPath(sessionDir string) string {
	return filepath.Join(sessionDir, ReportFile)
}
