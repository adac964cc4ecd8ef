package session

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFindLatest(t *testing.T) {
	logsDir := t.TempDir()
	for _, name := range []string{
		"session_20250310_091500",
		"session_20250312_140000",
		"session_20250311_233000",
	} {
		require.NoError(t, os.Mkdir(filepath.Join(logsDir, name), 0700))
	}
	// Non-session entries are ignored.
	require.NoError(t, os.Mkdir(filepath.Join(logsDir, "archive"), 0700))
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "session_notadir"), nil, 0600))

	latest, err := FindLatest(logsDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logsDir, "session_20250312_140000"), latest)
}

func TestFindLatestEmpty(t *testing.T) {
	_, err := FindLatest(t.TempDir())
	assert.Error(t, err)
}

func TestFindLatestMissingDir(t *testing.T) {
	_, err := FindLatest(filepath.Join(t.TempDir(), "logs"))
	assert.Error(t, err)
}

func TestResolveAbsolute(t *testing.T) {
	dir := t.TempDir()

	got, err := Resolve(dir, filepath.Join(dir, "unused-logs"))
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveRelativeToLogsDir(t *testing.T) {
	logsDir := t.TempDir()
	name := "session_20250312_140000"
	require.NoError(t, os.Mkdir(filepath.Join(logsDir, name), 0700))

	got, err := Resolve(name, logsDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(logsDir, name), got)
}

func TestResolveNotFound(t *testing.T) {
	_, err := Resolve("session_19990101_000000", t.TempDir())
	assert.Error(t, err)
}

func TestResolveFileNotDirectory(t *testing.T) {
	logsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(logsDir, "session_x"), nil, 0600))

	_, err := Resolve("session_x", logsDir)
	assert.Error(t, err)
}

func TestCleanupObservation(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{ObservationLog, ReportFile, "observe.log", "session.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0600))
	}

	require.NoError(t, CleanupObservation(dir, testLogger()))

	for _, name := range []string{ObservationLog, ReportFile, "observe.log"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.True(t, os.IsNotExist(err), "%s should be removed", name)
	}
	// Session logs themselves are untouched.
	_, err := os.Stat(filepath.Join(dir, "session.log"))
	assert.NoError(t, err)
}

func TestCleanupObservationNothingToRemove(t *testing.T) {
	assert.NoError(t, CleanupObservation(t.TempDir(), testLogger()))
}

func TestHasSummary(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, HasSummary(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, SummaryFile), []byte("{}"), 0600))
	assert.True(t, HasSummary(dir))
}

func TestArtifactPaths(t *testing.T) {
	assert.Equal(t, "/s/observation.log", ObservationLogPath("/s"))
	assert.Equal(t, "/s/observation_report.md", ReportPath("/s"))
}
