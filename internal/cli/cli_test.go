package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prdloop/prdloop/internal/config"
	"github.com/prdloop/prdloop/internal/prd"
	"github.com/prdloop/prdloop/internal/session"
	"github.com/prdloop/prdloop/internal/workspace"
)

// executeCommand runs the root command with the given args, capturing output.
// Flag state is reset afterwards so tests do not leak values into each other.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())

	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	for _, c := range []*cobra.Command{rootCmd, convertCmd, observeCmd} {
		c.Flags().VisitAll(reset)
	}
	rootCmd.PersistentFlags().VisitAll(reset)

	return buf.String(), err
}

// newTestProject sets up an initialized workspace whose config points at the
// given fake agent script. Returns the project root and config path.
func newTestProject(t *testing.T, agentScript string) (string, string) {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, workspace.Initialize(root))

	cfg := config.GenerateDefault()
	cfg.AgentBinary = agentScript
	cfgPath := workspace.ConfigPath(root)
	require.NoError(t, cfg.SaveToFile(cfgPath))

	return root, cfgPath
}

// writeAgentScript writes an executable shell script standing in for the
// agent CLI.
func writeAgentScript(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "agent.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

const prdJSON = `{
  "project": "Widget Service",
  "branchName": "ralph/widget-service",
  "description": "A widget service",
  "userStories": [
    {"id": "US-001", "title": "Create widgets", "description": "As a user...", "acceptanceCriteria": ["works"], "priority": 1, "passes": false}
  ]
}`

func TestConvertCommand(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
echo "Here is the PRD you asked for:"
cat <<'EOF'
`+prdJSON+`
EOF`)
	root, cfgPath := newTestProject(t, script)

	specPath := filepath.Join(root, "widget-spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Widget Service\n\nBuild widgets.\n"), 0o644))

	out, err := executeCommand(t, "convert", specPath, "--config", cfgPath, "--timeout", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "PRD saved to")
	assert.Contains(t, out, "US-001: Create widgets")

	prdPath := filepath.Join(workspace.PRDsDir(root), "widget-spec.json")
	doc, err := prd.Load(prdPath)
	require.NoError(t, err)
	assert.Equal(t, "Widget Service", doc.Project)
	assert.Equal(t, specPath, doc.SourceSpec)
	assert.NotEmpty(t, doc.CreatedAt)

	// The source spec is staged next to the PRD.
	_, err = os.Stat(filepath.Join(workspace.SpecsDir(root), "widget-spec.md"))
	assert.NoError(t, err)

	// A durable run log exists for the invocation.
	entries, err := os.ReadDir(workspace.LogsDir(root))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "convert-")
}

func TestConvertCustomOutputPath(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
cat <<'EOF'
`+prdJSON+`
EOF`)
	root, cfgPath := newTestProject(t, script)

	specPath := filepath.Join(root, "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n"), 0o644))
	outPath := filepath.Join(root, "custom.json")

	_, err := executeCommand(t, "convert", specPath, "--config", cfgPath, "--output", outPath)
	require.NoError(t, err)

	_, err = prd.Load(outPath)
	assert.NoError(t, err)
}

func TestConvertAgentFailure(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
echo "something went wrong" >&2
exit 2`)
	root, cfgPath := newTestProject(t, script)

	specPath := filepath.Join(root, "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n"), 0o644))

	out, err := executeCommand(t, "convert", specPath, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 2")
	assert.Contains(t, out, "Raw output log")
}

func TestConvertNoJSONInOutput(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
echo "I could not produce a PRD, sorry."`)
	root, cfgPath := newTestProject(t, script)

	specPath := filepath.Join(root, "spec.md")
	require.NoError(t, os.WriteFile(specPath, []byte("# Spec\n"), 0o644))

	out, err := executeCommand(t, "convert", specPath, "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "Failed to parse agent output")
	assert.Contains(t, out, "could not produce a PRD")
}

func TestConvertMissingSpec(t *testing.T) {
	script := writeAgentScript(t, "exit 0")
	root, cfgPath := newTestProject(t, script)

	_, err := executeCommand(t, "convert", filepath.Join(root, "nope.md"), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")
}

func TestObserveCommand(t *testing.T) {
	// The observation agent runs inside the session directory, where it is
	// expected to leave its report.
	script := writeAgentScript(t, `cat > /dev/null
echo "# Observation Report" > observation_report.md
echo "analysis complete"`)
	root, cfgPath := newTestProject(t, script)

	sessionDir := filepath.Join(workspace.LogsDir(root), "session_20260826_120000")
	require.NoError(t, os.MkdirAll(sessionDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, session.SummaryFile), []byte("{}"), 0o644))

	out, err := executeCommand(t, "observe", "--config", cfgPath, "--no-issue")
	require.NoError(t, err)
	assert.Contains(t, out, "Observation report")

	_, err = os.Stat(session.ReportPath(sessionDir))
	assert.NoError(t, err)
	_, err = os.Stat(session.ObservationLogPath(sessionDir))
	assert.NoError(t, err)
}

func TestObserveSpecificSession(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
touch observation_report.md`)
	root, cfgPath := newTestProject(t, script)

	old := filepath.Join(workspace.LogsDir(root), "session_20260101_000000")
	latest := filepath.Join(workspace.LogsDir(root), "session_20260826_000000")
	require.NoError(t, os.MkdirAll(old, 0o700))
	require.NoError(t, os.MkdirAll(latest, 0o700))

	_, err := executeCommand(t, "observe", "--config", cfgPath, "--session", "session_20260101_000000", "--no-issue")
	require.NoError(t, err)

	_, err = os.Stat(session.ReportPath(old))
	assert.NoError(t, err, "the named session should be analyzed, not the latest")
	_, err = os.Stat(session.ReportPath(latest))
	assert.True(t, os.IsNotExist(err))
}

func TestObserveNoSessions(t *testing.T) {
	script := writeAgentScript(t, "exit 0")
	_, cfgPath := newTestProject(t, script)

	_, err := executeCommand(t, "observe", "--config", cfgPath)
	require.Error(t, err)
}

func TestObserveCleansPreviousArtifacts(t *testing.T) {
	script := writeAgentScript(t, `cat > /dev/null
touch observation_report.md`)
	root, cfgPath := newTestProject(t, script)

	sessionDir := filepath.Join(workspace.LogsDir(root), "session_20260826_120000")
	require.NoError(t, os.MkdirAll(sessionDir, 0o700))
	stale := filepath.Join(sessionDir, session.ReportFile)
	require.NoError(t, os.WriteFile(stale, []byte("stale report\n"), 0o644))

	_, err := executeCommand(t, "observe", "--config", cfgPath, "--no-issue")
	require.NoError(t, err)

	data, err := os.ReadFile(stale)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale report")
}
