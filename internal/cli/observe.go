package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/prdloop/prdloop/internal/runlog"
	"github.com/prdloop/prdloop/internal/session"
	"github.com/prdloop/prdloop/internal/supervisor"
	"github.com/prdloop/prdloop/internal/workspace"
)

// observeTools is the capability allowlist for the observation agent. It can
// read the session logs, write its report, and file GitHub issues, nothing
// else.
var observeTools = []string{
	"Read",
	"Glob",
	"Write",
	"Bash(gh issue create *)",
	"Bash(gh label create *)",
}

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Analyze a session's logs for problems worth filing",
	Long: `Analyze the logs of an implementation session and produce an observation
report. When problems are found the agent files a GitHub issue (disable with
--no-issue).

By default the most recent session under .prd/logs is analyzed; pass --session
to pick a specific one.`,
	Args: cobra.NoArgs,
	RunE: runObserve,
}

func init() {
	observeCmd.Flags().StringP("session", "s", "", "Session directory to analyze (name under .prd/logs or a path)")
	observeCmd.Flags().BoolP("latest", "l", false, "Analyze the most recent session (default when --session is not set)")
	observeCmd.Flags().Bool("no-issue", false, "Report problems without creating a GitHub issue")
	observeCmd.Flags().StringP("model", "m", "", "Agent model: opus/sonnet/haiku (default: from config)")
	observeCmd.Flags().Int("timeout", 0, "Inactivity timeout in minutes (default: from config)")
}

func runObserve(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	out := cmd.OutOrStdout()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	projectRoot, cfg, err := resolveProject(cmd, logger)
	if err != nil {
		return err
	}

	model, timeout, err := workflowSettings(cmd, cfg.Observe)
	if err != nil {
		return err
	}

	binary, err := ResolveAgentBinary(cfg.AgentBinary)
	if err != nil {
		return err
	}

	sessionArg, err := cmd.Flags().GetString("session")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	if latest && sessionArg != "" {
		return fmt.Errorf("--latest and --session are mutually exclusive")
	}
	logsDir := workspace.LogsDir(projectRoot)

	var sessionDir string
	if sessionArg != "" {
		sessionDir, err = session.Resolve(sessionArg, logsDir)
	} else {
		sessionDir, err = session.FindLatest(logsDir)
	}
	if err != nil {
		return err
	}

	noIssue, err := cmd.Flags().GetBool("no-issue")
	if err != nil {
		return err
	}

	logger.Info("observing session",
		"session", sessionDir,
		"model", string(model),
		"timeout", timeout,
		"create_issue", !noIssue)

	if session.HasSummary(sessionDir) {
		logger.Info("session has a summary", "file", session.SummaryFile)
	} else {
		fmt.Fprintf(out, "%s No %s in session; the run may still be in progress\n", yellow("!"), session.SummaryFile)
	}

	// Re-running observation on a session starts clean.
	if err := session.CleanupObservation(sessionDir, logger); err != nil {
		return err
	}

	prompt := buildObservePrompt(sessionDir, !noIssue)

	sink, err := runlog.Create(session.ObservationLogPath(sessionDir))
	if err != nil {
		return fmt.Errorf("failed to create observation log: %w", err)
	}
	defer sink.Close()

	sup := supervisor.New(logger)
	res, err := sup.Execute(cmd.Context(), prompt, supervisor.Config{
		Binary:            binary,
		Model:             model,
		AllowedTools:      observeTools,
		WorkDir:           sessionDir,
		InactivityTimeout: timeout,
		SkipPermissions:   true,
	}, sink)
	if err != nil {
		return err
	}

	if err := checkResult(res); err != nil {
		fmt.Fprintf(out, "%s %v\n", red("✗"), err)
		fmt.Fprintf(out, "  Raw output log: %s\n", sink.Path())
		return err
	}

	reportPath := session.ReportPath(sessionDir)
	if _, err := os.Stat(reportPath); err != nil {
		fmt.Fprintf(out, "%s Agent exited cleanly but wrote no report\n", yellow("!"))
		fmt.Fprintf(out, "  Raw output log: %s\n", sink.Path())
		return nil
	}

	fmt.Fprintf(out, "\n%s Observation report: %s\n", green("✓"), reportPath)
	fmt.Fprintf(out, "Observation complete in %s\n", res.Duration.Round(time.Second))

	return nil
}
