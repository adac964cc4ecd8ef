package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prdloop/prdloop/internal/discovery"
	"github.com/prdloop/prdloop/internal/extract"
	"github.com/prdloop/prdloop/internal/fsutil"
	"github.com/prdloop/prdloop/internal/prd"
	"github.com/prdloop/prdloop/internal/runlog"
	"github.com/prdloop/prdloop/internal/supervisor"
	"github.com/prdloop/prdloop/internal/workspace"
)

var convertCmd = &cobra.Command{
	Use:   "convert <spec-file>",
	Short: "Convert a spec markdown file to PRD JSON",
	Long: `Convert a spec markdown file into a PRD JSON document. The project is
analyzed (directory tree, key config files, git state) so the generated user
stories build on the existing codebase instead of describing it from scratch.

The .prd directory is initialized automatically if it does not exist.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringP("output", "o", "", "Output PRD JSON file path (default: .prd/prds/<spec-name>.json)")
	convertCmd.Flags().StringP("project", "p", "", "Project name (default: inferred from filename)")
	convertCmd.Flags().StringP("model", "m", "", "Agent model: opus/sonnet/haiku (default: from config)")
	convertCmd.Flags().Int("timeout", 0, "Inactivity timeout in minutes (default: from config)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	out := cmd.OutOrStdout()

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	specPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve spec path: %w", err)
	}
	if _, err := os.Stat(specPath); err != nil {
		return fmt.Errorf("spec file not found: %s", args[0])
	}

	projectRoot, cfg, err := resolveProject(cmd, logger)
	if err != nil {
		return err
	}

	model, timeout, err := workflowSettings(cmd, cfg.Convert)
	if err != nil {
		return err
	}

	binary, err := ResolveAgentBinary(cfg.AgentBinary)
	if err != nil {
		return err
	}

	projectName, err := cmd.Flags().GetString("project")
	if err != nil {
		return err
	}
	if projectName == "" {
		projectName = discovery.InferProjectName(specPath)
	}

	logger.Info("converting spec",
		"spec", specPath,
		"project", projectName,
		"model", string(model),
		"timeout", timeout)

	specContent, err := os.ReadFile(specPath)
	if err != nil {
		return fmt.Errorf("failed to read spec file: %w", err)
	}

	ctx := cmd.Context()
	projectCtx, err := discovery.Analyze(ctx, projectRoot, logger)
	if err != nil {
		return err
	}

	prompt := buildConversionPrompt(projectCtx, string(specContent), projectName)

	// The run log is the audit trail; refuse to launch without one.
	runID := fmt.Sprintf("convert-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
	sink, err := runlog.Create(filepath.Join(workspace.LogsDir(projectRoot), runID+".log"))
	if err != nil {
		return fmt.Errorf("failed to create run log: %w", err)
	}
	defer sink.Close()

	logger.Info("invoking agent", "run_id", runID, "log", sink.Path())

	sup := supervisor.New(logger)
	res, err := sup.Execute(ctx, prompt, supervisor.Config{
		Binary:            binary,
		Model:             model,
		WorkDir:           projectRoot,
		InactivityTimeout: timeout,
	}, sink)
	if err != nil {
		return err
	}

	if err := checkResult(res); err != nil {
		fmt.Fprintf(out, "%s %v\n", red("✗"), err)
		fmt.Fprintf(out, "  Raw output log: %s\n", sink.Path())
		return err
	}

	logger.Info("agent completed", "duration", res.Duration.Round(time.Second))

	var doc prd.PRD
	if err := extract.Unmarshal(res.RawOutput, &doc); err != nil {
		var extErr *extract.ExtractionError
		if errors.As(err, &extErr) {
			fmt.Fprintf(out, "%s Failed to parse agent output: %s\n", red("✗"), extErr.Reason)
			if extErr.Preview != "" {
				fmt.Fprintf(out, "  Output preview:\n%s\n", extErr.Preview)
			}
		}
		return err
	}

	doc.Stamp(specPath, time.Now())

	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	if outputPath == "" {
		stem := strings.TrimSuffix(filepath.Base(specPath), filepath.Ext(specPath))
		name := strings.ReplaceAll(strings.ToLower(stem), " ", "-") + ".json"
		outputPath = filepath.Join(workspace.PRDsDir(projectRoot), name)
	}
	if err := doc.Save(outputPath); err != nil {
		return err
	}

	// Stage the source spec alongside the PRD for later reference.
	specDest := filepath.Join(workspace.SpecsDir(projectRoot), filepath.Base(specPath))
	if _, err := os.Stat(specDest); os.IsNotExist(err) {
		if err := fsutil.CopyFile(specPath, specDest); err != nil {
			logger.Warn("failed to stage spec copy", "error", err)
		} else {
			logger.Info("spec copied", "path", specDest)
		}
	}

	fmt.Fprintf(out, "\n%s PRD saved to: %s\n", green("✓"), outputPath)
	fmt.Fprintf(out, "  Project: %s\n", cyan(doc.Project))
	fmt.Fprintf(out, "  Branch:  %s\n", doc.BranchName)
	fmt.Fprintf(out, "  Stories: %d\n\n", len(doc.UserStories))
	for _, story := range doc.UserStories {
		fmt.Fprintf(out, "  %s: %s\n", story.ID, story.Title)
	}
	fmt.Fprintf(out, "\nConversion complete in %s\n", res.Duration.Round(time.Second))

	return nil
}

// checkResult turns a non-successful ExecutionResult into a distinguishable
// workflow error: operators need to tell "hung" from "errored" apart.
func checkResult(res *supervisor.Result) error {
	switch {
	case res.Success:
		return nil
	case res.TimedOut:
		return fmt.Errorf("agent timed out (%s)", res.TimeoutReason)
	case res.Cancelled:
		return fmt.Errorf("agent run cancelled")
	default:
		return fmt.Errorf("agent failed with exit code %d", res.ExitCode)
	}
}
