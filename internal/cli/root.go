package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/prdloop/prdloop/internal/config"
	"github.com/prdloop/prdloop/internal/supervisor"
	"github.com/prdloop/prdloop/internal/workspace"
)

var rootCmd = &cobra.Command{
	Use:   "prdloop",
	Short: "Spec-driven PRD tooling built on a supervised coding agent",
	Long: `prdloop drives an autonomous coding agent through spec-centered
workflows: converting spec documents into PRD JSON with project context
(convert) and analyzing implementation session logs for issues (observe).

The agent runs as a supervised subprocess with a constrained tool allowlist,
an inactivity timeout, and a durable per-invocation output log under .prd/.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Add subcommands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(observeCmd)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: .prd/config.json found up the directory tree)")
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// resolveProject locates the project root and loads its configuration,
// creating both when they do not exist yet. An explicit config path pins the
// project root to the config file's directory.
func resolveProject(cmd *cobra.Command, logger *slog.Logger) (string, *config.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", nil, err
	}

	if configPath != "" {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return "", nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
		if err := cfg.Validate(); err != nil {
			return "", nil, err
		}
		root := filepath.Dir(filepath.Dir(configPath)) // <root>/.prd/config.json
		return root, cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := workspace.FindProjectRoot(cwd)
	if err != nil {
		// No .prd anywhere up the tree: initialize one here.
		root = cwd
		if err := workspace.Initialize(root); err != nil {
			return "", nil, fmt.Errorf("failed to initialize workspace: %w", err)
		}
		logger.Info("initialized workspace", "path", workspace.Root(root))
	} else if err := workspace.Initialize(root); err != nil {
		// Fill in any missing subdirectories.
		return "", nil, fmt.Errorf("failed to initialize workspace: %w", err)
	}

	cfgPath := workspace.ConfigPath(root)
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.GenerateDefault()
		if err := cfg.SaveToFile(cfgPath); err != nil {
			return "", nil, fmt.Errorf("failed to save default config: %w", err)
		}
		logger.Info("created default config", "path", cfgPath)
		return root, cfg, nil
	}

	cfg, err := config.LoadFromFile(cfgPath)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return "", nil, err
	}

	logger.Info("loaded configuration", "path", cfgPath)
	return root, cfg, nil
}

// workflowSettings resolves the model and inactivity timeout for a command,
// with the --model and --timeout flags overriding the configured defaults.
func workflowSettings(cmd *cobra.Command, wf config.Workflow) (supervisor.Model, time.Duration, error) {
	modelName, err := cmd.Flags().GetString("model")
	if err != nil {
		return "", 0, err
	}
	if modelName == "" {
		modelName = wf.Model
	}
	model, err := supervisor.ParseModel(modelName)
	if err != nil {
		return "", 0, err
	}

	minutes, err := cmd.Flags().GetInt("timeout")
	if err != nil {
		return "", 0, err
	}
	if minutes == 0 {
		minutes = wf.TimeoutMinutes
	}
	if minutes <= 0 {
		return "", 0, fmt.Errorf("timeout must be a positive number of minutes, got %d", minutes)
	}

	return model, time.Duration(minutes) * time.Minute, nil
}
