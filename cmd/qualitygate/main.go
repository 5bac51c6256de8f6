// Package main provides the qualitygate binary entry point.
// Qualitygate runs the code-quality CLI in CI, compares the report with the
// base branch and annotates issues introduced by a pull request.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/c360studio/qualitygate/annotations"
	"github.com/c360studio/qualitygate/ci"
	"github.com/c360studio/qualitygate/config"
	"github.com/c360studio/qualitygate/monorepo"
	"github.com/c360studio/qualitygate/tools/git"
	"github.com/c360studio/qualitygate/tools/process"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "qualitygate"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd(os.Getenv).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// globalFlags override configuration from files and the environment.
type globalFlags struct {
	configFile  string
	directory   string
	bin         string
	cliConfig   string
	task        string
	monorepo    string
	projects    []string
	silent      bool
	debug       bool
	metricsFile string
}

func rootCmd(getenv func(string) string) *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Code quality gate for pull requests",
		Long: `Qualitygate runs the code-quality CLI for every project of a repository,
compares the results with the base branch and reports what a pull request
changed.

It provides:
- Monorepo project discovery (Nx, Turborepo, Yarn, pnpm, npm workspaces)
- Base branch reports from workflow artifacts or a scoped checkout
- Inline annotations for issues introduced by the change
- A pull request comment with the report diff`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "file", "f", "", "Config file path (YAML), default searches for "+config.ProjectConfigFile)
	pf.StringVar(&flags.directory, "directory", "", "Repository directory")
	pf.StringVar(&flags.bin, "bin", "", "Command that runs the code-quality CLI")
	pf.StringVar(&flags.cliConfig, "config", "", "Config file passed to the code-quality CLI")
	pf.StringVar(&flags.task, "task", "", "Script or target that runs the CLI in monorepo projects")
	pf.StringVar(&flags.monorepo, "monorepo", "", "Monorepo mode: false, true (auto-detect) or nx/turbo/yarn/pnpm/npm")
	pf.StringSliceVar(&flags.projects, "projects", nil, "Project directory globs when no monorepo tool is found")
	pf.BoolVar(&flags.silent, "silent", false, "Hide output of the code-quality CLI")
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	cmd.AddCommand(
		runCmd(flags, getenv),
		projectsCmd(flags, getenv),
		newIssuesCmd(flags, getenv),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func runCmd(flags *globalFlags, getenv func(string) string) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Collect, compare and report code quality for the current change",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, flags, getenv)
			if err != nil {
				return err
			}
			app, err := NewApp(cmd.Context(), cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(); err != nil {
					logger.Warn("Cleanup failed", slog.Any("error", err))
				}
			}()

			result, err := app.Run(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info("Run complete",
				slog.String("run_id", result.ID),
				slog.Int("projects", len(result.Projects)),
				slog.Int("new_issues", result.Annotations))
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runOutput{RunResult: result, Commands: app.Commands()})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run result as JSON")
	return cmd
}

func projectsCmd(flags *globalFlags, getenv func(string) string) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects the code-quality CLI runs for",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, flags, getenv)
			if err != nil {
				return err
			}
			projects, err := listProjects(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), projects)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBIN\tDIRECTORY")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.Bin, p.Directory)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print projects as JSON")
	return cmd
}

func newIssuesCmd(flags *globalFlags, getenv func(string) string) *cobra.Command {
	var (
		in         ci.NewIssuesInput
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "new-issues",
		Short: "Annotate issues of the current report that are new since the base commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd, flags, getenv)
			if err != nil {
				return err
			}
			executor := git.NewExecutor(cfg.Directory, logger)
			found, err := ci.FindNewIssues(cmd.Context(), executor, in, logger)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			n, err := annotations.NewWriter(cmd.OutOrStdout()).WriteAll(found)
			if err != nil {
				return err
			}
			logger.Info(fmt.Sprintf("Annotated %d new issues", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&in.CurrPath, "curr", "", "Current report JSON")
	cmd.Flags().StringVar(&in.PrevPath, "prev", "", "Previous report JSON")
	cmd.Flags().StringVar(&in.DiffPath, "diff", "", "Reports diff JSON, computed from the reports when omitted")
	cmd.Flags().StringVar(&in.BaseSHA, "base", "", "Base commit")
	cmd.Flags().StringVar(&in.HeadSHA, "head", "HEAD", "Head commit")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print issues as JSON instead of annotations")
	for _, name := range []string{"curr", "prev", "base"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func listProjects(ctx context.Context, cfg *config.Config, logger *slog.Logger) ([]monorepo.ProjectConfig, error) {
	mode, err := cfg.MonorepoMode()
	if err != nil {
		return nil, err
	}
	if !mode.Enabled {
		return []monorepo.ProjectConfig{{Bin: cfg.Bin, Directory: cfg.Directory}}, nil
	}
	return monorepo.ListProjects(ctx, monorepo.ListOptions{
		Mode:             mode,
		Projects:         cfg.Projects,
		Task:             cfg.Task,
		Bin:              cfg.Bin,
		Directory:        cfg.Directory,
		Silent:           cfg.Silent,
		CLIPackage:       cfg.CLIPackage,
		NxProjectsFilter: cfg.NxProjectsFilter,
		Logger:           logger,
	})
}

// runOutput is the JSON form of a finished run.
type runOutput struct {
	*ci.RunResult
	Commands []process.Record `json:"commands"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
