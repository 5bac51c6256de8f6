package ci

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/c360studio/qualitygate/metrics"
	"github.com/c360studio/qualitygate/tools/process"
)

// CLI subcommand names, also used as metric labels.
const (
	commandCollect     = "collect"
	commandCompare     = "compare"
	commandMergeDiffs  = "merge-diffs"
	commandPrintConfig = "print-config"
)

// commandContext is what every CLI invocation for one project needs.
type commandContext struct {
	bin     string
	config  string
	dir     string
	silent  bool
	project string
}

// cli runs code-quality CLI subcommands and records their timings.
type cli struct {
	runner  process.Runner
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func (c *cli) collect(ctx context.Context, cc commandContext) (PersistedFiles, error) {
	args := append(configArgs(cc.config), persistArgs(cc.dir, cc.project)...)
	if err := c.exec(ctx, commandCollect, cc, args); err != nil {
		return PersistedFiles{}, err
	}
	return persistedFiles(cc.dir, cc.project, false), nil
}

func (c *cli) compare(ctx context.Context, cc commandContext, before, after, label string) (PersistedFiles, error) {
	args := []string{"compare", "--before=" + before, "--after=" + after}
	if label != "" {
		args = append(args, "--label="+label)
	}
	args = append(args, configArgs(cc.config)...)
	args = append(args, persistArgs(cc.dir, cc.project)...)
	if err := c.exec(ctx, commandCompare, cc, args); err != nil {
		return PersistedFiles{}, err
	}
	return persistedFiles(cc.dir, cc.project, true), nil
}

// mergeDiffs combines per-project diffs into one markdown diff in cc.dir.
func (c *cli) mergeDiffs(ctx context.Context, cc commandContext, files []string) (string, error) {
	args := []string{"merge-diffs"}
	for _, f := range files {
		args = append(args, "--files="+f)
	}
	args = append(args, configArgs(cc.config)...)
	args = append(args, persistArgs(cc.dir, "")...)
	if err := c.exec(ctx, commandMergeDiffs, cc, args); err != nil {
		return "", err
	}
	return persistedFiles(cc.dir, "", true).MD, nil
}

func (c *cli) printConfig(ctx context.Context, cc commandContext) error {
	args := append(configArgs(cc.config), "print-config")
	return c.exec(ctx, commandPrintConfig, cc, args)
}

func (c *cli) exec(ctx context.Context, command string, cc commandContext, args []string) error {
	name, binArgs, err := process.ParseCommandLine(cc.bin)
	if err != nil {
		return fmt.Errorf("invalid bin: %w", err)
	}
	cmd := process.Command{
		Name:   name,
		Args:   append(binArgs, args...),
		Dir:    cc.dir,
		Silent: cc.silent,
	}
	c.logger.Debug("Running code-quality CLI",
		slog.String("command", command),
		slog.String("project", cc.project),
		slog.String("line", cmd.String()))

	start := time.Now()
	res, err := c.runner.Run(ctx, cmd)
	c.metrics.ObserveCommand(command, time.Since(start), res.ExitCode)
	if err != nil {
		return fmt.Errorf("%s: %w", command, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("%s: %w", command, &process.ExitError{
			Command:  cmd.String(),
			ExitCode: res.ExitCode,
			Stderr:   res.Stderr,
		})
	}
	return nil
}
