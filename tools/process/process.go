// Package process runs external commands for the CI run: package managers,
// build tools and the code-quality CLI itself.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// Exit codes reported when the command never produced one of its own.
const (
	ExitCodeTimeout  = 124
	ExitCodeNotFound = 127
)

// Command describes one invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Silent bool
}

// String renders the command line for logs and error messages.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Runner executes commands. A non-zero exit code is not an error; err is
// reserved for failures to start or wait on the process.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner is the production Runner backed by os/exec.
type ExecRunner struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// NewExecRunner creates a runner that echoes output of non-silent commands
// to the process's stdout and stderr.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{stdout: os.Stdout, stderr: os.Stderr, logger: logger}
}

// WithOutput redirects echoed output, mainly for tests.
func (r *ExecRunner) WithOutput(stdout, stderr io.Writer) *ExecRunner {
	r.stdout = stdout
	r.stderr = stderr
	return r
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (Result, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	var stdout, stderr bytes.Buffer
	if c.Silent {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	} else {
		cmd.Stdout = io.MultiWriter(&stdout, r.stdout)
		cmd.Stderr = io.MultiWriter(&stderr, r.stderr)
	}

	r.logger.Debug("Running command", slog.String("command", c.String()), slog.String("dir", c.Dir))
	err := cmd.Run()

	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			res.ExitCode = ExitCodeTimeout
			return res, fmt.Errorf("command %q timed out: %w", c.String(), ctx.Err())
		case errors.As(err, &exitErr):
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		case errors.Is(err, exec.ErrNotFound):
			res.ExitCode = ExitCodeNotFound
			return res, fmt.Errorf("command %q: %w", c.String(), err)
		default:
			res.ExitCode = 1
			return res, fmt.Errorf("command %q: %w", c.String(), err)
		}
	}

	return res, nil
}

// Exec runs the command and returns its exit code.
func Exec(ctx context.Context, r Runner, c Command) (int, error) {
	res, err := r.Run(ctx, c)
	return res.ExitCode, err
}

// Output runs the command and returns its stdout. A non-zero exit code is an
// error carrying stderr.
func Output(ctx context.Context, r Runner, c Command) (string, error) {
	res, err := r.Run(ctx, c)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &ExitError{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return res.Stdout, nil
}

// ExitError reports a command that finished with a non-zero exit code.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command '%s' failed with exit code %d", e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

// ParseCommandLine splits a configured command string such as
// "npx nx run backend:code-pushup --" into name and arguments. Quotes and
// backslash escapes group words as in a shell; there is no variable
// expansion.
func ParseCommandLine(line string) (string, []string, error) {
	words, err := shellwords.Parse(line)
	if err != nil {
		return "", nil, fmt.Errorf("invalid command %q: %w", line, err)
	}
	if len(words) == 0 {
		return "", nil, fmt.Errorf("empty command")
	}
	return words[0], words[1:], nil
}
