// Package git wraps the git operations a CI run needs: diffing the head
// against the base commit and temporarily checking out the base branch.
package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/c360studio/qualitygate/diff"
)

// DefaultRemote is fetched from when checking out the base branch.
const DefaultRemote = "origin"

// Executor runs git commands in a repository.
type Executor struct {
	repoRoot string
	remote   string
	logger   *slog.Logger
}

// NewExecutor creates a git executor for the repository at repoRoot.
func NewExecutor(repoRoot string, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{repoRoot: repoRoot, remote: DefaultRemote, logger: logger}
}

// WithRemote sets the remote fetched by WithCheckout. An empty remote skips
// the fetch.
func (e *Executor) WithRemote(remote string) *Executor {
	e.remote = remote
	return e
}

// DiffSummary lists files added or modified between base and head,
// skipping binary files.
func (e *Executor) DiffSummary(ctx context.Context, base, head string) ([]string, error) {
	output, err := e.runGit(ctx, "diff", "--numstat", "--no-renames", "--diff-filter=AM", base, head)
	if err != nil {
		return nil, fmt.Errorf("diff summary failed: %w", err)
	}

	var files []string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), "\t", 3)
		if len(fields) != 3 {
			continue
		}
		// numstat prints "-" for added and deleted counts of binary files
		if fields[0] == "-" && fields[1] == "-" {
			continue
		}
		files = append(files, fields[2])
	}
	return files, scanner.Err()
}

// ChangedFiles returns the changed line ranges of every added, modified or
// renamed file between base and head.
func (e *Executor) ChangedFiles(ctx context.Context, base, head string) (diff.ChangedFiles, error) {
	output, err := e.runGit(ctx, "diff", "--unified=0", "--find-renames", "--diff-filter=AMR",
		"--no-color", "--no-ext-diff", base, head)
	if err != nil {
		return nil, fmt.Errorf("diff failed: %w", err)
	}
	changed, err := diff.ParseUnified(output)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diff of %s..%s: %w", base, head, err)
	}
	return changed, nil
}

// Fetch fetches a single shallow ref from remote.
func (e *Executor) Fetch(ctx context.Context, remote, ref string) error {
	if _, err := e.runGit(ctx, "fetch", remote, ref, "--depth=1"); err != nil {
		return fmt.Errorf("fetch %s %s failed: %w", remote, ref, err)
	}
	return nil
}

// FetchBase makes the base commit available in a shallow clone and returns
// the revision to diff against: sha when it is present after fetching ref,
// otherwise the fetched tip of ref. A failed fetch is tolerated when sha is
// already present.
func (e *Executor) FetchBase(ctx context.Context, ref, sha string) (string, error) {
	var fetchErr error
	if e.remote != "" {
		fetchErr = e.Fetch(ctx, e.remote, ref)
	}
	if sha != "" && e.hasCommit(ctx, sha) {
		if fetchErr != nil {
			e.logger.Warn("Failed to fetch base branch, using local commit",
				slog.String("ref", ref), slog.Any("error", fetchErr))
		}
		return sha, nil
	}
	if fetchErr != nil {
		return "", fetchErr
	}
	if e.remote == "" {
		return ref, nil
	}
	output, err := e.runGit(ctx, "rev-parse", "FETCH_HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve fetched %s: %w", ref, err)
	}
	rev := strings.TrimSpace(output)
	e.logger.Debug("Base commit not available, diffing against fetched tip",
		slog.String("sha", sha), slog.String("rev", rev))
	return rev, nil
}

func (e *Executor) hasCommit(ctx context.Context, sha string) bool {
	_, err := e.runGit(ctx, "cat-file", "-e", sha+"^{commit}")
	return err == nil
}

// Checkout force-checks out ref, discarding local changes.
func (e *Executor) Checkout(ctx context.Context, ref string) error {
	if _, err := e.runGit(ctx, "checkout", "-f", ref); err != nil {
		return fmt.Errorf("checkout %s failed: %w", ref, err)
	}
	return nil
}

// CurrentRef returns the checked-out branch name, or the commit SHA when
// HEAD is detached.
func (e *Executor) CurrentRef(ctx context.Context) (string, error) {
	output, err := e.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	ref := strings.TrimSpace(output)
	if ref != "HEAD" {
		return ref, nil
	}
	output, err = e.runGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return strings.TrimSpace(output), nil
}

// WithCheckout runs fn with ref checked out and switches back to the
// original ref afterwards, whether fn fails or not.
func (e *Executor) WithCheckout(ctx context.Context, ref string, fn func(ctx context.Context) error) (err error) {
	original, err := e.CurrentRef(ctx)
	if err != nil {
		return err
	}

	if e.remote != "" {
		if err := e.Fetch(ctx, e.remote, ref); err != nil {
			return err
		}
	}
	if err := e.Checkout(ctx, ref); err != nil {
		return err
	}
	e.logger.Debug("Switched to base branch", slog.String("ref", ref))

	defer func() {
		// restore even when ctx is already cancelled
		if restoreErr := e.Checkout(context.WithoutCancel(ctx), original); restoreErr != nil {
			err = errors.Join(err, restoreErr)
			return
		}
		e.logger.Debug("Switched back to current branch", slog.String("ref", original))
	}()

	return fn(ctx)
}

// runGit executes a git command in the repo directory and returns stdout.
func (e *Executor) runGit(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = e.repoRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
