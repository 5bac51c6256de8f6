package github

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	gh "github.com/google/go-github/v68/github"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ReportArtifactName is the artifact holding reports of a workflow run.
const ReportArtifactName = "code-pushup-report"

const maxArtifactRedirects = 3

// downloadedArtifact is an extracted artifact. Files are slash-separated
// paths relative to Dir.
type downloadedArtifact struct {
	Dir   string
	Files map[string]bool
}

// artifactCache downloads each base commit's artifact at most once per run.
// A nil artifact (none found) is cached too; failures are not.
type artifactCache struct {
	group singleflight.Group
	mu    sync.Mutex
	done  map[string]*downloadedArtifact
}

func newArtifactCache() *artifactCache {
	return &artifactCache{done: make(map[string]*downloadedArtifact)}
}

func (c *artifactCache) get(sha string, fetch func() (*downloadedArtifact, error)) (*downloadedArtifact, error) {
	c.mu.Lock()
	if a, ok := c.done[sha]; ok {
		c.mu.Unlock()
		return a, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(sha, func() (any, error) {
		c.mu.Lock()
		a, ok := c.done[sha]
		c.mu.Unlock()
		if ok {
			return a, nil
		}
		a, err := fetch()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.done[sha] = a
		c.mu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	a, _ := v.(*downloadedArtifact)
	return a, nil
}

func (c *artifactCache) dirs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dirs []string
	for _, a := range c.done {
		if a != nil {
			dirs = append(dirs, a.Dir)
		}
	}
	return dirs
}

// ReportsDir holds the reports a run leaves for the artifact, relative to the
// repository directory.
const ReportsDir = ".code-pushup/.ci"

// ReportPath is where a project's report lives inside the artifact. An
// empty project is the single-project layout.
func ReportPath(project string) string {
	parts := []string{ReportsDir}
	if project != "" {
		parts = append(parts, project)
	}
	return strings.Join(append(parts, ".current", "report.json"), "/")
}

// find returns the archive path of the project's report. Artifacts uploaded
// from the repository directory keep the ReportsDir prefix, artifacts
// uploaded from ReportsDir itself don't.
func (a *downloadedArtifact) find(project string) (string, bool) {
	expected := ReportPath(project)
	for _, name := range []string{expected, strings.TrimPrefix(expected, ReportsDir+"/")} {
		if a.Files[name] {
			return name, true
		}
	}
	return expected, false
}

// DownloadReportArtifact returns the local path of the project's report from
// the base commit's workflow run. It returns "" without error when there is
// no base branch, no completed run, or no usable artifact.
func (c *Client) DownloadReportArtifact(ctx context.Context, project string) (string, error) {
	base := c.refs.Base
	if base == nil {
		c.logger.Debug("Tried to download artifact without base branch, skipping")
		return "", nil
	}

	artifact, err := c.artifacts.get(base.SHA, func() (*downloadedArtifact, error) {
		return c.downloadReportsArtifact(ctx, *base)
	})
	if err != nil {
		return "", err
	}
	if artifact == nil {
		return "", nil
	}

	name, ok := artifact.find(project)
	if !ok {
		c.logger.Warn("Downloaded artifact doesn't contain report", slog.String("file", name))
		return "", nil
	}
	return filepath.Join(artifact.Dir, filepath.FromSlash(name)), nil
}

// Close removes downloaded artifacts.
func (c *Client) Close() error {
	var errs []error
	for _, dir := range c.artifacts.dirs() {
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Client) downloadReportsArtifact(ctx context.Context, base Branch) (*downloadedArtifact, error) {
	owner, repo := c.repo.Owner, c.repo.Name

	run, _, err := c.gh.Actions.GetWorkflowRunByID(ctx, owner, repo, c.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run %d: %w", c.runID, err)
	}
	workflowID := run.GetWorkflowID()
	c.logger.Debug("Looked up workflow ID from run",
		slog.Int64("workflow_id", workflowID), slog.Int64("run_id", c.runID))

	runs, _, err := c.gh.Actions.ListWorkflowRunsByID(ctx, owner, repo, workflowID, &gh.ListWorkflowRunsOptions{
		Branch: base.Ref,
		Status: "completed",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of workflow %d: %w", workflowID, err)
	}
	c.logger.Debug(fmt.Sprintf("Fetched %d completed workflow runs in %s branch", len(runs.WorkflowRuns), base.Ref))

	var baseRun *gh.WorkflowRun
	for _, r := range runs.WorkflowRuns {
		if r.GetHeadSHA() == base.SHA {
			baseRun = r
			break
		}
	}
	if baseRun == nil {
		c.logger.Info(fmt.Sprintf("Workflow run not found for %s branch's commit %s", base.Ref, base.SHA))
		return nil, nil
	}

	artifact, err := c.fetchArtifact(ctx, baseRun.GetID())
	var apiErr *gh.ErrorResponse
	if errors.As(err, &apiErr) {
		c.logger.Info("Artifact download failed",
			slog.String("error", apiErr.Message),
			slog.Int("status", apiErr.Response.StatusCode))
		return nil, nil
	}
	return artifact, err
}

func (c *Client) fetchArtifact(ctx context.Context, runID int64) (*downloadedArtifact, error) {
	owner, repo := c.repo.Owner, c.repo.Name

	list, _, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, runID, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, err
	}
	var found *gh.Artifact
	for _, a := range list.Artifacts {
		if a.GetName() == ReportArtifactName {
			found = a
			break
		}
	}
	if found == nil {
		c.logger.Info(fmt.Sprintf("Artifact %s not found in workflow run %d", ReportArtifactName, runID))
		return nil, nil
	}
	c.logger.Debug("Found report artifact",
		slog.Int64("artifact_id", found.GetID()), slog.Int64("run_id", runID))

	location, _, err := c.gh.Actions.DownloadArtifact(ctx, owner, repo, found.GetID(), maxArtifactRedirects)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %d: %w", found.GetID(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download artifact %d: unexpected status %s", found.GetID(), resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %d: %w", found.GetID(), err)
	}

	dir := filepath.Join(c.tempDir, "qualitygate-artifact-"+uuid.NewString())
	files, err := unzip(data, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract artifact %d: %w", found.GetID(), err)
	}
	c.logger.Debug(fmt.Sprintf("Downloaded artifact to %s, contains %d files", dir, len(files)))
	return &downloadedArtifact{Dir: dir, Files: files}, nil
}

// unzip extracts an archive into dir, refusing entries that escape it.
func unzip(data []byte, dir string) (map[string]bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files := make(map[string]bool)
	for _, f := range zr.File {
		name := filepath.ToSlash(filepath.Clean(f.Name))
		if filepath.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("illegal path in archive: %s", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return nil, err
		}
		files[name] = true
	}
	return files, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
