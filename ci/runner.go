// Package ci runs the code-quality CLI for every project of a repository,
// compares the results against the base branch and reports new issues on the
// pull request.
package ci

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/c360studio/qualitygate/annotations"
	"github.com/c360studio/qualitygate/config"
	"github.com/c360studio/qualitygate/diff"
	"github.com/c360studio/qualitygate/issues"
	"github.com/c360studio/qualitygate/metrics"
	"github.com/c360studio/qualitygate/monorepo"
	"github.com/c360studio/qualitygate/tools/github"
	"github.com/c360studio/qualitygate/tools/process"
)

// CommentMarker identifies the pull request comment owned by qualitygate.
const CommentMarker = "<!-- generated by qualitygate -->"

// Git is the subset of git.Executor used by a run.
type Git interface {
	FetchBase(ctx context.Context, ref, sha string) (string, error)
	ChangedFiles(ctx context.Context, base, head string) (diff.ChangedFiles, error)
	WithCheckout(ctx context.Context, ref string, fn func(ctx context.Context) error) error
}

// Platform is the subset of the GitHub client used by a run.
type Platform interface {
	DownloadReportArtifact(ctx context.Context, project string) (string, error)
	UpsertComment(ctx context.Context, marker, body string) (github.Comment, error)
}

// Options wires a Runner. Platform may be nil, which disables artifacts and
// comments.
type Options struct {
	Config      *config.Config
	Refs        github.Refs
	Git         Git
	Platform    Platform
	Runner      process.Runner
	Annotations *annotations.Writer
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Runner executes one CI run.
type Runner struct {
	cfg         *config.Config
	refs        github.Refs
	git         Git
	platform    Platform
	runner      process.Runner
	annotations *annotations.Writer
	metrics     *metrics.Metrics
	logger      *slog.Logger
	cli         *cli
}

// ProjectResult is the outcome for one project. ArtifactReport is the copy
// of the current report in the layout DownloadReportArtifact expects, for an
// artifact uploaded from the repository directory.
type ProjectResult struct {
	Name           string                   `json:"name,omitempty"`
	Files          PersistedFiles           `json:"files"`
	ArtifactReport string                   `json:"artifactReport"`
	Diff           *PersistedFiles          `json:"diff,omitempty"`
	NewIssues      []issues.SourceFileIssue `json:"newIssues,omitempty"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	ID       string          `json:"id"`
	Monorepo bool            `json:"monorepo"`
	Projects []ProjectResult `json:"projects"`
	// DiffPath is the markdown diff posted as the comment, if any.
	DiffPath    string `json:"diffPath,omitempty"`
	CommentID   int64  `json:"commentId,omitempty"`
	Annotations int    `json:"annotations"`
}

// NewRunner creates a Runner. Config, Git and Runner are required.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Git == nil {
		return nil, errors.New("git is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("process runner is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	writer := opts.Annotations
	if writer == nil {
		writer = annotations.NewWriter(nil)
	}
	return &Runner{
		cfg:         opts.Config,
		refs:        opts.Refs,
		git:         opts.Git,
		platform:    opts.Platform,
		runner:      opts.Runner,
		annotations: writer,
		metrics:     m,
		logger:      logger,
		cli:         &cli{runner: opts.Runner, metrics: m, logger: logger},
	}, nil
}

// Run collects reports for every project, compares them with the base
// branch and posts the results. The first project error aborts the run.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{ID: uuid.NewString()}
	logger := r.logger.With(slog.String("run_id", result.ID))

	if r.cfg.MetricsFile != "" {
		defer func() {
			if err := r.metrics.WriteToTextfile(r.cfg.MetricsFile); err != nil {
				logger.Warn("Failed to write metrics", slog.Any("error", err))
			}
		}()
	}

	mode, err := r.cfg.MonorepoMode()
	if err != nil {
		return nil, err
	}
	result.Monorepo = mode.Enabled

	projects, err := r.projects(ctx, mode, logger)
	if err != nil {
		return nil, err
	}
	if mode.Enabled && len(projects) == 0 {
		logger.Warn("No projects found in monorepo, nothing to do")
		return result, nil
	}

	for _, project := range projects {
		res, err := r.runProject(ctx, project, mode.Enabled, logger)
		if err != nil {
			if project.Name != "" {
				return nil, fmt.Errorf("project %s: %w", project.Name, err)
			}
			return nil, err
		}
		result.Projects = append(result.Projects, res)
		result.Annotations += len(res.NewIssues)
	}

	diffPath, err := r.diffForComment(ctx, result.Projects, logger)
	if err != nil {
		return nil, err
	}
	result.DiffPath = diffPath

	if diffPath != "" && r.refs.PullRequest != 0 && r.platform != nil {
		body, err := os.ReadFile(diffPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read diff: %w", err)
		}
		comment, err := r.platform.UpsertComment(ctx, CommentMarker, string(body))
		if err != nil {
			return nil, fmt.Errorf("failed to comment on pull request: %w", err)
		}
		r.metrics.Comments.Inc()
		result.CommentID = comment.ID
		logger.Info("Updated pull request comment", slog.String("url", comment.URL))
	}

	return result, nil
}

func (r *Runner) projects(ctx context.Context, mode monorepo.Mode, logger *slog.Logger) ([]monorepo.ProjectConfig, error) {
	if !mode.Enabled {
		return []monorepo.ProjectConfig{{Bin: r.cfg.Bin, Directory: r.cfg.Directory}}, nil
	}
	return monorepo.ListProjects(ctx, monorepo.ListOptions{
		Mode:             mode,
		Projects:         r.cfg.Projects,
		Task:             r.cfg.Task,
		Bin:              r.cfg.Bin,
		Directory:        r.cfg.Directory,
		Silent:           r.cfg.Silent,
		Runner:           r.runner,
		CLIPackage:       r.cfg.CLIPackage,
		NxProjectsFilter: r.cfg.NxProjectsFilter,
		Logger:           logger,
	})
}

func (r *Runner) runProject(ctx context.Context, project monorepo.ProjectConfig, isMonorepo bool, logger *slog.Logger) (ProjectResult, error) {
	cc := commandContext{
		bin:    project.Bin,
		config: r.cfg.ConfigPath,
		dir:    project.Directory,
		silent: r.cfg.Silent,
	}
	if cc.dir == "" {
		cc.dir = r.cfg.Directory
	}
	if isMonorepo {
		cc.project = project.Name
		logger = logger.With(slog.String("project", project.Name))
	}
	res := ProjectResult{Name: cc.project}

	if r.cfg.Debug {
		if err := r.cli.printConfig(ctx, cc); err != nil {
			logger.Warn("Failed to print CLI config", slog.Any("error", err))
		}
	}

	files, err := r.cli.collect(ctx, cc)
	if err != nil {
		return res, err
	}
	res.Files = files
	r.metrics.Projects.Inc()
	logger.Info("Collected current report", slog.String("path", files.JSON))

	artifactPath := filepath.Join(r.cfg.Directory, filepath.FromSlash(github.ReportPath(cc.project)))
	if err := copyFile(files.JSON, artifactPath); err != nil {
		return res, err
	}
	res.ArtifactReport = artifactPath

	base := r.refs.Base
	if base == nil {
		r.metrics.PreviousReports.WithLabelValues(metrics.SourceNone).Inc()
		logger.Debug("No base branch, skipping comparison")
		return res, nil
	}

	// The base branch collection overwrites the current report, so keep a copy first.
	currPath := filepath.Join(cc.dir, OutputDir, filename(cc.project, "curr-report.json"))
	if err := copyFile(files.JSON, currPath); err != nil {
		return res, err
	}

	prevSource, err := r.previousReport(ctx, cc, *base, logger)
	if err != nil {
		return res, err
	}
	prevPath := filepath.Join(cc.dir, OutputDir, filename(cc.project, "prev-report.json"))
	if err := copyFile(prevSource, prevPath); err != nil {
		return res, err
	}
	logger.Debug("Saved reports", slog.String("curr", currPath), slog.String("prev", prevPath))

	diffFiles, err := r.cli.compare(ctx, cc, prevPath, currPath, cc.project)
	if err != nil {
		return res, err
	}
	res.Diff = &diffFiles
	logger.Info("Compared reports", slog.String("path", diffFiles.MD))

	if !r.cfg.Annotations {
		return res, nil
	}

	// Diff against the checked-out HEAD; the base commit may be missing from
	// a shallow clone until fetched.
	baseRev, err := r.git.FetchBase(ctx, base.Ref, base.SHA)
	if err != nil {
		return res, fmt.Errorf("failed to fetch base branch %s: %w", base.Ref, err)
	}
	newIssues, err := FindNewIssues(ctx, r.git, NewIssuesInput{
		CurrPath: currPath,
		PrevPath: prevPath,
		DiffPath: diffFiles.JSON,
		BaseSHA:  baseRev,
		HeadSHA:  "HEAD",
	}, logger)
	if err != nil {
		return res, err
	}
	if _, err := r.annotations.WriteAll(newIssues); err != nil {
		return res, fmt.Errorf("failed to write annotations: %w", err)
	}
	for _, issue := range newIssues {
		r.metrics.NewIssues.WithLabelValues(project.Name, string(issue.Severity)).Inc()
	}
	res.NewIssues = newIssues
	logger.Info(fmt.Sprintf("Found %d new issues", len(newIssues)))
	return res, nil
}

// previousReport returns the path of the base branch report, downloaded
// from the base commit's workflow artifact or collected on the base branch.
func (r *Runner) previousReport(ctx context.Context, cc commandContext, base github.Branch, logger *slog.Logger) (string, error) {
	if r.cfg.Artifacts && r.platform != nil {
		path, err := r.platform.DownloadReportArtifact(ctx, cc.project)
		switch {
		case err != nil:
			logger.Warn("Failed to download base report artifact, collecting instead", slog.Any("error", err))
		case path != "":
			r.metrics.PreviousReports.WithLabelValues(metrics.SourceArtifact).Inc()
			logger.Info("Using base report from artifact", slog.String("path", path))
			return path, nil
		}
	}

	var files PersistedFiles
	err := r.git.WithCheckout(ctx, base.Ref, func(ctx context.Context) error {
		var err error
		files, err = r.cli.collect(ctx, cc)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to collect report on base branch %s: %w", base.Ref, err)
	}
	r.metrics.PreviousReports.WithLabelValues(metrics.SourceCollect).Inc()
	logger.Info("Collected previous report", slog.String("ref", base.Ref), slog.String("path", files.JSON))
	return files.JSON, nil
}

// diffForComment returns the markdown diff to post: the single project's
// diff, or all diffs merged by the CLI.
func (r *Runner) diffForComment(ctx context.Context, projects []ProjectResult, logger *slog.Logger) (string, error) {
	var diffs []PersistedFiles
	for _, p := range projects {
		if p.Diff != nil {
			diffs = append(diffs, *p.Diff)
		}
	}
	switch len(diffs) {
	case 0:
		return "", nil
	case 1:
		return diffs[0].MD, nil
	}

	files := make([]string, len(diffs))
	for i, d := range diffs {
		files[i] = d.JSON
	}
	path, err := r.cli.mergeDiffs(ctx, commandContext{
		bin:    r.cfg.Bin,
		config: r.cfg.ConfigPath,
		dir:    r.cfg.Directory,
		silent: r.cfg.Silent,
	}, files)
	if err != nil {
		return "", err
	}
	logger.Info(fmt.Sprintf("Merged %d project diffs", len(diffs)), slog.String("path", path))
	return path, nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dst), err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", dst, err)
	}
	return nil
}
