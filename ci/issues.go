package ci

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/c360studio/qualitygate/issues"
	"github.com/c360studio/qualitygate/report"
)

// NewIssuesInput names the files and commits to compare.
type NewIssuesInput struct {
	CurrPath string
	PrevPath string
	// DiffPath is the CLI's report-diff.json; when empty the audit diff is
	// computed from the two reports.
	DiffPath string
	BaseSHA  string
	HeadSHA  string
}

// FindNewIssues loads both reports and returns the issues introduced
// between BaseSHA and HeadSHA, most severe first. Issues of equal severity
// keep report order.
func FindNewIssues(ctx context.Context, git Git, in NewIssuesInput, logger *slog.Logger) ([]issues.SourceFileIssue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	curr, err := report.LoadFromFile(in.CurrPath)
	if err != nil {
		return nil, fmt.Errorf("current report: %w", err)
	}
	prev, err := report.LoadFromFile(in.PrevPath)
	if err != nil {
		return nil, fmt.Errorf("previous report: %w", err)
	}
	logger.Debug("Loaded reports",
		slog.Int("current_issues", curr.CountIssues()),
		slog.Int("previous_issues", prev.CountIssues()))

	var reportsDiff *report.ReportsDiff
	if in.DiffPath != "" {
		reportsDiff, err = report.LoadDiffFromFile(in.DiffPath)
		if err != nil {
			return nil, err
		}
	} else {
		reportsDiff = report.CompareReports(prev, curr)
	}

	changed, err := git.ChangedFiles(ctx, in.BaseSHA, in.HeadSHA)
	if err != nil {
		return nil, fmt.Errorf("failed to list changed files: %w", err)
	}
	logger.Debug("Changed files", slog.Int("count", len(changed)))

	found := issues.FilterRelevantIssues(issues.FilterParams{
		Curr:    curr,
		Prev:    prev,
		Diff:    reportsDiff,
		Changed: changed,
		Logger:  logger,
	})
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].Severity.Rank() > found[j].Severity.Rank()
	})
	return found, nil
}
