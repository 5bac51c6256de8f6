package issues

import (
	"log/slog"

	"github.com/c360studio/qualitygate/diff"
	"github.com/c360studio/qualitygate/report"
)

// FilterParams holds the inputs for FilterRelevantIssues.
type FilterParams struct {
	Curr    *report.Report
	Prev    *report.Report
	Diff    *report.ReportsDiff
	Changed diff.ChangedFiles
	Logger  *slog.Logger
}

// FilterRelevantIssues returns the issues of the current report that are new
// and sit in files changed by the diff. Only audits listed as changed or added
// in the reports diff are inspected; every previous issue is a match candidate
// since audits may have been renamed or restructured. Nil reports and a nil
// diff are treated as empty.
func FilterRelevantIssues(p FilterParams) []SourceFileIssue {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var candidates []SourceFileIssue
	for _, link := range p.Diff.Candidates() {
		plugin, audit, ok := p.Curr.FindAudit(link.Plugin.Slug, link.Slug)
		if !ok {
			logger.Debug("Audit from reports diff missing in current report",
				slog.String("plugin", link.Plugin.Slug),
				slog.String("audit", link.Slug))
			continue
		}
		candidates = append(candidates, AuditIssues(plugin, audit)...)
	}

	prevIssues := ReportIssues(p.Prev)
	for _, prev := range prevIssues {
		if prev.Source.Position == nil {
			continue
		}
		file := diff.AdjustFileName(p.Changed, prev.Source.File)
		if _, inside := diff.LocateLine(p.Changed, file, prev.Source.Position.StartLine); inside {
			logger.Debug("Previous issue starts inside a changed hunk, position approximated",
				slog.String("file", prev.Source.File),
				slog.Int("line", prev.Source.Position.StartLine),
				slog.String("audit", prev.Audit.Slug))
		}
	}

	var relevant []SourceFileIssue
	for _, issue := range candidates {
		if !diff.IsFileChanged(p.Changed, issue.Source.File) {
			continue
		}
		if matchesAny(prevIssues, issue, p.Changed) {
			continue
		}
		logger.Debug("New issue",
			slog.String("file", issue.Source.File),
			slog.String("previous_file", diff.OriginalFileName(p.Changed, issue.Source.File)),
			slog.String("audit", issue.Audit.Slug))
		relevant = append(relevant, issue)
	}

	logger.Debug("Filtered relevant issues",
		slog.Int("candidates", len(candidates)),
		slog.Int("previous", len(prevIssues)),
		slog.Int("new", len(relevant)))

	return relevant
}

func matchesAny(prevIssues []SourceFileIssue, curr SourceFileIssue, changed diff.ChangedFiles) bool {
	for _, prev := range prevIssues {
		if IssuesMatch(prev, curr, changed) {
			return true
		}
	}
	return false
}

// ReportIssues flattens the file-anchored issues of every audit in r.
func ReportIssues(r *report.Report) []SourceFileIssue {
	if r == nil {
		return nil
	}
	var out []SourceFileIssue
	for _, plugin := range r.Plugins {
		for _, audit := range plugin.Audits {
			out = append(out, AuditIssues(plugin, audit)...)
		}
	}
	return out
}

// AuditIssues returns the issues of one audit that have a source file.
func AuditIssues(plugin report.PluginReport, audit report.AuditReport) []SourceFileIssue {
	if audit.Details == nil {
		return nil
	}
	var out []SourceFileIssue
	for _, issue := range audit.Details.Issues {
		if issue.Source == nil || issue.Source.File == "" {
			continue
		}
		out = append(out, SourceFileIssue{
			Message:  issue.Message,
			Severity: issue.Severity,
			Source:   *issue.Source,
			Plugin:   report.PluginMeta{Slug: plugin.Slug, Title: plugin.Title},
			Audit:    report.AuditMeta{Slug: audit.Slug, Title: audit.Title},
		})
	}
	return out
}
