// Package issues decides which issues of a current report are new compared
// to a previous report, tolerating line shifts and renames from the diff.
package issues

import (
	"regexp"

	"github.com/c360studio/qualitygate/diff"
	"github.com/c360studio/qualitygate/report"
)

// SourceFileIssue is an issue anchored to a file, tagged with the audit and
// plugin that produced it.
type SourceFileIssue struct {
	Message  string
	Severity report.Severity
	Source   report.Source
	Plugin   report.PluginMeta
	Audit    report.AuditMeta
}

var digitsPattern = regexp.MustCompile(`\d+`)

// RemoveDigits strips all digit runs so that messages embedding counts or
// values compare equal across runs.
func RemoveDigits(message string) string {
	return digitsPattern.ReplaceAllString(message, "")
}

// IssuesMatch reports whether prev (from the previous report) and curr (from
// the current report) are the same underlying issue.
func IssuesMatch(prev, curr SourceFileIssue, changed diff.ChangedFiles) bool {
	return prev.Plugin.Slug == curr.Plugin.Slug &&
		prev.Audit.Slug == curr.Audit.Slug &&
		prev.Severity == curr.Severity &&
		RemoveDigits(prev.Message) == RemoveDigits(curr.Message) &&
		diff.AdjustFileName(changed, prev.Source.File) == curr.Source.File &&
		positionsMatch(prev.Source, curr.Source, changed)
}

func positionsMatch(prev, curr report.Source, changed diff.ChangedFiles) bool {
	if prev.Position == nil || curr.Position == nil {
		return prev.Position == nil && curr.Position == nil
	}
	return adjustedLinesMatch(prev.Position, curr, changed) ||
		adjustedLineSpansMatch(prev.Position, curr, changed)
}

// Line lookups use the current file name; the caller has already checked that
// prev's file maps onto it.
func adjustedLinesMatch(prev *report.SourcePosition, curr report.Source, changed diff.ChangedFiles) bool {
	return diff.AdjustLine(changed, curr.File, prev.StartLine) == curr.Position.StartLine
}

func adjustedLineSpansMatch(prev *report.SourcePosition, curr report.Source, changed diff.ChangedFiles) bool {
	if prev.EndLine == nil || curr.Position.EndLine == nil {
		return false
	}
	prevSpan := *prev.EndLine - prev.StartLine
	currSpan := *curr.Position.EndLine - curr.Position.StartLine
	offset := diff.AdjustLine(changed, curr.File, curr.Position.StartLine) - curr.Position.StartLine
	return prevSpan == currSpan-offset
}
