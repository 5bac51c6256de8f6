package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/qualitygate/diff"
	"github.com/c360studio/qualitygate/report"
)

func issue(msg string, sev report.Severity, src *report.Source) report.Issue {
	return report.Issue{Message: msg, Severity: sev, Source: src}
}

func srcAt(file string, line int) *report.Source {
	s := at(file, line)
	return &s
}

func buildReports() (prev, curr *report.Report) {
	prev = &report.Report{Plugins: []report.PluginReport{
		{Slug: "eslint", Title: "ESLint", Audits: []report.AuditReport{
			{Slug: "no-unused-vars", Title: "Disallow unused variables", Score: 0, Value: 1, Details: &report.AuditDetails{
				Issues: []report.Issue{
					issue("'x' is assigned a value but never used.", report.SeverityWarning, srcAt("src/app.ts", 10)),
				},
			}},
			{Slug: "no-console", Title: "Disallow console", Score: 0, Value: 1, Details: &report.AuditDetails{
				Issues: []report.Issue{
					issue("Unexpected console statement.", report.SeverityWarning, srcAt("src/untouched.ts", 4)),
				},
			}},
		}},
	}}

	curr = &report.Report{Plugins: []report.PluginReport{
		{Slug: "eslint", Title: "ESLint", Audits: []report.AuditReport{
			{Slug: "no-unused-vars", Title: "Disallow unused variables", Score: 0, Value: 3, Details: &report.AuditDetails{
				Issues: []report.Issue{
					// pre-existing, shifted by 5 inserted lines
					issue("'x' is assigned a value but never used.", report.SeverityWarning, srcAt("src/app.ts", 15)),
					// new in a changed file
					issue("'y' is assigned a value but never used.", report.SeverityWarning, srcAt("src/app.ts", 3)),
					// new but in a file the change did not touch
					issue("'z' is assigned a value but never used.", report.SeverityWarning, srcAt("src/untouched.ts", 8)),
					// no source, never annotated
					issue("Project-wide problem.", report.SeverityWarning, nil),
				},
			}},
			{Slug: "no-console", Title: "Disallow console", Score: 0, Value: 2, Details: &report.AuditDetails{
				Issues: []report.Issue{
					issue("Unexpected console statement.", report.SeverityWarning, srcAt("src/untouched.ts", 4)),
					// unchanged audit, skipped even though the file changed
					issue("Unexpected console statement.", report.SeverityWarning, srcAt("src/app.ts", 40)),
				},
			}},
		}},
		{Slug: "coverage", Title: "Code coverage", Audits: []report.AuditReport{
			{Slug: "function-coverage", Title: "Function coverage", Score: 0.5, Value: 50, Details: &report.AuditDetails{
				Issues: []report.Issue{
					issue("Function render is not called in any test case.", report.SeverityError, srcAt("src/app.ts", 20)),
				},
			}},
		}},
	}}
	return prev, curr
}

func TestFilterRelevantIssues(t *testing.T) {
	prev, curr := buildReports()
	reportsDiff := &report.ReportsDiff{Audits: report.AuditsDiff{
		Changed: []report.AuditLink{
			{Slug: "no-unused-vars", Plugin: report.PluginMeta{Slug: "eslint"}},
			{Slug: "missing-audit", Plugin: report.PluginMeta{Slug: "eslint"}},
		},
		Added: []report.AuditLink{
			{Slug: "function-coverage", Plugin: report.PluginMeta{Slug: "coverage"}},
		},
		Unchanged: []report.AuditLink{
			{Slug: "no-console", Plugin: report.PluginMeta{Slug: "eslint"}},
		},
	}}
	changed := diff.ChangedFiles{
		"src/app.ts": {LineChanges: []diff.LineChange{
			{Prev: diff.LineRange{Line: 5, Count: 0}, Curr: diff.LineRange{Line: 6, Count: 5}},
		}},
	}

	got := FilterRelevantIssues(FilterParams{Curr: curr, Prev: prev, Diff: reportsDiff, Changed: changed})

	require.Len(t, got, 2)
	assert.Equal(t, "'y' is assigned a value but never used.", got[0].Message)
	assert.Equal(t, "no-unused-vars", got[0].Audit.Slug)
	assert.Equal(t, "ESLint", got[0].Plugin.Title)
	assert.Equal(t, "Function render is not called in any test case.", got[1].Message)
	assert.Equal(t, "coverage", got[1].Plugin.Slug)
}

func TestFilterRelevantIssues_NoChangedFiles(t *testing.T) {
	prev, curr := buildReports()
	reportsDiff := report.CompareReports(prev, curr)

	got := FilterRelevantIssues(FilterParams{Curr: curr, Prev: prev, Diff: reportsDiff, Changed: diff.ChangedFiles{}})
	assert.Empty(t, got)
}

func TestFilterRelevantIssues_NilInputs(t *testing.T) {
	prev, curr := buildReports()
	changed := diff.ChangedFiles{"src/app.ts": {LineChanges: []diff.LineChange{}}}
	reportsDiff := &report.ReportsDiff{Audits: report.AuditsDiff{
		Changed: []report.AuditLink{{Slug: "no-unused-vars", Plugin: report.PluginMeta{Slug: "eslint"}}},
		Added:   []report.AuditLink{{Slug: "function-coverage", Plugin: report.PluginMeta{Slug: "coverage"}}},
	}}

	t.Run("nil diff has no candidates", func(t *testing.T) {
		got := FilterRelevantIssues(FilterParams{Curr: curr, Prev: prev, Changed: changed})
		assert.Empty(t, got)
	})

	t.Run("nil previous report makes every issue new", func(t *testing.T) {
		got := FilterRelevantIssues(FilterParams{Curr: curr, Diff: reportsDiff, Changed: changed})
		require.Len(t, got, 3)
		for _, i := range got {
			assert.Equal(t, "src/app.ts", i.Source.File)
		}
	})

	t.Run("nil current report", func(t *testing.T) {
		got := FilterRelevantIssues(FilterParams{Prev: prev, Diff: reportsDiff, Changed: changed})
		assert.Empty(t, got)
	})
}

func TestReportIssues(t *testing.T) {
	_, curr := buildReports()
	all := ReportIssues(curr)
	assert.Len(t, all, 6)
	for _, i := range all {
		assert.NotEmpty(t, i.Source.File)
		assert.NotEmpty(t, i.Audit.Slug)
		assert.NotEmpty(t, i.Plugin.Slug)
	}
}
