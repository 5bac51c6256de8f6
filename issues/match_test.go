package issues

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360studio/qualitygate/diff"
	"github.com/c360studio/qualitygate/report"
)

func intPtr(n int) *int { return &n }

func at(file string, start int) report.Source {
	return report.Source{File: file, Position: &report.SourcePosition{StartLine: start}}
}

func span(file string, start, end int) report.Source {
	return report.Source{File: file, Position: &report.SourcePosition{StartLine: start, EndLine: intPtr(end)}}
}

func functionCoverageIssue(src report.Source) SourceFileIssue {
	return SourceFileIssue{
		Plugin:   report.PluginMeta{Slug: "coverage", Title: "Code coverage"},
		Audit:    report.AuditMeta{Slug: "function-coverage", Title: "Function coverage"},
		Message:  "Function formatDate is not called in any test case.",
		Severity: report.SeverityError,
		Source:   src,
	}
}

func utilsInsertion() diff.ChangedFiles {
	return diff.ChangedFiles{
		"src/utils.ts": {LineChanges: []diff.LineChange{
			{Prev: diff.LineRange{Line: 200, Count: 0}, Curr: diff.LineRange{Line: 200, Count: 3}},
		}},
	}
}

func TestIssuesMatch_ExactSameMetadata(t *testing.T) {
	prev := functionCoverageIssue(at("src/utils.ts", 100))
	curr := functionCoverageIssue(at("src/utils.ts", 100))
	assert.True(t, IssuesMatch(prev, curr, utilsInsertion()))
}

func TestIssuesMatch_DifferentAudits(t *testing.T) {
	prev := functionCoverageIssue(at("src/utils.ts", 100))
	curr := SourceFileIssue{
		Plugin:   report.PluginMeta{Slug: "eslint", Title: "ESLint"},
		Audit:    report.AuditMeta{Slug: "typescript-eslint-explicit-function-return-type", Title: "Require explicit return types on functions and class methods."},
		Message:  "Missing return type on function.",
		Severity: report.SeverityError,
		Source:   at("src/utils.ts", 100),
	}
	assert.False(t, IssuesMatch(prev, curr, utilsInsertion()))
}

func TestIssuesMatch_AuditIdentityStrictness(t *testing.T) {
	prev := functionCoverageIssue(at("src/utils.ts", 100))

	t.Run("different audit slug", func(t *testing.T) {
		curr := prev
		curr.Audit.Slug = "branch-coverage"
		assert.False(t, IssuesMatch(prev, curr, nil))
		assert.False(t, IssuesMatch(prev, curr, utilsInsertion()))
	})

	t.Run("different plugin slug", func(t *testing.T) {
		curr := prev
		curr.Plugin.Slug = "jest"
		assert.False(t, IssuesMatch(prev, curr, nil))
	})

	t.Run("titles are not part of identity", func(t *testing.T) {
		curr := prev
		curr.Audit.Title = "Functions covered"
		assert.True(t, IssuesMatch(prev, curr, nil))
	})
}

func TestIssuesMatch_Severity(t *testing.T) {
	prev := functionCoverageIssue(at("src/utils.ts", 100))
	curr := prev
	curr.Severity = report.SeverityWarning
	assert.False(t, IssuesMatch(prev, curr, nil))
}

func TestIssuesMatch_AdjustedLine(t *testing.T) {
	lineCoverage := func(msg string, src report.Source) SourceFileIssue {
		return SourceFileIssue{
			Plugin:   report.PluginMeta{Slug: "coverage", Title: "Code coverage"},
			Audit:    report.AuditMeta{Slug: "line-coverage", Title: "Line coverage"},
			Message:  msg,
			Severity: report.SeverityError,
			Source:   src,
		}
	}
	changed := diff.ChangedFiles{
		"src/utils.ts": {LineChanges: []diff.LineChange{
			{Prev: diff.LineRange{Line: 42, Count: 1}, Curr: diff.LineRange{Line: 42, Count: 3}},
		}},
	}

	prev := lineCoverage("Lines 100-103 are not covered in any test case.", span("src/utils.ts", 100, 103))
	curr := lineCoverage("Lines 102-105 are not covered in any test case.", span("src/utils.ts", 102, 105))
	assert.True(t, IssuesMatch(prev, curr, changed))

	moved := lineCoverage("Lines 110-113 are not covered in any test case.", span("src/utils.ts", 110, 113))
	assert.False(t, IssuesMatch(prev, moved, changed))
}

func TestIssuesMatch_RenamedFile(t *testing.T) {
	prev := functionCoverageIssue(at("src/utils.ts", 100))
	curr := functionCoverageIssue(at("src/utils/format.ts", 100))
	changed := diff.ChangedFiles{
		"src/utils/format.ts": {OriginalFile: "src/utils.ts", LineChanges: []diff.LineChange{}},
	}
	assert.True(t, IssuesMatch(prev, curr, changed))
	assert.False(t, IssuesMatch(prev, curr, nil))
}

func TestIssuesMatch_AdjustedLineRange(t *testing.T) {
	maxLines := func(msg string, src report.Source) SourceFileIssue {
		return SourceFileIssue{
			Plugin:   report.PluginMeta{Slug: "eslint", Title: "ESLint"},
			Audit:    report.AuditMeta{Slug: "max-lines", Title: "Enforce a maximum number of lines per file"},
			Message:  msg,
			Severity: report.SeverityWarning,
			Source:   src,
		}
	}
	changed := diff.ChangedFiles{
		"src/app.component.ts": {LineChanges: []diff.LineChange{
			{Prev: diff.LineRange{Line: 12, Count: 0}, Curr: diff.LineRange{Line: 12, Count: 50}},
			{Prev: diff.LineRange{Line: 123, Count: 25}, Curr: diff.LineRange{Line: 173, Count: 5}},
		}},
	}

	prev := maxLines("File has too many lines (420). Maximum allowed is 300.", span("src/app.component.ts", 300, 420))
	curr := maxLines("File has too many lines (450). Maximum allowed is 300.", span("src/app.component.ts", 300, 450))
	assert.True(t, IssuesMatch(prev, curr, changed))

	grown := maxLines("File has too many lines (500). Maximum allowed is 300.", span("src/app.component.ts", 300, 500))
	assert.False(t, IssuesMatch(prev, grown, changed))
}

func TestIssuesMatch_FileLevelIssues(t *testing.T) {
	fileLevel := report.Source{File: "src/utils.ts"}
	prev := functionCoverageIssue(fileLevel)
	curr := functionCoverageIssue(fileLevel)
	assert.True(t, IssuesMatch(prev, curr, utilsInsertion()))

	lineLevel := functionCoverageIssue(at("src/utils.ts", 1))
	assert.False(t, IssuesMatch(prev, lineLevel, nil))
	assert.False(t, IssuesMatch(lineLevel, curr, nil))
}

func TestRemoveDigits(t *testing.T) {
	assert.Equal(t,
		RemoveDigits("File has too many lines (420). Maximum allowed is 300."),
		RemoveDigits("File has too many lines (450). Maximum allowed is 300."))
	assert.Equal(t, "Lines - are not covered", RemoveDigits("Lines 100-103 are not covered"))
	assert.NotEqual(t, RemoveDigits("Unused variable a"), RemoveDigits("Unused variable b"))
}
