// Package annotations renders issues as GitHub Actions workflow commands so
// they show up inline on the pull request diff.
package annotations

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sethvargo/go-githubactions"

	"github.com/c360studio/qualitygate/issues"
	"github.com/c360studio/qualitygate/report"
)

// Writer emits one workflow command per issue.
type Writer struct {
	out    *errWriter
	action *githubactions.Action
}

// NewWriter creates a Writer; a nil w writes to stdout, where the runner
// picks up workflow commands.
func NewWriter(w io.Writer) *Writer {
	if w == nil {
		w = os.Stdout
	}
	out := &errWriter{w: w}
	return &Writer{out: out, action: githubactions.New(githubactions.WithWriter(out))}
}

// Command returns the workflow command for a severity.
func Command(s report.Severity) string {
	switch s {
	case report.SeverityError:
		return "error"
	case report.SeverityWarning:
		return "warning"
	default:
		return "notice"
	}
}

// Title is the annotation title, "<plugin> | <audit>".
func Title(issue issues.SourceFileIssue) string {
	return issue.Plugin.Title + " | " + issue.Audit.Title
}

// Fields are the annotation properties of an issue.
func Fields(issue issues.SourceFileIssue) map[string]string {
	fields := map[string]string{
		"title": Title(issue),
		"file":  issue.Source.File,
	}
	if pos := issue.Source.Position; pos != nil {
		fields["line"] = strconv.Itoa(pos.StartLine)
		if pos.EndLine != nil {
			fields["endLine"] = strconv.Itoa(*pos.EndLine)
		}
		if pos.StartColumn != nil {
			fields["col"] = strconv.Itoa(*pos.StartColumn)
		}
		if pos.EndColumn != nil {
			fields["endColumn"] = strconv.Itoa(*pos.EndColumn)
		}
	}
	return fields
}

// Format renders a single issue without the trailing newline.
func Format(issue issues.SourceFileIssue) string {
	var buf bytes.Buffer
	_ = NewWriter(&buf).Write(issue)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Write emits the command for issue.
func (w *Writer) Write(issue issues.SourceFileIssue) error {
	a := w.action.WithFieldsMap(Fields(issue))
	switch Command(issue.Severity) {
	case "error":
		a.Errorf("%s", issue.Message)
	case "warning":
		a.Warningf("%s", issue.Message)
	default:
		a.Noticef("%s", issue.Message)
	}
	return w.out.take()
}

// WriteAll emits all issues and returns how many were written.
func (w *Writer) WriteAll(list []issues.SourceFileIssue) (int, error) {
	for i, issue := range list {
		if err := w.Write(issue); err != nil {
			return i, fmt.Errorf("failed to write annotation: %w", err)
		}
	}
	return len(list), nil
}

// errWriter keeps the first write error, which the action API drops.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	n, err := e.w.Write(p)
	if err != nil && e.err == nil {
		e.err = err
	}
	return n, err
}

func (e *errWriter) take() error {
	err := e.err
	e.err = nil
	return err
}
