package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCommand(t *testing.T) {
	m := New()
	m.ObserveCommand("collect", 2*time.Second, 0)
	m.ObserveCommand("collect", 3*time.Second, 1)
	m.ObserveCommand("compare", time.Second, 0)

	assert.Equal(t, 2, testutil.CollectAndCount(m.Commands))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandFailures.WithLabelValues("collect")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.CommandFailures.WithLabelValues("compare")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.Projects.Inc()
	m.Projects.Inc()
	m.PreviousReports.WithLabelValues(SourceArtifact).Inc()
	m.NewIssues.WithLabelValues("web", "error").Add(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Projects))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PreviousReports.WithLabelValues(SourceArtifact)))

	expected := `
# HELP qualitygate_new_issues_total Issues introduced by the change, annotated on the diff.
# TYPE qualitygate_new_issues_total counter
qualitygate_new_issues_total{project="web",severity="error"} 3
`
	require.NoError(t, testutil.CollectAndCompare(m.NewIssues, strings.NewReader(expected)))
}

func TestWriteToTextfile(t *testing.T) {
	m := New()
	m.Comments.Inc()

	path := filepath.Join(t.TempDir(), "qualitygate.prom")
	require.NoError(t, m.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "qualitygate_comments_upserted_total 1")
}
