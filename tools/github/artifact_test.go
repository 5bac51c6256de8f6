package github

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type artifactServer struct {
	*httptest.Server
	downloads atomic.Int32
}

func newArtifactServer(t *testing.T, archive []byte, artifactsStatus int) *artifactServer {
	t.Helper()
	s := &artifactServer{}
	mux := http.NewServeMux()
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)

	mux.HandleFunc("GET /repos/acme/web/actions/runs/100", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"id": 100, "workflow_id": 5})
	})
	mux.HandleFunc("GET /repos/acme/web/actions/workflows/5/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("branch"))
		assert.Equal(t, "completed", r.URL.Query().Get("status"))
		writeJSON(t, w, map[string]any{
			"total_count": 2,
			"workflow_runs": []map[string]any{
				{"id": 90, "head_sha": "othersha"},
				{"id": 91, "head_sha": "basesha"},
			},
		})
	})
	mux.HandleFunc("GET /repos/acme/web/actions/runs/91/artifacts", func(w http.ResponseWriter, r *http.Request) {
		if artifactsStatus != http.StatusOK {
			w.WriteHeader(artifactsStatus)
			writeJSON(t, w, map[string]any{"message": "Not Found"})
			return
		}
		writeJSON(t, w, map[string]any{
			"total_count": 2,
			"artifacts": []map[string]any{
				{"id": 76, "name": "coverage"},
				{"id": 77, "name": ReportArtifactName},
			},
		})
	})
	mux.HandleFunc("GET /repos/acme/web/actions/artifacts/77/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.URL+"/blobs/77.zip", http.StatusFound)
	})
	mux.HandleFunc("GET /blobs/77.zip", func(w http.ResponseWriter, r *http.Request) {
		s.downloads.Add(1)
		_, _ = w.Write(archive)
	})
	return s
}

func TestDownloadReportArtifact(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		".code-pushup/.ci/web/.current/report.json": `{"plugins":[]}`,
		".code-pushup/.ci/api/.current/report.json": `{"plugins":[]}`,
		".code-pushup/.ci/.current/report.json":     `{"plugins":[]}`,
	})
	server := newArtifactServer(t, archive, http.StatusOK)
	client := newTestClient(t, server.Server, prRefs())

	path, err := client.DownloadReportArtifact(context.Background(), "web")
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, filepath.FromSlash(".code-pushup/.ci/web/.current/report.json"), relTail(path, 5))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plugins":[]}`, string(data))

	single, err := client.DownloadReportArtifact(context.Background(), "")
	require.NoError(t, err)
	assert.FileExists(t, single)

	missing, err := client.DownloadReportArtifact(context.Background(), "docs")
	require.NoError(t, err)
	assert.Empty(t, missing, "project without report in artifact")

	assert.Equal(t, int32(1), server.downloads.Load(), "artifact downloaded once per base commit")
}

func TestDownloadReportArtifact_ReportPathLayout(t *testing.T) {
	projects := []string{"", "packages/api", "@acme/web"}
	files := make(map[string]string)
	for _, project := range projects {
		files[ReportPath(project)] = `{"plugins":[]}`
	}
	server := newArtifactServer(t, zipArchive(t, files), http.StatusOK)
	client := newTestClient(t, server.Server, prRefs())

	for _, project := range projects {
		path, err := client.DownloadReportArtifact(context.Background(), project)
		require.NoError(t, err)
		assert.FileExists(t, path, "project %q", project)
	}
	assert.Equal(t, ".code-pushup/.ci/packages/api/.current/report.json", ReportPath("packages/api"))
}

func TestDownloadReportArtifact_UploadedFromReportsDir(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		"packages/api/.current/report.json": `{"plugins":[]}`,
		".current/report.json":              `{"plugins":[]}`,
	})
	server := newArtifactServer(t, archive, http.StatusOK)
	client := newTestClient(t, server.Server, prRefs())

	path, err := client.DownloadReportArtifact(context.Background(), "packages/api")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("packages/api/.current/report.json"), relTail(path, 4))

	single, err := client.DownloadReportArtifact(context.Background(), "")
	require.NoError(t, err)
	assert.FileExists(t, single)
}

func TestDownloadReportArtifact_Concurrent(t *testing.T) {
	archive := zipArchive(t, map[string]string{
		".code-pushup/.ci/web/.current/report.json": `{}`,
		".code-pushup/.ci/api/.current/report.json": `{}`,
	})
	server := newArtifactServer(t, archive, http.StatusOK)
	client := newTestClient(t, server.Server, prRefs())

	var wg sync.WaitGroup
	paths := make([]string, 8)
	errs := make([]error, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			project := "web"
			if i%2 == 1 {
				project = "api"
			}
			paths[i], errs[i] = client.DownloadReportArtifact(context.Background(), project)
		}(i)
	}
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.NotEmpty(t, paths[i])
	}
	assert.Equal(t, int32(1), server.downloads.Load())
}

func TestDownloadReportArtifact_NotFound(t *testing.T) {
	server := newArtifactServer(t, nil, http.StatusNotFound)
	client := newTestClient(t, server.Server, prRefs())

	path, err := client.DownloadReportArtifact(context.Background(), "web")
	require.NoError(t, err, "API errors while fetching the artifact are not fatal")
	assert.Empty(t, path)
}

func TestDownloadReportArtifact_NoMatchingRun(t *testing.T) {
	server := newArtifactServer(t, nil, http.StatusOK)
	refs := prRefs()
	refs.Base.SHA = "unknownsha"
	client := newTestClient(t, server.Server, refs)

	path, err := client.DownloadReportArtifact(context.Background(), "web")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, int32(0), server.downloads.Load())
}

func TestDownloadReportArtifact_NoBase(t *testing.T) {
	server := newArtifactServer(t, nil, http.StatusOK)
	client := newTestClient(t, server.Server, Refs{Head: Branch{Ref: "main", SHA: "abc"}})

	path, err := client.DownloadReportArtifact(context.Background(), "web")
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestUnzip_RejectsTraversal(t *testing.T) {
	archive := zipArchive(t, map[string]string{"../evil.txt": "x"})
	_, err := unzip(archive, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}

func TestReportPath(t *testing.T) {
	assert.Equal(t, ".code-pushup/.ci/.current/report.json", ReportPath(""))
	assert.Equal(t, ".code-pushup/.ci/web/.current/report.json", ReportPath("web"))
}

// relTail returns the last n elements of path.
func relTail(path string, n int) string {
	parts := []string{}
	for i := 0; i < n; i++ {
		parts = append([]string{filepath.Base(path)}, parts...)
		path = filepath.Dir(path)
	}
	return filepath.Join(parts...)
}
