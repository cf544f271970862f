package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/org-intel/internal/model"
	"github.com/sells-group/org-intel/internal/orchestrator"
	"github.com/sells-group/org-intel/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestHTTPSource_Collect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "acme", r.URL.Query().Get("company_id"))
		assert.Equal(t, "website", r.URL.Query().Get("source_type"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"full_name":"John Smith","raw_title":"CEO","source_type":"website","source_confidence":0.9}]`)) //nolint:errcheck
	}))
	defer srv.Close()

	src, err := NewHTTP(srv.URL, "test-agent", model.SourceWebsite)
	require.NoError(t, err)
	assert.Equal(t, model.SourceWebsite, src.Type())

	cands, err := src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme", Name: "Acme"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "John Smith", cands[0].FullName)
}

func TestHTTPSource_TransientStatuses(t *testing.T) {
	status := http.StatusTooManyRequests
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	src, err := NewHTTP(srv.URL, "", model.SourceNews)
	require.NoError(t, err)

	_, err = src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.True(t, resilience.IsRateLimited(err))

	status = http.StatusServiceUnavailable
	_, err = src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme"})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsRateLimited(err))
}

func TestHTTPSource_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := NewHTTP(srv.URL, "", model.SourceFiling)
	require.NoError(t, err)

	_, err = src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme"})
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPSource_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := NewHTTP("://nope", "", model.SourceWebsite)
	require.Error(t, err)
}

func TestFileSource_Collect(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "acme"), 0o755))
	payload := `[{"full_name":"Jane Doe","raw_title":"CFO","source_type":"filing","source_confidence":0.8}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme", "filing.json"), []byte(payload), 0o644))

	src := NewFile(dir, model.SourceFiling)
	assert.Equal(t, "local", src.Domain())

	cands, err := src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme"})
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "Jane Doe", cands[0].FullName)
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	src := NewFile(t.TempDir(), model.SourceWebsite)
	cands, err := src.Collect(context.Background(), orchestrator.CompanyRef{ID: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestFileSource_MalformedJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "acme"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme", "website.json"), []byte("{not json"), 0o644))

	src := NewFile(dir, model.SourceWebsite)
	_, err := src.Collect(context.Background(), orchestrator.CompanyRef{ID: "acme"})
	require.Error(t, err)
}
