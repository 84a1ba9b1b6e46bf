package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/filterjob"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher"
	searchhandler "github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/det-search/pkg/metrics"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd := newRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeDocument(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	pages := map[string]string{
		"page.1.json": `{"content": [{"type": "text", "content": "Revenue rose to 7,800 million"}]}`,
		"page.2.json": `{"content": [{"type": "table", "content": [["GHG emissions", "tCO2e"], ["Scope 1", "45,210"]]}]}`,
	}
	for name, body := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

func TestBuildThenSearch(t *testing.T) {
	dir := writeDocument(t)

	out, err := execute(t, "build", dir)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.DirExists(t, filepath.Join(dir, "search-index"))

	out, err = execute(t, "search", dir, "table:GHG")
	require.NoError(t, err)
	var pages []merger.PageResult
	require.NoError(t, json.Unmarshal([]byte(out), &pages))
	require.Len(t, pages, 1)
	assert.Equal(t, 2, pages[0].Page)
	assert.Positive(t, pages[0].Score)
}

func TestSearchPrintsEmptyArray(t *testing.T) {
	dir := writeDocument(t)
	_, err := execute(t, "build", dir)
	require.NoError(t, err)

	out, err := execute(t, "search", dir, "_GHG")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)

	out, err = execute(t, "search", dir, "biodiversity")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", out)
}

func TestSearchWithoutIndexFails(t *testing.T) {
	_, err := execute(t, "search", writeDocument(t), "GHG")
	assert.Error(t, err)
}

func TestBuildMalformedPageFails(t *testing.T) {
	dir := writeDocument(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.3.json"), []byte("{"), 0644))

	_, err := execute(t, "build", dir)
	assert.ErrorContains(t, err, "page.3.json")
	assert.NoDirExists(t, filepath.Join(dir, "search-index"))
}

func TestArgumentErrors(t *testing.T) {
	_, err := execute(t)
	assert.ErrorIs(t, err, errNoCommand)

	_, err = execute(t, "frobnicate")
	assert.ErrorContains(t, err, "unknown command")

	_, err = execute(t, "search", "/tmp")
	assert.ErrorContains(t, err, "requires at least 2 arg(s)")

	_, err = execute(t, "build")
	assert.ErrorContains(t, err, "accepts 1 arg(s)")
}

func TestBadConfigFileFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "build", t.TempDir())
	assert.ErrorContains(t, err, "reading config file")
}

func TestRouterServesSearchAndHealth(t *testing.T) {
	dir := writeDocument(t)
	_, err := execute(t, "build", dir)
	require.NoError(t, err)

	cfg := config.Default()
	m := metrics.New()
	store := filterjob.NewMemoryStore()
	router := newRouter(routes{
		search:  searchhandler.New(searcher.New(cfg.Indexer, m, nil), time.Second),
		filters: filterjob.NewHandler(store, nil),
		checker: health.NewChecker(),
		metrics: m,
		server:  cfg.Server,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?path="+url.QueryEscape(dir)+"&q=revenue", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pages []merger.PageResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pages))
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Page)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/search",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), `search_queries_total{result_type="hit"} 1`)
}
