package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	apperrors "github.com/Adithya-Monish-Kumar-K/det-search/pkg/errors"
)

type stubSearcher struct {
	pages  []merger.PageResult
	err    error
	delay  time.Duration
	tokens []string
	dir    string
}

func (s *stubSearcher) Search(ctx context.Context, sourceDir string, tokens []string) ([]merger.PageResult, error) {
	s.dir, s.tokens = sourceDir, tokens
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.pages, s.err
}

func serve(h *Handler, query url.Values) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?"+query.Encode(), nil))
	return rec
}

func TestSearchReturnsPages(t *testing.T) {
	stub := &stubSearcher{pages: []merger.PageResult{{Page: 2, Segments: []int{1}, Score: 2.5}}}
	rec := serve(New(stub, time.Second), url.Values{"path": {"/data/doc/"}, "q": {`table:GHG -scope "net zero"`}})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"page": 2, "cindex": [1], "score": 2.5}]`, rec.Body.String())
	assert.Equal(t, "/data/doc", stub.dir)
	assert.Equal(t, []string{"table:GHG", "_scope", "net zero"}, stub.tokens)
}

func TestSearchEmptyResultIsArray(t *testing.T) {
	rec := serve(New(&stubSearcher{}, time.Second), url.Values{"path": {"/data/doc"}, "q": {"_GHG"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSearchBadRequests(t *testing.T) {
	h := New(&stubSearcher{}, time.Second)
	assert.Equal(t, http.StatusBadRequest, serve(h, url.Values{"q": {"GHG"}}).Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, url.Values{"path": {"relative"}, "q": {"GHG"}}).Code)
	rec := serve(h, url.Values{"path": {"/d"}, "q": {`"open`}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid input: query parameter 'q'")
}

func TestSearchErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("opening index: %w", apperrors.ErrIndexNotFound), http.StatusNotFound},
		{fmt.Errorf("opening index: %w", apperrors.ErrCorruptIndex), http.StatusUnprocessableEntity},
		{fmt.Errorf("disk"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := serve(New(&stubSearcher{err: tc.err}, time.Second), url.Values{"path": {"/d"}, "q": {"GHG"}})
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body["error"])
	}
}

func TestSearchTimeout(t *testing.T) {
	rec := serve(New(&stubSearcher{delay: time.Second}, 10*time.Millisecond), url.Values{"path": {"/d"}, "q": {"GHG"}})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
