package cache

import (
	"context"
	"errors"
	"path"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/det-search/internal/searcher/parser"
)

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) FlushByPattern(ctx context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k := range f.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

var samplePages = []merger.PageResult{{Page: 2, Segments: []int{0, 3}, Score: 4.2}}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := newFakeStore()
	c := New(store, 5*time.Minute)
	plan := parser.Parse([]string{"GHG"})

	var calls atomic.Int32
	compute := func() ([]merger.PageResult, error) {
		calls.Add(1)
		return samplePages, nil
	}

	got, hit, err := c.GetOrCompute(context.Background(), "/docs/a", "build-1", plan, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, samplePages, got)

	got, hit, err = c.GetOrCompute(context.Background(), "/docs/a", "build-1", plan, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, samplePages, got)
	assert.Equal(t, int32(1), calls.Load())

	key := BuildKey("/docs/a", "build-1", plan)
	assert.Equal(t, 5*time.Minute, store.ttls[key])
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	store := newFakeStore()
	c := New(store, time.Minute)
	_, _, err := c.GetOrCompute(context.Background(), "/docs/a", "b", parser.Parse([]string{"x"}), func() ([]merger.PageResult, error) {
		return nil, errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
	assert.Empty(t, store.data)
}

func TestGetTreatsStoreErrorsAsMiss(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	c := New(store, time.Minute)

	_, ok := c.Get(context.Background(), "search:x")
	assert.False(t, ok)
	_, misses := c.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestBuildKey(t *testing.T) {
	plan := parser.Parse([]string{"GHG", "_scope"})
	same := parser.Parse([]string{"GHG", "GHG", "_scope"})

	assert.Equal(t, BuildKey("/d", "b1", plan), BuildKey("/d", "b1", same))
	assert.NotEqual(t, BuildKey("/d", "b1", plan), BuildKey("/d", "b2", plan))
	assert.NotEqual(t, BuildKey("/d", "b1", plan), BuildKey("/e", "b1", plan))
	assert.NotEqual(t, BuildKey("/d", "b1", plan), BuildKey("/d", "b1", parser.Parse([]string{"table:GHG", "_scope"})))
	assert.Regexp(t, `^search:[0-9a-f]{16}:b1:[0-9a-f]{32}$`, BuildKey("/d", "b1", plan))
}

func TestInvalidateOnlyTouchesOneDirectory(t *testing.T) {
	store := newFakeStore()
	c := New(store, time.Minute)
	plan := parser.Parse([]string{"GHG"})
	c.Set(context.Background(), BuildKey("/docs/a", "b", plan), samplePages)
	c.Set(context.Background(), BuildKey("/docs/b", "b", plan), samplePages)

	require.NoError(t, c.Invalidate(context.Background(), "/docs/a"))
	assert.Len(t, store.data, 1)
	_, ok := c.Get(context.Background(), BuildKey("/docs/b", "b", plan))
	assert.True(t, ok)
}
