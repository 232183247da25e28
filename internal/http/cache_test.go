package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCacheService implements cache.Service with canned state.
type fakeCacheService struct {
	stats *domain.CacheStats

	clearedKey string
	clearedAll bool
}

func (f *fakeCacheService) FetchWithCache(context.Context, string, domain.RemoteFetcher, time.Duration, bool) (json.RawMessage, domain.DataOrigin, error) {
	return nil, "", nil
}

func (f *fakeCacheService) Set(context.Context, string, json.RawMessage, time.Duration) error {
	return nil
}

func (f *fakeCacheService) Get(context.Context, string, time.Duration) (json.RawMessage, error) {
	return nil, nil
}

func (f *fakeCacheService) Clear(_ context.Context, key string) error {
	f.clearedKey = key
	return nil
}

func (f *fakeCacheService) ClearAll(context.Context) error {
	f.clearedAll = true
	return nil
}

func (f *fakeCacheService) Stats(context.Context) (*domain.CacheStats, error) {
	return f.stats, nil
}

func newCacheRouter(svc cacheService) *chi.Mux {
	router := chi.NewRouter()
	router.Route("/cache", newCacheHandler(encoder{}, svc).Routes)
	return router
}

func TestCacheHandler_Stats(t *testing.T) {
	svc := &fakeCacheService{stats: &domain.CacheStats{
		TotalKeys: 1,
		TotalSize: 42,
		Keys: []domain.CacheKeyStats{
			{Key: "farmers-list", Size: 42, ItemCount: 3, Fresh: true},
		},
	}}
	router := newCacheRouter(svc)

	req := httptest.NewRequest("GET", "/cache/stats", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp domain.CacheStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalKeys)
	require.Len(t, resp.Keys, 1)
	assert.Equal(t, "farmers-list", resp.Keys[0].Key)
	assert.Equal(t, 3, resp.Keys[0].ItemCount)
}

func TestCacheHandler_ClearKey(t *testing.T) {
	svc := &fakeCacheService{}
	router := newCacheRouter(svc)

	req := httptest.NewRequest("DELETE", "/cache/farmers-list", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "farmers-list", svc.clearedKey)
}

func TestCacheHandler_ClearAll(t *testing.T) {
	svc := &fakeCacheService{}
	router := newCacheRouter(svc)

	req := httptest.NewRequest("DELETE", "/cache/", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, svc.clearedAll)
}
