package http

import (
	"net/http"

	"github.com/agrisync/agrisync/internal/cache"
	"github.com/go-chi/chi/v5"
)

type cacheService = cache.Service

type cacheHandler struct {
	encoder  encoder
	cacheSvc cacheService
}

func newCacheHandler(encoder encoder, cacheSvc cacheService) *cacheHandler {
	return &cacheHandler{
		encoder:  encoder,
		cacheSvc: cacheSvc,
	}
}

func (h cacheHandler) Routes(r chi.Router) {
	r.Get("/stats", h.stats)
	r.Delete("/{cacheKey}", h.clearKey)
	r.Delete("/", h.clearAll)
}

func (h cacheHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cacheSvc.Stats(r.Context())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, stats, http.StatusOK)
}

func (h cacheHandler) clearKey(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "cacheKey")

	if err := h.cacheSvc.Clear(r.Context(), key); err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.NoContent(w)
}

func (h cacheHandler) clearAll(w http.ResponseWriter, r *http.Request) {
	if err := h.cacheSvc.ClearAll(r.Context()); err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.NoContent(w)
}
