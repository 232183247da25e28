package http

import (
	"net/http"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/syncqueue"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type queueService = syncqueue.Service

type queueHandler struct {
	encoder  encoder
	queueSvc queueService
}

func newQueueHandler(encoder encoder, queueSvc queueService) *queueHandler {
	return &queueHandler{
		encoder:  encoder,
		queueSvc: queueSvc,
	}
}

func (h queueHandler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/pending", h.pending)
	r.Post("/replay", h.replay)
	r.Post("/{opID}/retry", h.retry)
	r.Delete("/", h.clear)
}

type queueListResponse struct {
	Operations []domain.QueuedOperation `json:"operations"`
	Count      int                      `json:"count"`
}

func (h queueHandler) list(w http.ResponseWriter, r *http.Request) {
	ops, err := h.queueSvc.List(r.Context())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, queueListResponse{
		Operations: ops,
		Count:      len(ops),
	}, http.StatusOK)
}

func (h queueHandler) pending(w http.ResponseWriter, r *http.Request) {
	count, err := h.queueSvc.PendingCount(r.Context())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, map[string]int{"pending_count": count}, http.StatusOK)
}

func (h queueHandler) replay(w http.ResponseWriter, r *http.Request) {
	summary, err := h.queueSvc.ReplayAll(r.Context())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, summary, http.StatusOK)
}

func (h queueHandler) retry(w http.ResponseWriter, r *http.Request) {
	opID := chi.URLParam(r, "opID")

	err := h.queueSvc.RetryOne(r.Context(), opID)
	switch {
	case err == nil:
		h.encoder.NoContent(w)
	case errors.Is(err, domain.ErrNotFound):
		h.encoder.StatusNotFound(r.Context(), w)
	case errors.Is(err, domain.ErrNoNetwork):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, errorResponse{Message: "device is offline", Status: http.StatusServiceUnavailable})
	case errors.Is(err, domain.ErrNotRetryable):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errorResponse{Message: err.Error(), Status: http.StatusConflict})
	default:
		// the attempt itself failed; the operation keeps its recorded state
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errorResponse{Message: err.Error(), Status: http.StatusBadGateway})
	}
}

func (h queueHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.queueSvc.ClearAll(r.Context()); err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.NoContent(w)
}
