package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type connectivityStatus interface {
	Online() bool
}

type statusHandler struct {
	encoder  encoder
	monitor  connectivityStatus
	queueSvc queueService
	version  string
}

func newStatusHandler(encoder encoder, monitor connectivityStatus, queueSvc queueService, version string) *statusHandler {
	return &statusHandler{
		encoder:  encoder,
		monitor:  monitor,
		queueSvc: queueSvc,
		version:  version,
	}
}

func (h statusHandler) Routes(r chi.Router) {
	r.Get("/", h.status)
}

type statusResponse struct {
	Online       bool   `json:"online"`
	PendingCount int    `json:"pending_count"`
	Version      string `json:"version"`
}

func (h statusHandler) status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queueSvc.PendingCount(r.Context())
	if err != nil {
		h.encoder.Error(w, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, statusResponse{
		Online:       h.monitor.Online(),
		PendingCount: pending,
		Version:      h.version,
	}, http.StatusOK)
}
