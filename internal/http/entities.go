package http

import (
	"encoding/json"
	"net/http"

	"github.com/agrisync/agrisync/internal/domain"
	"github.com/agrisync/agrisync/internal/store"
	"github.com/agrisync/agrisync/pkg/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type entitiesService = store.Service

// entitiesHandler is the surface the mobile shell talks to: reads are
// answered cache-first, writes land on the backend or in the sync
// queue depending on connectivity.
type entitiesHandler struct {
	encoder  encoder
	storeSvc entitiesService
}

func newEntitiesHandler(encoder encoder, storeSvc entitiesService) *entitiesHandler {
	return &entitiesHandler{
		encoder:  encoder,
		storeSvc: storeSvc,
	}
}

func (h entitiesHandler) Routes(r chi.Router) {
	r.Get("/farmers", h.listFarmers)
	r.Post("/farmers", h.createFarmer)
	r.Put("/farmers/{farmerID}", h.updateFarmer)
	r.Get("/farmers/{farmerID}/farms", h.listFarms)
	r.Post("/farms", h.createFarm)
	r.Put("/farms/{farmID}", h.updateFarm)
	r.Get("/clusters", h.listClusters)
}

type listResponse struct {
	Data   interface{}       `json:"data"`
	Origin domain.DataOrigin `json:"origin"`
}

type saveResponse struct {
	Outcome domain.SaveOutcome `json:"outcome"`
	ID      string             `json:"id"`
}

func forceRefresh(r *http.Request) bool {
	return r.URL.Query().Get("refresh") == "true"
}

func (h entitiesHandler) listFarmers(w http.ResponseWriter, r *http.Request) {
	farmers, origin, err := h.storeSvc.Farmers(r.Context(), forceRefresh(r))
	if err != nil {
		h.readError(w, r, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, listResponse{Data: farmers, Origin: origin}, http.StatusOK)
}

func (h entitiesHandler) listFarms(w http.ResponseWriter, r *http.Request) {
	farmerID := chi.URLParam(r, "farmerID")

	farms, origin, err := h.storeSvc.FarmsByFarmer(r.Context(), farmerID, forceRefresh(r))
	if err != nil {
		h.readError(w, r, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, listResponse{Data: farms, Origin: origin}, http.StatusOK)
}

func (h entitiesHandler) listClusters(w http.ResponseWriter, r *http.Request) {
	clusters, origin, err := h.storeSvc.Clusters(r.Context(), forceRefresh(r))
	if err != nil {
		h.readError(w, r, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, listResponse{Data: clusters, Origin: origin}, http.StatusOK)
}

func (h entitiesHandler) createFarmer(w http.ResponseWriter, r *http.Request) {
	var farmer domain.Farmer
	if err := json.NewDecoder(r.Body).Decode(&farmer); err != nil {
		h.encoder.Error(w, err)
		return
	}

	outcome, err := h.storeSvc.CreateFarmer(r.Context(), &farmer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.encoder.StatusCreatedData(w, saveResponse{Outcome: outcome, ID: farmer.ID})
}

func (h entitiesHandler) updateFarmer(w http.ResponseWriter, r *http.Request) {
	var farmer domain.Farmer
	if err := json.NewDecoder(r.Body).Decode(&farmer); err != nil {
		h.encoder.Error(w, err)
		return
	}
	farmer.ID = chi.URLParam(r, "farmerID")

	outcome, err := h.storeSvc.UpdateFarmer(r.Context(), &farmer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, saveResponse{Outcome: outcome, ID: farmer.ID}, http.StatusOK)
}

func (h entitiesHandler) createFarm(w http.ResponseWriter, r *http.Request) {
	var farm domain.Farm
	if err := json.NewDecoder(r.Body).Decode(&farm); err != nil {
		h.encoder.Error(w, err)
		return
	}

	outcome, err := h.storeSvc.CreateFarm(r.Context(), &farm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.encoder.StatusCreatedData(w, saveResponse{Outcome: outcome, ID: farm.ID})
}

func (h entitiesHandler) updateFarm(w http.ResponseWriter, r *http.Request) {
	var farm domain.Farm
	if err := json.NewDecoder(r.Body).Decode(&farm); err != nil {
		h.encoder.Error(w, err)
		return
	}
	farm.ID = chi.URLParam(r, "farmID")

	outcome, err := h.storeSvc.UpdateFarm(r.Context(), &farm)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.encoder.StatusResponse(r.Context(), w, saveResponse{Outcome: outcome, ID: farm.ID}, http.StatusOK)
}

func (h entitiesHandler) readError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoCachedData):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, errorResponse{Message: "offline and nothing cached yet", Status: http.StatusServiceUnavailable})
	case errors.Is(err, domain.ErrRemoteFetchFailed):
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, errorResponse{Message: err.Error(), Status: http.StatusBadGateway})
	default:
		h.encoder.Error(w, err)
	}
}

func (h entitiesHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, errorResponse{Message: validationErr.Reason, Status: http.StatusUnprocessableEntity})
	case errors.Is(err, domain.ErrQueueWriteFailed):
		render.Status(r, http.StatusInsufficientStorage)
		render.JSON(w, r, errorResponse{Message: err.Error(), Status: http.StatusInsufficientStorage})
	default:
		h.encoder.Error(w, err)
	}
}
