package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docextract/internal/api"
	"github.com/cloo-solutions/docextract/internal/domain"
)

type RunService interface {
	GetRun(ctx context.Context, id string) (*domain.ExtractionRun, error)
	ListRunEntities(ctx context.Context, runID string) ([]domain.ExtractedEntity, error)
}

type RunHandler struct {
	svc RunService
}

func NewRunHandler(svc RunService) *RunHandler {
	return &RunHandler{svc: svc}
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, runToResponse(run))
}

func (h *RunHandler) Entities(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	entities, err := h.svc.ListRunEntities(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, entitiesOrEmpty(entities))
}
