package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/docextract/internal/api"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/service"
)

type ExtractionService interface {
	Process(ctx context.Context, input service.ProcessInput) (*service.ProcessOutput, error)
	Chunks(text string, mode domain.ExtractionMode) ([]domain.Segment, []string, error)
}

type ExtractionHandler struct {
	svc ExtractionService
}

func NewExtractionHandler(svc ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{svc: svc}
}

type ExtractRequest struct {
	Text         string                `json:"text"`
	DocumentName string                `json:"document_name"`
	Mode         domain.ExtractionMode `json:"mode"`
}

type ExtractResponse struct {
	Run      *RunResponse             `json:"run"`
	Entities []domain.ExtractedEntity `json:"entities"`
}

type SegmentRequest struct {
	Text string                `json:"text"`
	Mode domain.ExtractionMode `json:"mode"`
}

type SegmentResponse struct {
	Segments []domain.Segment `json:"segments"`
	Chunks   []string         `json:"chunks"`
}

// Extract runs the pipeline synchronously and returns every extracted entity
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Text) == "" {
		api.HandleError(w, domain.ErrEmptyDocument)
		return
	}
	if req.Mode != "" && !domain.IsValidExtractionMode(req.Mode) {
		api.HandleError(w, domain.ErrInvalidExtractionMode)
		return
	}

	out, err := h.svc.Process(r.Context(), service.ProcessInput{
		Text:         req.Text,
		DocumentName: req.DocumentName,
		Mode:         req.Mode,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ExtractResponse{
		Run:      runToResponse(out.Run),
		Entities: entitiesOrEmpty(out.Result.Entities),
	})
}

// Segment previews how a text would be segmented and chunked
func (h *ExtractionHandler) Segment(w http.ResponseWriter, r *http.Request) {
	var req SegmentRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	segments, chunks, err := h.svc.Chunks(req.Text, req.Mode)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SegmentResponse{Segments: segments, Chunks: chunks})
}
