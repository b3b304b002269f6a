package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/docextract/internal/api"
	"github.com/cloo-solutions/docextract/internal/domain"
	"github.com/cloo-solutions/docextract/internal/service"
)

type JobService interface {
	Submit(ctx context.Context, input service.SubmitInput) (*domain.ExtractionJob, error)
	Get(ctx context.Context, id string) (*domain.ExtractionJob, error)
	List(ctx context.Context, input service.ListJobsInput) (*service.ListJobsOutput, error)
	Result(ctx context.Context, id string) (*service.JobResult, error)
	CreateUpload(ctx context.Context, filename, contentType string) (*service.UploadTarget, error)
}

type JobHandler struct {
	svc JobService
}

func NewJobHandler(svc JobService) *JobHandler {
	return &JobHandler{svc: svc}
}

type SubmitJobRequest struct {
	Text         string                `json:"text"`
	SourceKey    string                `json:"source_key"`
	DocumentName string                `json:"document_name"`
	Mode         domain.ExtractionMode `json:"mode"`
}

type ListJobsResponse struct {
	Items   []*JobResponse `json:"items"`
	Cursor  string         `json:"cursor,omitempty"`
	HasMore bool           `json:"has_more"`
}

type JobResultResponse struct {
	Job         *JobResponse             `json:"job"`
	Run         *RunResponse             `json:"run"`
	Entities    []domain.ExtractedEntity `json:"entities"`
	DownloadURL string                   `json:"download_url,omitempty"`
}

type CreateUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type CreateUploadResponse struct {
	SourceKey string `json:"source_key"`
	UploadURL string `json:"upload_url"`
}

func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.svc.Submit(r.Context(), service.SubmitInput{
		Text:         req.Text,
		SourceKey:    req.SourceKey,
		DocumentName: req.DocumentName,
		Mode:         req.Mode,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, jobToResponse(job))
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	job, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	out, err := h.svc.List(r.Context(), service.ListJobsInput{
		Status: domain.ExtractionJobStatus(q.Get("status")),
		Cursor: q.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*JobResponse, 0, len(out.Items))
	for _, j := range out.Items {
		items = append(items, jobToResponse(j))
	}

	api.Success(w, http.StatusOK, ListJobsResponse{
		Items:   items,
		Cursor:  out.Cursor,
		HasMore: out.HasMore,
	})
}

func (h *JobHandler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	res, err := h.svc.Result(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, JobResultResponse{
		Job:         jobToResponse(res.Job),
		Run:         runToResponse(res.Run),
		Entities:    entitiesOrEmpty(res.Entities),
		DownloadURL: res.DownloadURL,
	})
}

func (h *JobHandler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	var req CreateUploadRequest
	if !api.DecodeJSON(w, r, &req) {
		return
	}

	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	target, err := h.svc.CreateUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, CreateUploadResponse{
		SourceKey: target.SourceKey,
		UploadURL: target.UploadURL,
	})
}
