// Package server implements the admin HTTP surface: reindex submission,
// index lifecycle operations, and streaming-job management. The handlers
// are thin; every decision lives in the services they call.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opencatalog/search-indexer/internal/index"
	"github.com/opencatalog/search-indexer/internal/jobs"
	"github.com/opencatalog/search-indexer/internal/model"
	"github.com/opencatalog/search-indexer/internal/reindex"
	apperrors "github.com/opencatalog/search-indexer/pkg/errors"
	"github.com/opencatalog/search-indexer/pkg/logger"
	"github.com/opencatalog/search-indexer/pkg/tracing"
)

// TenantHeader carries the caller's tenant id on every admin request.
const TenantHeader = "X-Tenant-ID"

// Handler implements the admin API endpoints.
type Handler struct {
	orchestrator *reindex.Orchestrator
	lifecycle    *index.Service
	streams      *jobs.StreamService
	logger       *slog.Logger
}

// NewHandler creates the admin Handler.
func NewHandler(orchestrator *reindex.Orchestrator, lifecycle *index.Service, streams *jobs.StreamService) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		lifecycle:    lifecycle,
		streams:      streams,
		logger:       slog.Default().With("component", "admin-handler"),
	}
}

// Reindex submits a full reindex for one primary resource or for all of
// them.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req model.ReindexRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "reindex", r.Header.Get("X-Request-ID"))
	defer span.End()
	span.SetAttr("resource", req.ResourceName)
	span.SetAttr("recreate", req.RecreateIndex)

	job, err := h.orchestrator.Reindex(logger.WithTenant(ctx, tenant), tenant, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

type resourceRequest struct {
	ResourceName  string                `json:"resourceName"`
	IndexSettings *model.IndexSettings  `json:"indexSettings,omitempty"`
	Settings      *model.DynamicSettings `json:"settings,omitempty"`
}

// CreateIndex creates the resource's index for the caller's tenant.
func (h *Handler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req resourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.lifecycle.CreateIndex(r.Context(), req.ResourceName, tenant, req.IndexSettings); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.SuccessResult())
}

// UpdateMappings re-applies the resource's mappings to its index.
func (h *Handler) UpdateMappings(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req resourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.lifecycle.UpdateMappings(r.Context(), req.ResourceName, tenant); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.SuccessResult())
}

// UpdateIndexSettings applies dynamic settings to the resource's index.
func (h *Handler) UpdateIndexSettings(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req resourceRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.lifecycle.UpdateIndexSettings(r.Context(), req.ResourceName, tenant, req.Settings); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, model.SuccessResult())
}

type createJobRequest struct {
	Query      string `json:"query"`
	EntityType string `json:"entityType"`
}

// CreateJob starts a streaming resource-id job for the caller's tenant.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	var req createJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.streams.CreateStreamJob(r.Context(), tenant, req.EntityType, req.Query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// GetJob returns a streaming job's current status.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	tenant, ok := h.tenant(w, r)
	if !ok {
		return
	}
	rec, err := h.streams.GetJob(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := r.Header.Get(TenantHeader)
	if tenant == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tenant header is required"})
		return "", false
	}
	return tenant, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
