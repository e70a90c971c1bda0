package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/api/shared"
	"github.com/lcollado/adforge/internal/assets"
	"github.com/lcollado/adforge/internal/catalog"
	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/orchestrator"
	"github.com/lcollado/adforge/internal/store"
)

// TaskService is the orchestrator surface the handler consumes, split
// out so handler tests can substitute a mock.
type TaskService interface {
	Submit(ctx context.Context, providerID string, req domain.GenerationRequest, opts orchestrator.SubmitOptions) (domain.TaskSnapshot, error)
	GetStatus(taskID uuid.UUID) (domain.TaskSnapshot, error)
	Cancel(ctx context.Context, taskID uuid.UUID) (domain.TaskSnapshot, error)
	Subscribe(taskID uuid.UUID) (<-chan domain.TaskSnapshot, error)
	Health() []orchestrator.ProviderHealth
	ProviderHealthFor(providerID string) (orchestrator.ProviderHealth, error)
}

// TaskHandler serves the task lifecycle endpoints.
type TaskHandler struct {
	tasks   TaskService
	catalog catalog.Catalog
	assets  *assets.Service
	archive store.TaskArchive // nil when archiving is disabled
	logger  *slog.Logger
}

// NewTaskHandler creates a TaskHandler. archive may be nil.
func NewTaskHandler(tasks TaskService, cat catalog.Catalog, assetSvc *assets.Service, archive store.TaskArchive, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:   tasks,
		catalog: cat,
		assets:  assetSvc,
		archive: archive,
		logger:  logger.With("component", "task_handler"),
	}
}

// SubmitTask handles POST /api/tasks: validates assets, resolves the
// template into a provider request and submits it.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err))
		return
	}

	refs, err := h.assets.ValidateAll(req.Assets)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	providerID, genReq, err := h.catalog.Resolve(r.Context(), req.TemplateID, refs, req.Params)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	snap, err := h.tasks.Submit(r.Context(), providerID, genReq, orchestrator.SubmitOptions{Queue: req.Queue})
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, TaskResponseFromSnapshot(snap, false))
}

// GetTask handles GET /api/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	snap, err := h.tasks.GetStatus(id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponseFromSnapshot(snap, true))
}

// CancelTask handles DELETE /api/tasks/{id}.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	snap, err := h.tasks.Cancel(r.Context(), id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponseFromSnapshot(snap, false))
}

// StreamTask handles GET /api/tasks/{id}/events: a server-sent event
// stream of task snapshots ending at the terminal one.
func (h *TaskHandler) StreamTask(w http.ResponseWriter, r *http.Request) {
	id, ok := parseTaskID(w, r)
	if !ok {
		return
	}

	updates, err := h.tasks.Subscribe(id)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, open := <-updates:
			if !open {
				return
			}
			payload, err := json.Marshal(TaskResponseFromSnapshot(snap, false))
			if err != nil {
				h.logger.Error("failed to encode task event", "task_id", id, "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ProviderHealth handles GET /api/providers/health.
func (h *TaskHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, h.tasks.Health())
}

// GetProviderHealth handles GET /api/providers/{id}/health.
func (h *TaskHandler) GetProviderHealth(w http.ResponseWriter, r *http.Request) {
	health, err := h.tasks.ProviderHealthFor(chi.URLParam(r, "id"))
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, health)
}

// SearchTemplates handles GET /api/templates?q=.
func (h *TaskHandler) SearchTemplates(w http.ResponseWriter, r *http.Request) {
	results, err := h.catalog.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, results)
}

// ListArchivedTasks handles GET /api/archive/tasks?limit=.
func (h *TaskHandler) ListArchivedTasks(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Task archive is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	records, err := h.archive.ListRecent(r.Context(), limit)
	if err != nil {
		respondWithMappedError(w, r, err)
		return
	}

	out := make([]ArchivedTaskResponse, len(records))
	for i, rec := range records {
		out[i] = ArchivedTaskResponse{
			ID:           rec.ID,
			ProviderID:   rec.ProviderID,
			TemplateID:   rec.TemplateID,
			Status:       string(rec.Status),
			Attempt:      rec.Attempt,
			ErrorKind:    rec.ErrorKind,
			ErrorMessage: rec.ErrorMessage,
			OutputRef:    rec.OutputRef,
			CreatedAt:    rec.CreatedAt,
			FinishedAt:   rec.FinishedAt,
		}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

func parseTaskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return uuid.Nil, false
	}
	return id, true
}
