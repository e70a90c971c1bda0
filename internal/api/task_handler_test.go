package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/assets"
	"github.com/lcollado/adforge/internal/catalog"
	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/orchestrator"
)

type mockTaskService struct {
	submitSnap   domain.TaskSnapshot
	submitErr    error
	statusSnap   domain.TaskSnapshot
	statusErr    error
	cancelSnap   domain.TaskSnapshot
	cancelErr    error
	updates      chan domain.TaskSnapshot
	subscribeErr error

	submittedProvider string
	submittedReq      domain.GenerationRequest
}

func (m *mockTaskService) Submit(_ context.Context, providerID string, req domain.GenerationRequest, _ orchestrator.SubmitOptions) (domain.TaskSnapshot, error) {
	m.submittedProvider = providerID
	m.submittedReq = req
	return m.submitSnap, m.submitErr
}

func (m *mockTaskService) GetStatus(uuid.UUID) (domain.TaskSnapshot, error) {
	return m.statusSnap, m.statusErr
}

func (m *mockTaskService) Cancel(context.Context, uuid.UUID) (domain.TaskSnapshot, error) {
	return m.cancelSnap, m.cancelErr
}

func (m *mockTaskService) Subscribe(uuid.UUID) (<-chan domain.TaskSnapshot, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	return m.updates, nil
}

func (m *mockTaskService) Health() []orchestrator.ProviderHealth {
	return []orchestrator.ProviderHealth{{ProviderID: "video-luma", BreakerState: "closed"}}
}

func (m *mockTaskService) ProviderHealthFor(providerID string) (orchestrator.ProviderHealth, error) {
	if providerID != "video-luma" {
		return orchestrator.ProviderHealth{}, fmt.Errorf("%w: %s", domain.ErrUnknownProvider, providerID)
	}
	return orchestrator.ProviderHealth{ProviderID: providerID, BreakerState: "closed"}, nil
}

type mockCatalog struct {
	providerID string
	req        domain.GenerationRequest
	resolveErr error
	templates  []catalog.Template
}

func (m *mockCatalog) Resolve(context.Context, string, []domain.AssetRef, json.RawMessage) (string, domain.GenerationRequest, error) {
	if m.resolveErr != nil {
		return "", domain.GenerationRequest{}, m.resolveErr
	}
	return m.providerID, m.req, nil
}

func (m *mockCatalog) Get(context.Context, string) (catalog.Template, error) {
	return catalog.Template{}, catalog.ErrTemplateNotFound
}

func (m *mockCatalog) Search(context.Context, string) ([]catalog.Template, error) {
	return m.templates, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func queuedSnapshot() domain.TaskSnapshot {
	return domain.TaskSnapshot{
		ID:         uuid.New(),
		ProviderID: "video-luma",
		Request:    domain.GenerationRequest{TemplateID: "tmpl-spin"},
		Status:     domain.TaskStatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func newHandler(svc *mockTaskService, cat catalog.Catalog) *TaskHandler {
	return NewTaskHandler(svc, cat, assets.NewService(assets.Config{}), nil, testLogger())
}

func submitBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(SubmitTaskRequest{
		TemplateID: "tmpl-spin",
		Assets: []assets.Input{{
			Name:        "hero.png",
			ContentType: "image/png",
			SizeBytes:   2048,
			Location:    "https://assets.example.com/hero.png",
		}},
		Queue: true,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestTaskHandler_SubmitTask(t *testing.T) {
	t.Parallel()

	snap := queuedSnapshot()
	svc := &mockTaskService{submitSnap: snap}
	cat := &mockCatalog{
		providerID: "video-luma",
		req:        domain.GenerationRequest{TemplateID: "tmpl-spin"},
	}
	handler := newHandler(svc, cat)

	rec := httptest.NewRecorder()
	handler.SubmitTask(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", submitBody(t)))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "video-luma", svc.submittedProvider)

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, snap.ID, resp.ID)
	assert.Equal(t, "queued", resp.Status)
}

func TestTaskHandler_SubmitTaskValidation(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{}, &mockCatalog{})

	rec := httptest.NewRecorder()
	handler.SubmitTask(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`{"assets":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.SubmitTask(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_SubmitTaskRejectsBadAsset(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{}, &mockCatalog{})

	body, err := json.Marshal(SubmitTaskRequest{
		TemplateID: "tmpl-spin",
		Assets:     []assets.Input{{Name: "x.zip", ContentType: "application/zip", SizeBytes: 10, Location: "https://x"}},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.SubmitTask(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_SubmitTaskMapsServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		svcErr     error
		resolveErr error
		wantCode   int
	}{
		{name: "capacity", svcErr: fmt.Errorf("wrap: %w", domain.ErrCapacityExceeded), wantCode: http.StatusTooManyRequests},
		{name: "unknown provider", svcErr: fmt.Errorf("wrap: %w", domain.ErrUnknownProvider), wantCode: http.StatusBadRequest},
		{name: "template missing", resolveErr: catalog.ErrTemplateNotFound, wantCode: http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &mockTaskService{submitErr: tc.svcErr}
			cat := &mockCatalog{providerID: "video-luma", resolveErr: tc.resolveErr}
			handler := newHandler(svc, cat)

			rec := httptest.NewRecorder()
			handler.SubmitTask(rec, httptest.NewRequest(http.MethodPost, "/api/tasks", submitBody(t)))
			assert.Equal(t, tc.wantCode, rec.Code)
		})
	}
}

func withTaskID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestTaskHandler_GetTask(t *testing.T) {
	t.Parallel()

	snap := queuedSnapshot()
	handler := newHandler(&mockTaskService{statusSnap: snap}, &mockCatalog{})

	req := withTaskID(httptest.NewRequest(http.MethodGet, "/api/tasks/x", nil), snap.ID.String())
	rec := httptest.NewRecorder()
	handler.GetTask(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, snap.ID, resp.ID)
}

func TestTaskHandler_GetTaskErrors(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{statusErr: domain.ErrTaskNotFound}, &mockCatalog{})

	req := withTaskID(httptest.NewRequest(http.MethodGet, "/api/tasks/x", nil), uuid.NewString())
	rec := httptest.NewRecorder()
	handler.GetTask(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = withTaskID(httptest.NewRequest(http.MethodGet, "/api/tasks/x", nil), "not-a-uuid")
	rec = httptest.NewRecorder()
	handler.GetTask(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_CancelTerminalConflict(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{cancelErr: fmt.Errorf("%w: cannot cancel succeeded task", domain.ErrInvalidStateTransition)}, &mockCatalog{})

	req := withTaskID(httptest.NewRequest(http.MethodDelete, "/api/tasks/x", nil), uuid.NewString())
	rec := httptest.NewRecorder()
	handler.CancelTask(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTaskHandler_StreamTask(t *testing.T) {
	t.Parallel()

	updates := make(chan domain.TaskSnapshot, 4)
	running := queuedSnapshot()
	running.Status = domain.TaskStatusRunning
	done := running
	done.Status = domain.TaskStatusSucceeded
	updates <- running
	updates <- done
	close(updates)

	handler := newHandler(&mockTaskService{updates: updates}, &mockCatalog{})

	req := withTaskID(httptest.NewRequest(http.MethodGet, "/api/tasks/x/events", nil), running.ID.String())
	rec := httptest.NewRecorder()
	handler.StreamTask(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	events := strings.Count(rec.Body.String(), "data: ")
	assert.Equal(t, 2, events)
	assert.Contains(t, rec.Body.String(), `"status":"succeeded"`)
}

func TestTaskHandler_ProviderHealth(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{}, &mockCatalog{})

	rec := httptest.NewRecorder()
	handler.ProviderHealth(rec, httptest.NewRequest(http.MethodGet, "/api/providers/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"provider_id":"video-luma"`)
}

func TestTaskHandler_GetProviderHealth(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{}, &mockCatalog{})

	req := withTaskID(httptest.NewRequest(http.MethodGet, "/api/providers/x/health", nil), "video-luma")
	rec := httptest.NewRecorder()
	handler.GetProviderHealth(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"breaker_state":"closed"`)

	req = withTaskID(httptest.NewRequest(http.MethodGet, "/api/providers/x/health", nil), "nope")
	rec = httptest.NewRecorder()
	handler.GetProviderHealth(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_ArchiveDisabled(t *testing.T) {
	t.Parallel()

	handler := newHandler(&mockTaskService{}, &mockCatalog{})

	rec := httptest.NewRecorder()
	handler.ListArchivedTasks(rec, httptest.NewRequest(http.MethodGet, "/api/archive/tasks", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrTaskNotFound, want: http.StatusNotFound},
		{err: domain.ErrInvalidStateTransition, want: http.StatusConflict},
		{err: domain.ErrCapacityExceeded, want: http.StatusTooManyRequests},
		{err: domain.ErrUnknownProvider, want: http.StatusBadRequest},
		{err: domain.ErrValidation, want: http.StatusBadRequest},
		{err: catalog.ErrTemplateNotFound, want: http.StatusNotFound},
		{err: errors.New("mystery"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MapErrorToStatusCode(tc.err), tc.err.Error())
		assert.Equal(t, tc.want, MapErrorToStatusCode(fmt.Errorf("wrapped: %w", tc.err)))
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Contains(t, GetSafeErrorMessage(domain.ErrTaskNotFound), "task not found")
	assert.Equal(t, "An internal error occurred", GetSafeErrorMessage(errors.New("pq: secret detail")))
}
