package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/events"
)

type mockArchive struct {
	saved   []ArchivedTask
	saveErr error
}

func (m *mockArchive) Save(_ context.Context, rec ArchivedTask) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, rec)
	return nil
}

func (m *mockArchive) Get(_ context.Context, id uuid.UUID) (ArchivedTask, error) {
	for _, rec := range m.saved {
		if rec.ID == id {
			return rec, nil
		}
	}
	return ArchivedTask{}, ErrArchivedTaskNotFound
}

func (m *mockArchive) ListRecent(_ context.Context, limit int) ([]ArchivedTask, error) {
	if limit > len(m.saved) {
		limit = len(m.saved)
	}
	return m.saved[:limit], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func terminalSnapshot(status domain.TaskStatus) domain.TaskSnapshot {
	now := time.Now().UTC()
	snap := domain.TaskSnapshot{
		ID:         uuid.New(),
		ProviderID: "video-luma",
		Request:    domain.GenerationRequest{TemplateID: "tmpl-spin"},
		Status:     status,
		Attempt:    2,
		CreatedAt:  now.Add(-time.Minute),
		UpdatedAt:  now,
		History: []domain.HistoryEntry{
			{Timestamp: now.Add(-time.Minute), Status: domain.TaskStatusQueued, Note: "task created"},
			{Timestamp: now, Status: status, Note: "done"},
		},
	}
	switch status {
	case domain.TaskStatusSucceeded:
		snap.Result = &domain.Result{OutputRef: "https://cdn.example.com/out.mp4", CompletedAt: now}
	case domain.TaskStatusFailed:
		snap.LastError = &domain.TaskError{Kind: domain.KindTransient, Message: "upstream unavailable"}
	}
	return snap
}

func TestArchiveHandler_SavesTerminalTasks(t *testing.T) {
	t.Parallel()

	archive := &mockArchive{}
	handler := NewArchiveHandler(archive, testLogger())

	snap := terminalSnapshot(domain.TaskStatusSucceeded)
	event := events.NewTaskEvent(snap, "generation succeeded")

	require.NoError(t, handler.HandleEvent(context.Background(), event))
	require.Len(t, archive.saved, 1)

	rec := archive.saved[0]
	assert.Equal(t, snap.ID, rec.ID)
	assert.Equal(t, "video-luma", rec.ProviderID)
	assert.Equal(t, "tmpl-spin", rec.TemplateID)
	assert.Equal(t, domain.TaskStatusSucceeded, rec.Status)
	assert.Equal(t, "https://cdn.example.com/out.mp4", rec.OutputRef)
	assert.Len(t, rec.History, 2)
}

func TestArchiveHandler_CarriesFailureDetail(t *testing.T) {
	t.Parallel()

	archive := &mockArchive{}
	handler := NewArchiveHandler(archive, testLogger())

	snap := terminalSnapshot(domain.TaskStatusFailed)
	require.NoError(t, handler.HandleEvent(context.Background(), events.NewTaskEvent(snap, "retries exhausted")))

	require.Len(t, archive.saved, 1)
	assert.Equal(t, "transient", archive.saved[0].ErrorKind)
	assert.Equal(t, "upstream unavailable", archive.saved[0].ErrorMessage)
	assert.Empty(t, archive.saved[0].OutputRef)
}

func TestArchiveHandler_IgnoresNonTerminalEvents(t *testing.T) {
	t.Parallel()

	archive := &mockArchive{}
	handler := NewArchiveHandler(archive, testLogger())

	snap := terminalSnapshot(domain.TaskStatusSucceeded)
	snap.Status = domain.TaskStatusRunning
	snap.Result = nil

	require.NoError(t, handler.HandleEvent(context.Background(), events.NewTaskEvent(snap, "attempt 1 started")))
	assert.Empty(t, archive.saved)
}

func TestArchiveHandler_PropagatesSaveError(t *testing.T) {
	t.Parallel()

	archive := &mockArchive{saveErr: errors.New("connection refused")}
	handler := NewArchiveHandler(archive, testLogger())

	snap := terminalSnapshot(domain.TaskStatusFailed)
	err := handler.HandleEvent(context.Background(), events.NewTaskEvent(snap, "retries exhausted"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
