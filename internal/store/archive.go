// Package store persists finished tasks. The in-memory task registry
// stays authoritative while a task is live; the archive is a durable
// record of terminal outcomes for audit and later inspection.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/domain"
)

// ErrArchivedTaskNotFound is returned when the requested task has no
// archived record.
var ErrArchivedTaskNotFound = errors.New("archived task not found")

// ArchivedTask is the durable form of a terminal task.
type ArchivedTask struct {
	ID           uuid.UUID
	ProviderID   string
	TemplateID   string
	Status       domain.TaskStatus
	Attempt      int
	ErrorKind    string
	ErrorMessage string
	OutputRef    string
	History      []domain.HistoryEntry
	CreatedAt    time.Time
	FinishedAt   time.Time
}

// TaskArchive stores terminal task records.
type TaskArchive interface {
	// Save persists one terminal task. Saving the same task twice is an
	// upsert, so replayed events are harmless.
	Save(ctx context.Context, rec ArchivedTask) error

	// Get returns the archived record for the given task ID.
	Get(ctx context.Context, id uuid.UUID) (ArchivedTask, error)

	// ListRecent returns up to limit records, most recently finished
	// first.
	ListRecent(ctx context.Context, limit int) ([]ArchivedTask, error)
}

// FromSnapshot converts a terminal task snapshot into its archive form.
func FromSnapshot(snap domain.TaskSnapshot) ArchivedTask {
	rec := ArchivedTask{
		ID:         snap.ID,
		ProviderID: snap.ProviderID,
		TemplateID: snap.Request.TemplateID,
		Status:     snap.Status,
		Attempt:    snap.Attempt,
		History:    snap.History,
		CreatedAt:  snap.CreatedAt,
		FinishedAt: snap.UpdatedAt,
	}
	if snap.LastError != nil {
		rec.ErrorKind = string(snap.LastError.Kind)
		rec.ErrorMessage = snap.LastError.Message
	}
	if snap.Result != nil {
		rec.OutputRef = snap.Result.OutputRef
	}
	return rec
}
