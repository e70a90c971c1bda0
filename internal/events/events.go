// Package events defines the task lifecycle event types and the emitter
// used to fan them out to interested components (archival, metrics)
// without the orchestrator depending on them directly.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/domain"
)

// TaskEvent describes one observable change in a task's lifecycle.
type TaskEvent struct {
	// ID is a unique identifier for this event.
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task the event belongs to.
	TaskID uuid.UUID `json:"task_id"`

	// ProviderID is the provider the task targets.
	ProviderID string `json:"provider_id"`

	// Status is the task status after the change.
	Status domain.TaskStatus `json:"status"`

	// Attempt is the attempt count at the time of the event.
	Attempt int `json:"attempt"`

	// Note is a short human-readable description of the change.
	Note string `json:"note,omitempty"`

	// Snapshot carries the full task state at the time of the event.
	Snapshot domain.TaskSnapshot `json:"snapshot"`

	// OccurredAt is the timestamp when the event was created.
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent builds an event from a task snapshot.
func NewTaskEvent(snap domain.TaskSnapshot, note string) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		TaskID:     snap.ID,
		ProviderID: snap.ProviderID,
		Status:     snap.Status,
		Attempt:    snap.Attempt,
		Note:       note,
		Snapshot:   snap,
		OccurredAt: time.Now().UTC(),
	}
}

// Handler is implemented by components that react to task events.
type Handler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// Emitter publishes task events to registered handlers. Emission
// failures never affect the task outcome itself.
type Emitter interface {
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
