package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// ErrorKind is the closed set of classified failure kinds. Every raw
// provider failure is mapped onto exactly one kind before it is recorded
// on a task.
type ErrorKind string

const (
	// KindTransient covers network timeouts, 5xx responses and connection
	// resets. Retryable.
	KindTransient ErrorKind = "transient"

	// KindRateLimited covers 429-style responses. Retryable, with any
	// provider-supplied minimum wait honored as a floor on the delay.
	KindRateLimited ErrorKind = "rate_limited"

	// KindInvalidRequest covers malformed input and unsupported
	// parameters. Fatal.
	KindInvalidRequest ErrorKind = "invalid_request"

	// KindAuthFailure covers missing or rejected credentials. Fatal.
	KindAuthFailure ErrorKind = "auth_failure"

	// KindProviderUnavailable is recorded when the circuit breaker for the
	// target provider is open and the call was short-circuited without
	// contacting the adapter.
	KindProviderUnavailable ErrorKind = "provider_unavailable"

	// KindUnknown covers failures no other kind matched. Retryable, capped
	// at one extra attempt.
	KindUnknown ErrorKind = "unknown"
)

// TaskError is the classified form of the most recent attempt failure.
type TaskError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// AssetRef is a validated, size-bounded reference to an uploaded binary
// asset. Tasks carry references only, never raw bytes.
type AssetRef struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Location    string    `json:"location"`
}

// GenerationRequest is the opaque payload dispatched to a provider
// adapter. It is owned exclusively by its task and never mutated after
// creation.
type GenerationRequest struct {
	TemplateID string          `json:"template_id"`
	Assets     []AssetRef      `json:"assets,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// Result is the opaque output reference produced by a successful
// generation.
type Result struct {
	OutputRef     string    `json:"output_ref"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// HistoryEntry records one transition or notable event in a task's
// lifetime. History is append-only and insertion order is significant.
type HistoryEntry struct {
	Timestamp time.Time  `json:"timestamp"`
	Status    TaskStatus `json:"status"`
	Note      string     `json:"note"`
}

// Task is one unit of generation work tracked through its lifecycle.
//
// Invariants: a task has exactly one status at any instant; Result is set
// iff Status == TaskStatusSucceeded; LastError is set iff at least one
// attempt has failed. The orchestrator is the only mutator; external
// callers only ever see snapshots.
type Task struct {
	ID         uuid.UUID
	ProviderID string
	Request    GenerationRequest
	Status     TaskStatus
	Attempt    int
	LastError  *TaskError
	Result     *Result
	CreatedAt  time.Time
	UpdatedAt  time.Time
	History    []HistoryEntry
}

// TaskSnapshot is an immutable copy of a task handed to callers. The
// snapshot shares no mutable state with the live record.
type TaskSnapshot struct {
	ID         uuid.UUID         `json:"id"`
	ProviderID string            `json:"provider_id"`
	Request    GenerationRequest `json:"request"`
	Status     TaskStatus        `json:"status"`
	Attempt    int               `json:"attempt"`
	LastError  *TaskError        `json:"last_error,omitempty"`
	Result     *Result           `json:"result,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	History    []HistoryEntry    `json:"history"`
}

// NewTask creates a task in the queued state with its creation recorded
// in history.
func NewTask(providerID string, req GenerationRequest, now time.Time) *Task {
	return &Task{
		ID:         uuid.New(),
		ProviderID: providerID,
		Request:    req,
		Status:     TaskStatusQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
		History: []HistoryEntry{
			{Timestamp: now, Status: TaskStatusQueued, Note: "task created"},
		},
	}
}

// BeginAttempt moves a queued task to running (a no-op for a task already
// running) and increments the attempt counter. Returns
// ErrInvalidStateTransition if the task is terminal.
func (t *Task) BeginAttempt(now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot start attempt from %s", ErrInvalidStateTransition, t.Status)
	}
	t.Status = TaskStatusRunning
	t.Attempt++
	t.record(now, fmt.Sprintf("attempt %d started", t.Attempt))
	return nil
}

// RecordAttemptFailure notes a failed attempt that will be retried. The
// task stays running; only LastError and history change.
func (t *Task) RecordAttemptFailure(terr TaskError, note string, now time.Time) error {
	if t.Status != TaskStatusRunning {
		return fmt.Errorf("%w: attempt failure recorded on %s task", ErrInvalidStateTransition, t.Status)
	}
	t.LastError = &terr
	t.record(now, note)
	return nil
}

// MarkSucceeded moves the task to its successful terminal state. The last
// error, if any, is cleared.
func (t *Task) MarkSucceeded(res Result, now time.Time) error {
	if err := t.checkTransition(TaskStatusSucceeded); err != nil {
		return err
	}
	t.Status = TaskStatusSucceeded
	t.Result = &res
	t.LastError = nil
	t.record(now, "generation succeeded")
	return nil
}

// MarkFailed moves the task to its failed terminal state with the
// classified error that exhausted it.
func (t *Task) MarkFailed(terr TaskError, note string, now time.Time) error {
	if err := t.checkTransition(TaskStatusFailed); err != nil {
		return err
	}
	t.Status = TaskStatusFailed
	t.LastError = &terr
	t.record(now, note)
	return nil
}

// Abort moves the task to failed without consuming an attempt, used
// when a call is short-circuited before the provider is contacted.
// Valid from both queued and running.
func (t *Task) Abort(terr TaskError, note string, now time.Time) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, TaskStatusFailed)
	}
	t.Status = TaskStatusFailed
	t.LastError = &terr
	t.record(now, note)
	return nil
}

// MarkCancelled moves the task to the cancelled terminal state. Valid
// from both queued and running.
func (t *Task) MarkCancelled(note string, now time.Time) error {
	if err := t.checkTransition(TaskStatusCancelled); err != nil {
		return err
	}
	t.Status = TaskStatusCancelled
	t.record(now, note)
	return nil
}

func (t *Task) checkTransition(to TaskStatus) error {
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, to)
	}
	switch to {
	case TaskStatusSucceeded, TaskStatusFailed:
		if t.Status != TaskStatusRunning {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, to)
		}
	}
	return nil
}

func (t *Task) record(now time.Time, note string) {
	t.UpdatedAt = now
	t.History = append(t.History, HistoryEntry{Timestamp: now, Status: t.Status, Note: note})
}

// Snapshot returns a deep copy of the task safe to hand outside the
// orchestrator.
func (t *Task) Snapshot() TaskSnapshot {
	snap := TaskSnapshot{
		ID:         t.ID,
		ProviderID: t.ProviderID,
		Status:     t.Status,
		Attempt:    t.Attempt,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
	snap.Request = GenerationRequest{
		TemplateID: t.Request.TemplateID,
		Assets:     append([]AssetRef(nil), t.Request.Assets...),
		Params:     append(json.RawMessage(nil), t.Request.Params...),
	}
	if t.LastError != nil {
		e := *t.LastError
		snap.LastError = &e
	}
	if t.Result != nil {
		r := *t.Result
		snap.Result = &r
	}
	snap.History = append([]HistoryEntry(nil), t.History...)
	return snap
}
