package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/assets"
	"github.com/lcollado/adforge/internal/domain"
)

// SubmitTaskRequest is the payload for creating a generation task.
type SubmitTaskRequest struct {
	TemplateID string          `json:"template_id" validate:"required"`
	Assets     []assets.Input  `json:"assets"`
	Params     json.RawMessage `json:"params,omitempty"`

	// Queue lets the task wait for a free slot instead of being
	// rejected when the concurrency budget is exhausted.
	Queue bool `json:"queue"`
}

// LoginRequest is the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
}

// TaskErrorResponse is the classified last error of a task.
type TaskErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// TaskResultResponse is the output reference of a succeeded task.
type TaskResultResponse struct {
	OutputRef     string    `json:"output_ref"`
	ProviderJobID string    `json:"provider_job_id,omitempty"`
	CompletedAt   time.Time `json:"completed_at"`
}

// TaskHistoryEntry is one lifecycle transition.
type TaskHistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Note      string    `json:"note"`
}

// TaskResponse is the API form of a task snapshot.
type TaskResponse struct {
	ID         uuid.UUID           `json:"id"`
	ProviderID string              `json:"provider_id"`
	TemplateID string              `json:"template_id"`
	Status     string              `json:"status"`
	Attempt    int                 `json:"attempt"`
	LastError  *TaskErrorResponse  `json:"last_error,omitempty"`
	Result     *TaskResultResponse `json:"result,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
	History    []TaskHistoryEntry  `json:"history,omitempty"`
}

// ArchivedTaskResponse is the API form of an archived terminal task.
type ArchivedTaskResponse struct {
	ID           uuid.UUID `json:"id"`
	ProviderID   string    `json:"provider_id"`
	TemplateID   string    `json:"template_id"`
	Status       string    `json:"status"`
	Attempt      int       `json:"attempt"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	OutputRef    string    `json:"output_ref,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// TaskResponseFromSnapshot converts a snapshot into its API form.
// withHistory controls whether the full transition log is included.
func TaskResponseFromSnapshot(snap domain.TaskSnapshot, withHistory bool) TaskResponse {
	resp := TaskResponse{
		ID:         snap.ID,
		ProviderID: snap.ProviderID,
		TemplateID: snap.Request.TemplateID,
		Status:     string(snap.Status),
		Attempt:    snap.Attempt,
		CreatedAt:  snap.CreatedAt,
		UpdatedAt:  snap.UpdatedAt,
	}
	if snap.LastError != nil {
		resp.LastError = &TaskErrorResponse{
			Kind:    string(snap.LastError.Kind),
			Message: snap.LastError.Message,
		}
	}
	if snap.Result != nil {
		resp.Result = &TaskResultResponse{
			OutputRef:     snap.Result.OutputRef,
			ProviderJobID: snap.Result.ProviderJobID,
			CompletedAt:   snap.Result.CompletedAt,
		}
	}
	if withHistory {
		resp.History = make([]TaskHistoryEntry, len(snap.History))
		for i, h := range snap.History {
			resp.History[i] = TaskHistoryEntry{
				Timestamp: h.Timestamp,
				Status:    string(h.Status),
				Note:      h.Note,
			}
		}
	}
	return resp
}
