package videogen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/generation"
	"github.com/lcollado/adforge/internal/provider"
)

// ProviderIDPika is the provider ID served by the Pika adapter.
const ProviderIDPika = "video-pika"

// PikaAdapter drives the Pika style job API: POST /v1/jobs to submit,
// GET /v1/jobs/{id} to poll, POST /v1/jobs/{id}/cancel to cancel.
type PikaAdapter struct {
	client *apiClient
	logger *slog.Logger
}

// NewPikaAdapter creates a Pika adapter from provider config.
func NewPikaAdapter(cfg Config, logger *slog.Logger) *PikaAdapter {
	logger = logger.With("provider", ProviderIDPika)
	return &PikaAdapter{
		client: newAPIClient(cfg, logger),
		logger: logger,
	}
}

// ID implements provider.Adapter.
func (a *PikaAdapter) ID() string { return ProviderIDPika }

type pikaJobRequest struct {
	Template string          `json:"template"`
	Images   []string        `json:"images,omitempty"`
	Options  json.RawMessage `json:"options,omitempty"`
}

type pikaJob struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	VideoURL string `json:"video_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Submit implements provider.Adapter.
func (a *PikaAdapter) Submit(ctx context.Context, req domain.GenerationRequest) (provider.JobRef, error) {
	body := pikaJobRequest{
		Template: req.TemplateID,
		Options:  req.Params,
	}
	for _, asset := range req.Assets {
		body.Images = append(body.Images, asset.Location)
	}

	var job pikaJob
	if err := a.client.doJSON(ctx, http.MethodPost, "/v1/jobs", body, &job); err != nil {
		return "", fmt.Errorf("pika submit: %w", err)
	}

	a.logger.Debug("job submitted", "job_id", job.JobID, "status", job.Status)
	return provider.JobRef(job.JobID), nil
}

// Poll implements provider.Adapter.
func (a *PikaAdapter) Poll(ctx context.Context, ref provider.JobRef) (provider.Job, error) {
	var pj pikaJob
	if err := a.client.doJSON(ctx, http.MethodGet, "/v1/jobs/"+string(ref), nil, &pj); err != nil {
		return provider.Job{}, fmt.Errorf("pika poll: %w", err)
	}

	job := provider.Job{Ref: ref}
	switch pj.Status {
	case "finished":
		job.State = provider.JobSucceeded
		job.Result = &domain.Result{
			OutputRef:     pj.VideoURL,
			ProviderJobID: pj.JobID,
			CompletedAt:   time.Now().UTC(),
		}
	case "failed":
		job.State = provider.JobFailed
		job.Failure = &generation.RawError{Message: pj.Error}
	default: // pending, rendering
		job.State = provider.JobPending
	}
	return job, nil
}

// Cancel implements provider.Adapter.
func (a *PikaAdapter) Cancel(ctx context.Context, ref provider.JobRef) error {
	if err := a.client.doJSON(ctx, http.MethodPost, "/v1/jobs/"+string(ref)+"/cancel", nil, nil); err != nil {
		return fmt.Errorf("pika cancel: %w", err)
	}
	a.logger.Debug("job cancelled", "job_id", string(ref))
	return nil
}
