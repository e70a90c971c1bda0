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

// ProviderIDLuma is the provider ID served by the Luma adapter.
const ProviderIDLuma = "video-luma"

// LumaAdapter drives the Luma Dream Machine style generation API:
// POST /v1/generations to submit, GET /v1/generations/{id} to poll,
// DELETE /v1/generations/{id} to cancel.
type LumaAdapter struct {
	client *apiClient
	logger *slog.Logger
}

// NewLumaAdapter creates a Luma adapter from provider config.
func NewLumaAdapter(cfg Config, logger *slog.Logger) *LumaAdapter {
	logger = logger.With("provider", ProviderIDLuma)
	return &LumaAdapter{
		client: newAPIClient(cfg, logger),
		logger: logger,
	}
}

// ID implements provider.Adapter.
func (a *LumaAdapter) ID() string { return ProviderIDLuma }

type lumaGenerationRequest struct {
	TemplateID string          `json:"template_id"`
	ImageURLs  []string        `json:"image_urls,omitempty"`
	Params     json.RawMessage `json:"params,omitempty"`
}

type lumaGeneration struct {
	ID            string `json:"id"`
	State         string `json:"state"`
	FailureReason string `json:"failure_reason,omitempty"`
	Assets        struct {
		Video string `json:"video"`
	} `json:"assets"`
}

// Submit implements provider.Adapter.
func (a *LumaAdapter) Submit(ctx context.Context, req domain.GenerationRequest) (provider.JobRef, error) {
	body := lumaGenerationRequest{
		TemplateID: req.TemplateID,
		Params:     req.Params,
	}
	for _, asset := range req.Assets {
		body.ImageURLs = append(body.ImageURLs, asset.Location)
	}

	var gen lumaGeneration
	if err := a.client.doJSON(ctx, http.MethodPost, "/v1/generations", body, &gen); err != nil {
		return "", fmt.Errorf("luma submit: %w", err)
	}

	a.logger.Debug("generation submitted", "job_id", gen.ID, "state", gen.State)
	return provider.JobRef(gen.ID), nil
}

// Poll implements provider.Adapter.
func (a *LumaAdapter) Poll(ctx context.Context, ref provider.JobRef) (provider.Job, error) {
	var gen lumaGeneration
	if err := a.client.doJSON(ctx, http.MethodGet, "/v1/generations/"+string(ref), nil, &gen); err != nil {
		return provider.Job{}, fmt.Errorf("luma poll: %w", err)
	}

	job := provider.Job{Ref: ref}
	switch gen.State {
	case "completed":
		job.State = provider.JobSucceeded
		job.Result = &domain.Result{
			OutputRef:     gen.Assets.Video,
			ProviderJobID: gen.ID,
			CompletedAt:   time.Now().UTC(),
		}
	case "failed":
		job.State = provider.JobFailed
		job.Failure = &generation.RawError{Message: gen.FailureReason}
	default: // queued, dreaming
		job.State = provider.JobPending
	}
	return job, nil
}

// Cancel implements provider.Adapter.
func (a *LumaAdapter) Cancel(ctx context.Context, ref provider.JobRef) error {
	if err := a.client.doJSON(ctx, http.MethodDelete, "/v1/generations/"+string(ref), nil, nil); err != nil {
		return fmt.Errorf("luma cancel: %w", err)
	}
	a.logger.Debug("generation cancelled", "job_id", string(ref))
	return nil
}
