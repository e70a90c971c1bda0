// Package compositor implements the image composite provider adapter on
// top of Google's Gemini API. Unlike the video providers, the upstream
// call is a single request/response exchange, so the adapter runs it in
// the background and exposes it through the same submit/poll/cancel
// capability set as every other provider.
package compositor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/generation"
	"github.com/lcollado/adforge/internal/provider"
)

// ProviderID is the provider ID served by the compositor adapter.
const ProviderID = "compositor"

// ErrJobNotFound is returned when polling a job reference this adapter
// never issued.
var ErrJobNotFound = errors.New("compositor job not found")

// Config holds the compositor settings.
type Config struct {
	APIKey    string
	Model     string
	OutputDir string
}

// Adapter is the Gemini-backed image composite adapter.
type Adapter struct {
	logger    *slog.Logger
	client    *genai.Client
	model     string
	outputDir string

	mu   sync.Mutex
	jobs map[provider.JobRef]*job
}

type job struct {
	cancel context.CancelFunc

	mu      sync.Mutex
	done    bool
	result  *domain.Result
	failure error
}

// New creates a compositor adapter and its Gemini client.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: compositor API key cannot be empty", domain.ErrValidation)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: compositor model cannot be empty", domain.ErrValidation)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Adapter{
		logger:    logger.With("provider", ProviderID),
		client:    client,
		model:     cfg.Model,
		outputDir: cfg.OutputDir,
		jobs:      make(map[provider.JobRef]*job),
	}, nil
}

// ID implements provider.Adapter.
func (a *Adapter) ID() string { return ProviderID }

// compositeParams is the payload shape the compositor expects in the
// request's opaque params.
type compositeParams struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style,omitempty"`
}

// Submit implements provider.Adapter. The generation runs in a
// background goroutine so submission returns immediately with a job
// reference, matching the asynchronous providers.
func (a *Adapter) Submit(ctx context.Context, req domain.GenerationRequest) (provider.JobRef, error) {
	var params compositeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return "", &generation.RawError{
				Message: fmt.Sprintf("invalid request: malformed composite params: %v", err),
				Err:     err,
			}
		}
	}
	if params.Prompt == "" {
		return "", &generation.RawError{Message: "invalid request: composite prompt is required"}
	}

	ref := provider.JobRef(uuid.New().String())
	jobCtx, cancel := context.WithCancel(context.Background())
	j := &job{cancel: cancel}

	a.mu.Lock()
	a.jobs[ref] = j
	a.mu.Unlock()

	go a.run(jobCtx, ref, j, req, params)

	a.logger.Debug("composite submitted", "job_id", string(ref))
	return ref, nil
}

func (a *Adapter) run(ctx context.Context, ref provider.JobRef, j *job, req domain.GenerationRequest, params compositeParams) {
	result, err := a.generate(ctx, ref, req, params)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.done = true
	if err != nil {
		j.failure = err
		a.logger.Debug("composite failed", "job_id", string(ref), "error", err)
		return
	}
	j.result = result
}

func (a *Adapter) generate(ctx context.Context, ref provider.JobRef, req domain.GenerationRequest, params compositeParams) (*domain.Result, error) {
	prompt := params.Prompt
	if params.Style != "" {
		prompt = fmt.Sprintf("%s\nStyle: %s", prompt, params.Style)
	}
	for _, asset := range req.Assets {
		prompt = fmt.Sprintf("%s\nSource image: %s", prompt, asset.Location)
	}

	content := &genai.Content{
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, []*genai.Content{content}, nil)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, &generation.RawError{Message: err.Error(), Err: err}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, &generation.RawError{Message: "empty response from model"}
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, &generation.RawError{Message: "content blocked by safety filters"}
	}

	var payload []byte
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			payload = append(payload, []byte(part.Text)...)
		}
	}
	if len(payload) == 0 {
		return nil, &generation.RawError{Message: "no composite content in response"}
	}

	outPath := filepath.Join(a.outputDir, string(ref)+".composite")
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write composite output: %w", err)
	}

	return &domain.Result{
		OutputRef:     outPath,
		ProviderJobID: string(ref),
		CompletedAt:   time.Now().UTC(),
	}, nil
}

// Poll implements provider.Adapter.
func (a *Adapter) Poll(ctx context.Context, ref provider.JobRef) (provider.Job, error) {
	a.mu.Lock()
	j, ok := a.jobs[ref]
	a.mu.Unlock()
	if !ok {
		return provider.Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, ref)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	out := provider.Job{Ref: ref}
	switch {
	case !j.done:
		out.State = provider.JobPending
	case j.failure != nil:
		out.State = provider.JobFailed
		out.Failure = j.failure
	default:
		out.State = provider.JobSucceeded
		out.Result = j.result
	}
	return out, nil
}

// Cancel implements provider.Adapter. Cancellation stops the background
// generation; a job that already completed keeps its outcome.
func (a *Adapter) Cancel(ctx context.Context, ref provider.JobRef) error {
	a.mu.Lock()
	j, ok := a.jobs[ref]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, ref)
	}
	j.cancel()
	return nil
}
