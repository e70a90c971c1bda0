// Package provider defines the capability interface the orchestrator
// uses to talk to generation backends, and the registry that maps
// provider IDs to concrete adapters. The orchestrator never branches on
// a concrete provider type; new providers are added as new adapter
// implementations.
package provider

import (
	"context"

	"github.com/lcollado/adforge/internal/domain"
)

// JobRef identifies an in-flight job on a provider's side. Opaque to the
// orchestrator.
type JobRef string

// JobState is the provider-reported state of a job.
type JobState int

const (
	JobPending JobState = iota
	JobSucceeded
	JobFailed
)

// Job is one poll observation of a provider job.
type Job struct {
	Ref   JobRef
	State JobState

	// Result is set iff State == JobSucceeded.
	Result *domain.Result

	// Failure is the raw provider failure, set iff State == JobFailed.
	Failure error
}

// Adapter is the uniform capability set every generation provider
// implements: submit a job, poll its status, cancel it. Concrete
// adapters translate these to the provider's own transport.
type Adapter interface {
	// ID returns the provider ID this adapter serves.
	ID() string

	// Submit starts a generation job and returns a reference to it.
	Submit(ctx context.Context, req domain.GenerationRequest) (JobRef, error)

	// Poll reports the current state of a previously submitted job.
	Poll(ctx context.Context, ref JobRef) (Job, error)

	// Cancel requests cancellation of a job. Best effort: a job already
	// past the point of no return completes on the provider's side and
	// its result is discarded.
	Cancel(ctx context.Context, ref JobRef) error
}
