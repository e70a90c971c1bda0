package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/generation"
	"github.com/lcollado/adforge/internal/provider"
	"github.com/lcollado/adforge/internal/redact"
)

// errAttemptCancelled signals that the attempt stopped because the task
// was cancelled, not because the provider failed.
var errAttemptCancelled = errors.New("attempt cancelled")

// runAttempt drives exactly one attempt for the task. It owns the
// concurrency slot for its whole duration; retries are scheduled through
// requeue so the slot frees up during backoff.
func (o *Orchestrator) runAttempt(entry *taskEntry) {
	if entry.cancelled() {
		o.finalizeCancel(entry, "cancelled before attempt")
		return
	}

	providerID := entry.task.ProviderID
	adapter, err := o.providers.Get(providerID)
	if err != nil {
		o.abort(entry, domain.TaskError{
			Kind:    domain.KindInvalidRequest,
			Message: err.Error(),
		}, "provider lookup failed")
		return
	}

	br := o.breakers.Get(providerID)
	if err := br.Allow(); err != nil {
		// Short-circuited: the adapter is never contacted and the attempt
		// budget is untouched. The task fails fast so the caller can
		// decide when to resubmit.
		o.abort(entry, domain.TaskError{
			Kind:    domain.KindProviderUnavailable,
			Message: fmt.Sprintf("provider %s circuit open", providerID),
		}, "short-circuited by open breaker")
		return
	}

	entry.mu.Lock()
	if err := entry.task.BeginAttempt(time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	attempt := entry.task.Attempt
	req := entry.task.Request
	entry.publishLocked()
	entry.mu.Unlock()

	o.logger.Debug("attempt started", "task_id", entry.task.ID, "provider", providerID, "attempt", attempt)

	result, attemptErr := o.executeAttempt(entry, adapter, req)
	switch {
	case attemptErr == nil:
		br.RecordSuccess()
		if entry.cancelled() {
			// The provider finished before the cancel checkpoint; the
			// result is discarded.
			o.finalizeCancel(entry, "cancelled after provider completed, result discarded")
			return
		}
		o.markSucceeded(entry, *result)

	case errors.Is(attemptErr, errAttemptCancelled):
		o.finalizeCancel(entry, "cancelled during attempt")

	default:
		br.RecordFailure()
		o.handleAttemptFailure(entry, attempt, attemptErr)
	}
}

// executeAttempt performs the submit-and-poll exchange with the
// provider, bounded by the adapter timeout and interruptible by task
// cancellation.
func (o *Orchestrator) executeAttempt(entry *taskEntry, adapter provider.Adapter, req domain.GenerationRequest) (*domain.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.AdapterTimeout)
	defer cancel()

	attemptDone := make(chan struct{})
	defer close(attemptDone)
	go func() {
		select {
		case <-entry.cancelCh:
			cancel()
		case <-o.stopCh:
			cancel()
		case <-attemptDone:
		}
	}()

	ref, err := adapter.Submit(ctx, req)
	if err != nil {
		if entry.cancelled() {
			return nil, errAttemptCancelled
		}
		return nil, err
	}

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if entry.cancelled() {
				o.cancelProviderJob(adapter, ref)
				return nil, errAttemptCancelled
			}
			return nil, ctx.Err()

		case <-ticker.C:
			job, err := adapter.Poll(ctx, ref)
			if err != nil {
				if entry.cancelled() {
					o.cancelProviderJob(adapter, ref)
					return nil, errAttemptCancelled
				}
				return nil, err
			}

			switch job.State {
			case provider.JobSucceeded:
				if job.Result == nil {
					return nil, &generation.RawError{Message: "provider reported success without a result"}
				}
				return job.Result, nil
			case provider.JobFailed:
				if job.Failure == nil {
					return nil, &generation.RawError{Message: "provider reported failure without detail"}
				}
				return nil, job.Failure
			default:
				// still pending
			}
		}
	}
}

// cancelProviderJob issues the best-effort provider-side cancel with its
// own bounded grace period; the task transitions regardless of the ack.
func (o *Orchestrator) cancelProviderJob(adapter provider.Adapter, ref provider.JobRef) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.CancelGrace)
	defer cancel()
	if err := adapter.Cancel(ctx, ref); err != nil {
		o.logger.Warn("provider-side cancel failed", "provider", adapter.ID(), "job_ref", string(ref), "error", err)
	}
}

// handleAttemptFailure classifies the failure and either schedules a
// retry or fails the task for good.
func (o *Orchestrator) handleAttemptFailure(entry *taskEntry, attempt int, attemptErr error) {
	kind := generation.Classify(attemptErr)
	hint, _ := generation.RetryHint(attemptErr)
	decision := o.policy.Decide(kind, attempt, hint)

	// Provider error bodies can echo request credentials; scrub before
	// the text reaches the task record, logs or the archive.
	terr := domain.TaskError{Kind: kind, Message: redact.Error(attemptErr)}

	if !decision.ShouldRetry {
		o.markFailed(entry, terr, fmt.Sprintf("attempt %d failed (%s), giving up", attempt, kind))
		return
	}

	entry.mu.Lock()
	note := fmt.Sprintf("attempt %d failed (%s), retrying in %s", attempt, kind, decision.Delay.Round(time.Millisecond))
	if err := entry.task.RecordAttemptFailure(terr, note, time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	entry.publishLocked()
	entry.mu.Unlock()

	o.logger.Info("attempt failed, retry scheduled",
		"task_id", entry.task.ID,
		"attempt", attempt,
		"kind", string(kind),
		"delay", decision.Delay)
	o.requeue(entry, decision.Delay)
}

func (o *Orchestrator) markSucceeded(entry *taskEntry, result domain.Result) {
	entry.mu.Lock()
	if err := entry.task.MarkSucceeded(result, time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	entry.publishLocked()
	snap := entry.task.Snapshot()
	entry.mu.Unlock()

	o.logger.Info("task succeeded", "task_id", snap.ID, "attempt", snap.Attempt)
	o.emit(context.Background(), snap, "generation succeeded")
}

// abort fails the task without consuming an attempt.
func (o *Orchestrator) abort(entry *taskEntry, terr domain.TaskError, note string) {
	entry.mu.Lock()
	if err := entry.task.Abort(terr, note, time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	entry.publishLocked()
	snap := entry.task.Snapshot()
	entry.mu.Unlock()

	o.logger.Warn("task aborted", "task_id", snap.ID, "kind", string(terr.Kind), "message", terr.Message)
	o.emit(context.Background(), snap, note)
}

func (o *Orchestrator) markFailed(entry *taskEntry, terr domain.TaskError, note string) {
	entry.mu.Lock()
	if err := entry.task.MarkFailed(terr, note, time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	entry.publishLocked()
	snap := entry.task.Snapshot()
	entry.mu.Unlock()

	o.logger.Warn("task failed", "task_id", snap.ID, "kind", string(terr.Kind), "message", terr.Message)
	o.emit(context.Background(), snap, note)
}

func (o *Orchestrator) finalizeCancel(entry *taskEntry, note string) {
	entry.mu.Lock()
	if err := entry.task.MarkCancelled(note, time.Now().UTC()); err != nil {
		entry.mu.Unlock()
		return
	}
	entry.publishLocked()
	snap := entry.task.Snapshot()
	entry.mu.Unlock()

	o.logger.Info("task cancelled", "task_id", snap.ID)
	o.emit(context.Background(), snap, note)
}
