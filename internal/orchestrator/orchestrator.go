// Package orchestrator runs generation tasks through their lifecycle:
// admission under a global concurrency budget, per-provider FIFO
// queues, breaker-gated attempts, classified retries and cancellation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/breaker"
	"github.com/lcollado/adforge/internal/domain"
	"github.com/lcollado/adforge/internal/events"
	"github.com/lcollado/adforge/internal/provider"
	"github.com/lcollado/adforge/internal/retry"
)

// Config holds the orchestrator's tunable knobs.
type Config struct {
	// MaxConcurrency is the global budget of simultaneously running
	// attempts across all providers. Zero means 4.
	MaxConcurrency int

	// QueueSize bounds each provider's FIFO admission queue. Zero means
	// 64.
	QueueSize int

	// AdapterTimeout bounds one full attempt (submit plus polling). Zero
	// means 120 seconds.
	AdapterTimeout time.Duration

	// PollInterval is the wait between provider polls. Zero means 2
	// seconds.
	PollInterval time.Duration

	// CancelGrace bounds the best-effort provider-side cancel call issued
	// when a running task is cancelled. Zero means 5 seconds.
	CancelGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = 120 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = 5 * time.Second
	}
	return c
}

// SubmitOptions controls admission behavior for one submission.
type SubmitOptions struct {
	// Queue, when set, lets the task wait in the provider's FIFO queue if
	// all concurrency slots are busy. When unset a submission that cannot
	// start immediately is rejected with ErrCapacityExceeded.
	Queue bool
}

// ProviderHealth is the per-provider view exposed for health reporting.
type ProviderHealth struct {
	ProviderID          string `json:"provider_id"`
	BreakerState        string `json:"breaker_state"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
	QueueDepth          int    `json:"queue_depth"`
}

// Orchestrator coordinates task execution. All exported methods are safe
// for concurrent use.
type Orchestrator struct {
	cfg       Config
	providers *provider.Registry
	breakers  *breaker.Registry
	policy    *retry.Policy
	emitter   events.Emitter
	logger    *slog.Logger

	tasks  *taskRegistry
	slots  chan struct{}
	queues map[string]chan uuid.UUID

	wg     sync.WaitGroup
	stopCh chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New assembles an orchestrator from its collaborators. Call Start
// before submitting tasks.
func New(cfg Config, providers *provider.Registry, breakers *breaker.Registry, policy *retry.Policy, emitter events.Emitter, logger *slog.Logger) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:       cfg,
		providers: providers,
		breakers:  breakers,
		policy:    policy,
		emitter:   emitter,
		logger:    logger.With("component", "orchestrator"),
		tasks:     newTaskRegistry(),
		slots:     make(chan struct{}, cfg.MaxConcurrency),
		queues:    make(map[string]chan uuid.UUID),
		stopCh:    make(chan struct{}),
	}
}

// Start launches one admission loop per registered provider. Providers
// registered after Start are not served.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true

	for _, id := range o.providers.IDs() {
		queue := make(chan uuid.UUID, o.cfg.QueueSize)
		o.queues[id] = queue
		o.wg.Add(1)
		go o.admitLoop(id, queue)
	}
	o.logger.Info("orchestrator started",
		"max_concurrency", o.cfg.MaxConcurrency,
		"queue_size", o.cfg.QueueSize,
		"providers", len(o.queues))
}

// Stop shuts the orchestrator down. Queued tasks are abandoned in place;
// running attempts finish their current provider call. Stop blocks until
// all internal goroutines exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.mu.Unlock()

	close(o.stopCh)
	o.wg.Wait()
	o.logger.Info("orchestrator stopped")
}

// Submit validates the request, registers a new queued task and enqueues
// it for its provider. The returned snapshot reflects the queued state.
func (o *Orchestrator) Submit(ctx context.Context, providerID string, req domain.GenerationRequest, opts SubmitOptions) (domain.TaskSnapshot, error) {
	if _, err := o.providers.Get(providerID); err != nil {
		return domain.TaskSnapshot{}, err
	}
	if req.TemplateID == "" {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: template ID is required", domain.ErrValidation)
	}

	o.mu.Lock()
	queue, ok := o.queues[providerID]
	started, stopped := o.started, o.stopped
	o.mu.Unlock()
	if !started || stopped || !ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: orchestrator is not accepting tasks", domain.ErrCapacityExceeded)
	}

	if !opts.Queue && len(o.slots) >= cap(o.slots) {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: all %d slots busy", domain.ErrCapacityExceeded, cap(o.slots))
	}

	task := domain.NewTask(providerID, req, time.Now().UTC())
	entry := o.tasks.add(task)

	select {
	case queue <- task.ID:
	default:
		o.tasks.remove(task.ID)
		return domain.TaskSnapshot{}, fmt.Errorf("%w: provider %s queue full", domain.ErrCapacityExceeded, providerID)
	}

	snap := entry.snapshot()
	o.logger.Info("task submitted", "task_id", task.ID, "provider", providerID, "template", req.TemplateID)
	o.emit(ctx, snap, "task created")
	close(entry.readyCh)
	return snap, nil
}

// GetStatus returns a snapshot of the task, terminal or not.
func (o *Orchestrator) GetStatus(taskID uuid.UUID) (domain.TaskSnapshot, error) {
	entry, ok := o.tasks.get(taskID)
	if !ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	return entry.snapshot(), nil
}

// Subscribe returns a channel of task snapshots, seeded with the current
// one. The channel closes once the task reaches a terminal state.
func (o *Orchestrator) Subscribe(taskID uuid.UUID) (<-chan domain.TaskSnapshot, error) {
	entry, ok := o.tasks.get(taskID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	return entry.subscribe(), nil
}

// Cancel requests cancellation. A queued task is cancelled immediately;
// a running task is cancelled at the next checkpoint, with a best-effort
// provider-side cancel. Cancelling a terminal task fails with
// ErrInvalidStateTransition and leaves the task unchanged.
func (o *Orchestrator) Cancel(ctx context.Context, taskID uuid.UUID) (domain.TaskSnapshot, error) {
	entry, ok := o.tasks.get(taskID)
	if !ok {
		return domain.TaskSnapshot{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}

	entry.mu.Lock()
	switch {
	case entry.task.Status.IsTerminal():
		status := entry.task.Status
		entry.mu.Unlock()
		return domain.TaskSnapshot{}, fmt.Errorf("%w: cannot cancel %s task", domain.ErrInvalidStateTransition, status)

	case entry.task.Status == domain.TaskStatusQueued:
		// Not yet picked up; no provider call to unwind. The admission
		// loop skips terminal tasks when it dequeues this ID.
		if err := entry.task.MarkCancelled("cancelled before start", time.Now().UTC()); err != nil {
			entry.mu.Unlock()
			return domain.TaskSnapshot{}, err
		}
		entry.publishLocked()
		snap := entry.task.Snapshot()
		entry.mu.Unlock()

		o.logger.Info("queued task cancelled", "task_id", taskID)
		o.emit(ctx, snap, "cancelled before start")
		return snap, nil

	default: // running
		entry.mu.Unlock()
		if entry.requestCancel() {
			o.logger.Info("cancellation requested", "task_id", taskID)
		}
		return entry.snapshot(), nil
	}
}

// Health reports the breaker state and queue depth for every provider.
func (o *Orchestrator) Health() []ProviderHealth {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]ProviderHealth, 0, len(o.queues))
	for _, id := range o.providers.IDs() {
		status := o.breakers.Get(id).Status()
		depth := 0
		if q, ok := o.queues[id]; ok {
			depth = len(q)
		}
		out = append(out, ProviderHealth{
			ProviderID:          id,
			BreakerState:        status.State.String(),
			ConsecutiveFailures: status.ConsecutiveFailures,
			QueueDepth:          depth,
		})
	}
	return out
}

// ProviderHealthFor reports one provider's breaker state and queue
// depth. Returns ErrUnknownProvider for an unregistered provider.
func (o *Orchestrator) ProviderHealthFor(providerID string) (ProviderHealth, error) {
	if _, err := o.providers.Get(providerID); err != nil {
		return ProviderHealth{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	status := o.breakers.Get(providerID).Status()
	depth := 0
	if q, ok := o.queues[providerID]; ok {
		depth = len(q)
	}
	return ProviderHealth{
		ProviderID:          providerID,
		BreakerState:        status.State.String(),
		ConsecutiveFailures: status.ConsecutiveFailures,
		QueueDepth:          depth,
	}, nil
}

// admitLoop serves one provider's FIFO queue: it takes the next task ID,
// waits for a free concurrency slot and hands the task to a worker.
// Dequeue order is admission order, so earlier submissions start first.
func (o *Orchestrator) admitLoop(providerID string, queue chan uuid.UUID) {
	defer o.wg.Done()

	for {
		select {
		case <-o.stopCh:
			return
		case taskID := <-queue:
			entry, ok := o.tasks.get(taskID)
			if !ok {
				continue
			}

			select {
			case <-entry.readyCh:
			case <-o.stopCh:
				return
			}

			if entry.terminal() {
				continue
			}

			select {
			case o.slots <- struct{}{}:
			case <-o.stopCh:
				return
			}

			if entry.terminal() {
				<-o.slots
				continue
			}

			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				defer func() { <-o.slots }()
				o.runAttempt(entry)
			}()
		}
	}
}

// requeue puts a task back on its provider queue after the retry delay.
// The concurrency slot is already released, so waiting tasks can run
// during the backoff.
func (o *Orchestrator) requeue(entry *taskEntry, delay time.Duration) {
	o.mu.Lock()
	queue, ok := o.queues[entry.task.ProviderID]
	o.mu.Unlock()
	if !ok {
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-o.stopCh:
			return
		case <-entry.cancelCh:
			o.finalizeCancel(entry, "cancelled during retry wait")
			return
		case <-timer.C:
		}

		select {
		case queue <- entry.task.ID:
		case <-o.stopCh:
		case <-entry.cancelCh:
			o.finalizeCancel(entry, "cancelled during retry wait")
		}
	}()
}

// emit publishes a lifecycle event; emission problems are logged and
// never propagate to the task.
func (o *Orchestrator) emit(ctx context.Context, snap domain.TaskSnapshot, note string) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.EmitEvent(ctx, events.NewTaskEvent(snap, note)); err != nil {
		o.logger.Warn("event emission failed", "task_id", snap.ID, "error", err)
	}
}
