package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/domain"
)

// subscriberBuffer is the channel capacity handed to each subscriber.
// Transitions per task are bounded by the attempt budget at roughly a
// dozen, so a well-formed subscriber never observes a dropped update;
// the non-blocking send below only protects the orchestrator from a
// consumer that abandoned its channel.
const subscriberBuffer = 64

// taskEntry is the registry's record for one task: the live task plus
// its subscribers and cancellation signal. entry.mu guards all fields.
type taskEntry struct {
	mu sync.Mutex

	task *domain.Task
	subs []chan domain.TaskSnapshot

	cancelRequested bool
	cancelCh        chan struct{}

	// readyCh is closed once the created event for the task has been
	// emitted. Admission waits on it so the queued event always precedes
	// any later lifecycle event, even for tasks that finish fast.
	readyCh chan struct{}
}

// requestCancel flips the cancellation flag and closes cancelCh exactly
// once. Returns false if cancellation was already requested.
func (e *taskEntry) requestCancel() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelRequested {
		return false
	}
	e.cancelRequested = true
	close(e.cancelCh)
	return true
}

func (e *taskEntry) cancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelRequested
}

func (e *taskEntry) snapshot() domain.TaskSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Snapshot()
}

func (e *taskEntry) terminal() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.task.Status.IsTerminal()
}

// publishLocked fans the current snapshot out to subscribers. Slow
// subscribers are skipped rather than blocking the orchestrator. On a
// terminal snapshot all subscriber channels are closed after delivery.
// Caller must hold e.mu.
func (e *taskEntry) publishLocked() {
	snap := e.task.Snapshot()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	if snap.Status.IsTerminal() {
		for _, ch := range e.subs {
			close(ch)
		}
		e.subs = nil
	}
}

// subscribe registers a new subscriber channel seeded with the current
// snapshot. For a task already terminal the channel is closed right
// after the seed snapshot.
func (e *taskEntry) subscribe() <-chan domain.TaskSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	ch := make(chan domain.TaskSnapshot, subscriberBuffer)
	ch <- e.task.Snapshot()
	if e.task.Status.IsTerminal() {
		close(ch)
	} else {
		e.subs = append(e.subs, ch)
	}
	return ch
}

// taskRegistry indexes live and finished tasks by ID.
type taskRegistry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*taskEntry
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{entries: make(map[uuid.UUID]*taskEntry)}
}

func (r *taskRegistry) add(task *domain.Task) *taskEntry {
	entry := &taskEntry{
		task:     task,
		cancelCh: make(chan struct{}),
		readyCh:  make(chan struct{}),
	}
	r.mu.Lock()
	r.entries[task.ID] = entry
	r.mu.Unlock()
	return entry
}

func (r *taskRegistry) get(id uuid.UUID) (*taskEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[id]
	return entry, ok
}

func (r *taskRegistry) remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}
