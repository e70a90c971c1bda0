package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lcollado/adforge/internal/events"
)

// ArchiveHandler subscribes to task lifecycle events and persists
// terminal outcomes. Archive failures are reported back to the emitter
// for logging but never change a task's outcome.
type ArchiveHandler struct {
	archive TaskArchive
	logger  *slog.Logger
}

// NewArchiveHandler creates the event handler writing to the given
// archive.
func NewArchiveHandler(archive TaskArchive, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archive: archive,
		logger:  logger.With("component", "archive_handler"),
	}
}

// HandleEvent implements events.Handler. Non-terminal events are
// ignored.
func (h *ArchiveHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if !event.Status.IsTerminal() {
		return nil
	}

	rec := FromSnapshot(event.Snapshot)
	if err := h.archive.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to archive task %s: %w", event.TaskID, err)
	}

	h.logger.Debug("task archived", "task_id", event.TaskID, "status", string(event.Status))
	return nil
}
