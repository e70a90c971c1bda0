package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/domain"
)

// PostgresTaskArchive implements TaskArchive on PostgreSQL.
type PostgresTaskArchive struct {
	db     DBTX
	logger *slog.Logger
}

// NewPostgresTaskArchive creates an archive backed by the given
// connection or transaction.
func NewPostgresTaskArchive(db DBTX, logger *slog.Logger) *PostgresTaskArchive {
	return &PostgresTaskArchive{
		db:     db,
		logger: logger.With("component", "task_archive"),
	}
}

// Save implements TaskArchive.
func (a *PostgresTaskArchive) Save(ctx context.Context, rec ArchivedTask) error {
	history, err := json.Marshal(rec.History)
	if err != nil {
		return fmt.Errorf("failed to encode task history: %w", err)
	}

	query := `
		INSERT INTO task_archive
			(id, provider_id, template_id, status, attempt, error_kind, error_message, output_ref, history, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			attempt = EXCLUDED.attempt,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			output_ref = EXCLUDED.output_ref,
			history = EXCLUDED.history,
			finished_at = EXCLUDED.finished_at
	`

	_, err = a.db.ExecContext(ctx, query,
		rec.ID,
		rec.ProviderID,
		rec.TemplateID,
		rec.Status,
		rec.Attempt,
		rec.ErrorKind,
		rec.ErrorMessage,
		rec.OutputRef,
		history,
		rec.CreatedAt,
		rec.FinishedAt,
	)
	if err != nil {
		a.logger.Error("failed to archive task", "task_id", rec.ID, "error", err)
		return fmt.Errorf("failed to archive task: %w", err)
	}
	return nil
}

// Get implements TaskArchive.
func (a *PostgresTaskArchive) Get(ctx context.Context, id uuid.UUID) (ArchivedTask, error) {
	query := `
		SELECT id, provider_id, template_id, status, attempt, error_kind, error_message, output_ref, history, created_at, finished_at
		FROM task_archive
		WHERE id = $1
	`
	rec, err := scanArchivedTask(a.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ArchivedTask{}, fmt.Errorf("%w: %s", ErrArchivedTaskNotFound, id)
		}
		return ArchivedTask{}, fmt.Errorf("failed to load archived task: %w", err)
	}
	return rec, nil
}

// ListRecent implements TaskArchive.
func (a *PostgresTaskArchive) ListRecent(ctx context.Context, limit int) ([]ArchivedTask, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, provider_id, template_id, status, attempt, error_kind, error_message, output_ref, history, created_at, finished_at
		FROM task_archive
		ORDER BY finished_at DESC
		LIMIT $1
	`
	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archived tasks: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			a.logger.Debug("failed to close rows", "error", cerr)
		}
	}()

	var out []ArchivedTask
	for rows.Next() {
		rec, err := scanArchivedTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan archived task: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archived tasks: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArchivedTask(row rowScanner) (ArchivedTask, error) {
	var (
		rec     ArchivedTask
		status  string
		history []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ProviderID,
		&rec.TemplateID,
		&status,
		&rec.Attempt,
		&rec.ErrorKind,
		&rec.ErrorMessage,
		&rec.OutputRef,
		&history,
		&rec.CreatedAt,
		&rec.FinishedAt,
	); err != nil {
		return ArchivedTask{}, err
	}
	rec.Status = domain.TaskStatus(status)
	if len(history) > 0 {
		if err := json.Unmarshal(history, &rec.History); err != nil {
			return ArchivedTask{}, fmt.Errorf("failed to decode task history: %w", err)
		}
	}
	return rec, nil
}
