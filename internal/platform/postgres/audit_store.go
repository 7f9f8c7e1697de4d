package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// PostgresAuditStore implements the store.AuditStore interface
// using a PostgreSQL database as the storage backend. The task_audit
// table is append-only.
type PostgresAuditStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresAuditStore creates a new PostgreSQL implementation of the
// AuditStore interface. If logger is nil, a default logger will be used.
func NewPostgresAuditStore(db store.DBTX, logger *slog.Logger) *PostgresAuditStore {
	if db == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresAuditStore{
		db:     db,
		logger: logger.With(slog.String("component", "audit_store")),
	}
}

// Ensure PostgresAuditStore implements store.AuditStore interface
var _ store.AuditStore = (*PostgresAuditStore)(nil)

// Create implements store.AuditStore.Create
// It appends the record and populates its ID from the row.
func (s *PostgresAuditStore) Create(ctx context.Context, record *domain.AuditRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO task_audit (task_id, task_title, action, old_value, new_value, changed_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
		record.CreatedAt = createdAt
	}

	err := s.db.QueryRowContext(ctx, query,
		record.TaskID,
		record.TaskTitle,
		record.Action,
		nullableString(record.OldValue),
		nullableString(record.NewValue),
		record.ChangedBy,
		createdAt,
	).Scan(&record.ID)

	if err != nil {
		log.Error("failed to insert audit record",
			slog.Int64("task_id", record.TaskID),
			slog.String("action", string(record.Action)),
			slog.String("error", err.Error()))
		return MapError(err)
	}

	return nil
}

// FindByTaskID implements store.AuditStore.FindByTaskID
// Records come back newest first. An unknown task id yields an empty
// slice, not an error.
func (s *PostgresAuditStore) FindByTaskID(
	ctx context.Context,
	taskID int64,
) ([]*domain.AuditRecord, error) {
	query := `
		SELECT id, task_id, task_title, action, old_value, new_value, changed_by, created_at
		FROM task_audit
		WHERE task_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var records []*domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		var oldValue, newValue sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.TaskID,
			&record.TaskTitle,
			&record.Action,
			&oldValue,
			&newValue,
			&record.ChangedBy,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}

		record.OldValue = oldValue.String
		record.NewValue = newValue.String
		records = append(records, &record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return records, nil
}

// CountByAction implements store.AuditStore.CountByAction
func (s *PostgresAuditStore) CountByAction(
	ctx context.Context,
	action domain.AuditAction,
) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM task_audit WHERE action = $1`, action,
	).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// nullableString maps an empty snapshot to NULL rather than an empty string.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
