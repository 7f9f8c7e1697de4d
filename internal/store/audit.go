package store

import (
	"context"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// AuditStore defines the interface for audit trail persistence.
// The audit table is append-only: there are no update or delete
// operations by design.
// Version: 1.0
type AuditStore interface {
	// Create appends a new audit record. The store assigns the ID,
	// mutating the given record in place.
	Create(ctx context.Context, record *domain.AuditRecord) error

	// FindByTaskID retrieves all audit records for the given task id in
	// timestamp-descending order (newest first). Returns an empty slice
	// when no records exist; a missing task is not an error here since
	// audit rows may outlive their task.
	FindByTaskID(ctx context.Context, taskID int64) ([]*domain.AuditRecord, error)

	// CountByAction returns the number of audit records with the given action.
	CountByAction(ctx context.Context, action domain.AuditAction) (int64, error)
}
