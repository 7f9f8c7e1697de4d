package store

import (
	"context"
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// TaskStore defines the interface for task data persistence.
// Version: 1.0
type TaskStore interface {
	// Create saves a new task to the store. The store assigns the ID and
	// the created-at/updated-at timestamps, mutating the given task in
	// place. Returns validation errors if the task data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByID retrieves a task by its unique ID.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Task, error)

	// Update overwrites the mutable fields of an existing task and
	// refreshes its updated-at timestamp.
	// Returns ErrTaskNotFound if the task does not exist.
	Update(ctx context.Context, task *domain.Task) error

	// Delete removes a task from the store by its ID.
	// Returns ErrTaskNotFound if the task does not exist.
	// Audit rows referencing the task are left in place: the audit trail
	// deliberately outlives the tasks it describes.
	Delete(ctx context.Context, id int64) error

	// ExistsByID reports whether a task with the given ID exists.
	ExistsByID(ctx context.Context, id int64) (bool, error)

	// Count returns the total number of tasks.
	Count(ctx context.Context) (int64, error)

	// CountByStatus returns the number of tasks with the given status.
	CountByStatus(ctx context.Context, status domain.Status) (int64, error)

	// CountByPriority returns the number of tasks with the given priority.
	CountByPriority(ctx context.Context, priority domain.Priority) (int64, error)

	// List returns one page of tasks ordered per the request.
	List(ctx context.Context, req PageRequest) (*TaskPage, error)

	// Search returns one page of tasks whose title or description
	// contains the given text, case-insensitively, newest first.
	Search(ctx context.Context, text string, req PageRequest) (*TaskPage, error)

	// FindOverdue returns all tasks whose due date is on an earlier
	// calendar day than asOf and whose status is not terminal.
	FindOverdue(ctx context.Context, asOf time.Time) ([]*domain.Task, error)

	// ListAll returns every task. Used by the suggestion index to score
	// candidate titles; result sets are expected to be modest.
	ListAll(ctx context.Context) ([]*domain.Task, error)
}
