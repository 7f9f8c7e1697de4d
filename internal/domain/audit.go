package domain

import (
	"errors"
	"fmt"
	"time"
)

// SystemActor is the default changed-by label when no actor is supplied
// with a mutation.
const SystemActor = "system"

// Audit-specific validation errors
var (
	// ErrAuditTaskIDInvalid is returned when an audit record references a
	// non-positive task id.
	ErrAuditTaskIDInvalid = errors.New("audit record task ID must be positive")

	// ErrInvalidAuditAction is returned when an action value is not recognized.
	ErrInvalidAuditAction = errors.New("invalid audit action")
)

// AuditAction identifies the mutation that produced an audit record.
type AuditAction string

// Valid audit actions.
const (
	AuditActionCreated   AuditAction = "CREATED"
	AuditActionUpdated   AuditAction = "UPDATED"
	AuditActionCompleted AuditAction = "COMPLETED"
	AuditActionDeleted   AuditAction = "DELETED"
)

// IsValid reports whether the action is one of the recognized values.
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditActionCreated, AuditActionUpdated, AuditActionCompleted, AuditActionDeleted:
		return true
	}
	return false
}

// AllAuditActions returns every recognized audit action.
func AllAuditActions() []AuditAction {
	return []AuditAction{
		AuditActionCreated,
		AuditActionUpdated,
		AuditActionCompleted,
		AuditActionDeleted,
	}
}

// AuditRecord is an immutable row in the task audit trail. The task id is
// a plain reference, not an ownership relation: audit rows may outlive
// the task they describe. Records are created strictly after the mutation
// they capture has committed and are never updated or deleted by normal
// operation.
type AuditRecord struct {
	ID        int64       `json:"id"`
	TaskID    int64       `json:"task_id"`
	TaskTitle string      `json:"task_title"`
	Action    AuditAction `json:"action"`
	OldValue  string      `json:"old_value,omitempty"`
	NewValue  string      `json:"new_value,omitempty"`
	ChangedBy string      `json:"changed_by"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewAuditRecord creates an AuditRecord for the given task and action.
// OldValue and NewValue are opaque serialized snapshots; either may be
// empty. ChangedBy defaults to the system principal when blank, and the
// timestamp is set at construction.
func NewAuditRecord(
	taskID int64,
	taskTitle string,
	action AuditAction,
	oldValue, newValue, changedBy string,
) (*AuditRecord, error) {
	if changedBy == "" {
		changedBy = SystemActor
	}

	record := &AuditRecord{
		TaskID:    taskID,
		TaskTitle: taskTitle,
		Action:    action,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: changedBy,
		CreatedAt: time.Now().UTC(),
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return record, nil
}

// Validate checks if the AuditRecord has valid data.
func (r *AuditRecord) Validate() error {
	if r.TaskID <= 0 {
		return ErrAuditTaskIDInvalid
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAuditAction, r.Action)
	}
	return nil
}
