package api

import (
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
)

// Common request/response structures

// CreateTaskRequest defines the payload for the task creation endpoint.
type CreateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status      string     `json:"status"      validate:"omitempty,oneof=TODO IN_PROGRESS COMPLETED CANCELLED ON_HOLD"`
	DueDate     *time.Time `json:"due_date"`
	Notes       string     `json:"notes"       validate:"max=1000"`
}

// UpdateTaskRequest defines the payload for the task update endpoint.
// Omitted priority/status keep the current values; an omitted due date
// clears it.
type UpdateTaskRequest struct {
	Title       string     `json:"title"       validate:"required,max=255"`
	Description string     `json:"description" validate:"max=2000"`
	Priority    string     `json:"priority"    validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Status      string     `json:"status"      validate:"omitempty,oneof=TODO IN_PROGRESS COMPLETED CANCELLED ON_HOLD"`
	DueDate     *time.Time `json:"due_date"`
	Notes       string     `json:"notes"       validate:"max=1000"`
}

// BulkCreateRequest defines the payload for creating several tasks at once.
type BulkCreateRequest struct {
	Tasks []CreateTaskRequest `json:"tasks" validate:"required,min=1,max=100,dive"`
}

// BulkStatusRequest defines the payload for the bulk status endpoint.
type BulkStatusRequest struct {
	IDs    []int64 `json:"ids"    validate:"required,min=1,max=100"`
	Status string  `json:"status" validate:"required,oneof=TODO IN_PROGRESS COMPLETED CANCELLED ON_HOLD"`
}

// BulkIDsRequest defines the payload for bulk complete and bulk delete.
type BulkIDsRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=100"`
}

// TaskResponse represents the response data for a task.
type TaskResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Overdue     bool       `json:"overdue"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TaskPageResponse wraps one page of tasks with pagination metadata.
type TaskPageResponse struct {
	Items      []TaskResponse `json:"items"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int64          `json:"total_pages"`
}

// BulkResultResponse reports the outcome of a bulk mutation.
type BulkResultResponse struct {
	Requested int     `json:"requested"`
	Applied   int     `json:"applied"`
	IDs       []int64 `json:"ids"`
}

// AuditRecordResponse represents one audit trail entry.
type AuditRecordResponse struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	TaskTitle string    `json:"task_title"`
	Action    string    `json:"action"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
	ChangedBy string    `json:"changed_by"`
	CreatedAt time.Time `json:"created_at"`
}

// taskToResponse converts a domain task into its API representation.
func taskToResponse(task *domain.Task, asOf time.Time) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		DueDate:     task.DueDate,
		CompletedAt: task.CompletedAt,
		Notes:       task.Notes,
		Overdue:     task.IsOverdue(asOf),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// tasksToResponses converts a slice of domain tasks.
func tasksToResponses(tasks []*domain.Task, asOf time.Time) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, taskToResponse(task, asOf))
	}
	return responses
}

// auditToResponse converts a domain audit record into its API representation.
func auditToResponse(record *domain.AuditRecord) AuditRecordResponse {
	return AuditRecordResponse{
		ID:        record.ID,
		TaskID:    record.TaskID,
		TaskTitle: record.TaskTitle,
		Action:    string(record.Action),
		OldValue:  record.OldValue,
		NewValue:  record.NewValue,
		ChangedBy: record.ChangedBy,
		CreatedAt: record.CreatedAt,
	}
}
