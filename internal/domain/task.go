package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Field length limits enforced by Task validation. These mirror the
// column constraints in the tasks table.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	MaxNotesLength       = 1000
)

// Task-specific validation errors
var (
	// ErrTaskTitleEmpty is returned when a task title is empty or blank.
	ErrTaskTitleEmpty = errors.New("task title cannot be empty")

	// ErrTaskTitleTooLong is returned when a task title exceeds MaxTitleLength.
	ErrTaskTitleTooLong = fmt.Errorf("task title cannot exceed %d characters", MaxTitleLength)

	// ErrTaskDescriptionTooLong is returned when a description exceeds MaxDescriptionLength.
	ErrTaskDescriptionTooLong = fmt.Errorf(
		"task description cannot exceed %d characters",
		MaxDescriptionLength,
	)

	// ErrTaskNotesTooLong is returned when notes exceed MaxNotesLength.
	ErrTaskNotesTooLong = fmt.Errorf("task notes cannot exceed %d characters", MaxNotesLength)

	// ErrInvalidPriority is returned when a priority value is not recognized.
	ErrInvalidPriority = errors.New("invalid task priority")

	// ErrInvalidStatus is returned when a status value is not recognized.
	ErrInvalidStatus = errors.New("invalid task status")
)

// Priority represents the urgency of a task, ordered by an integer rank.
type Priority string

// Valid priority values, from least to most urgent.
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// priorityRanks orders priorities for sorting and comparison.
var priorityRanks = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

// priorityDisplayNames holds the human-readable labels used by API responses
// and exports.
var priorityDisplayNames = map[Priority]string{
	PriorityLow:    "Low",
	PriorityMedium: "Medium",
	PriorityHigh:   "High",
	PriorityUrgent: "Urgent",
}

// Rank returns the integer ordering of the priority. Unknown priorities
// rank below LOW.
func (p Priority) Rank() int {
	return priorityRanks[p]
}

// DisplayName returns the human-readable label for the priority.
// Unknown priorities are returned unchanged.
func (p Priority) DisplayName() string {
	if name, ok := priorityDisplayNames[p]; ok {
		return name
	}
	return string(p)
}

// IsValid reports whether the priority is one of the recognized values.
func (p Priority) IsValid() bool {
	_, ok := priorityRanks[p]
	return ok
}

// Status represents the lifecycle state of a task.
type Status string

// Valid status values.
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusOnHold     Status = "ON_HOLD"
)

// statusDisplayNames holds the human-readable labels for statuses.
var statusDisplayNames = map[Status]string{
	StatusTodo:       "To Do",
	StatusInProgress: "In Progress",
	StatusCompleted:  "Completed",
	StatusCancelled:  "Cancelled",
	StatusOnHold:     "On Hold",
}

// DisplayName returns the human-readable label for the status.
// Unknown statuses are returned unchanged.
func (s Status) DisplayName() string {
	if name, ok := statusDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// IsValid reports whether the status is one of the recognized values.
func (s Status) IsValid() bool {
	_, ok := statusDisplayNames[s]
	return ok
}

// IsTerminal reports whether the status excludes the task from overdue
// calculations.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AllStatuses returns every recognized status. Used by analytics to build
// complete count breakdowns.
func AllStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusCompleted, StatusCancelled, StatusOnHold}
}

// AllPriorities returns every recognized priority in rank order.
func AllPriorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// Task is the core tracked entity. The ID is assigned by the store on
// creation and is immutable afterwards; CreatedAt and UpdatedAt are
// maintained by the store on insert and update.
type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewTask creates a new Task with the given fields. Priority defaults to
// MEDIUM and status to TODO when left empty. Returns an error if
// validation fails.
func NewTask(
	title, description string,
	priority Priority,
	status Status,
	dueDate *time.Time,
	notes string,
) (*Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	if status == "" {
		status = StatusTodo
	}

	task := &Task{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      status,
		DueDate:     dueDate,
		Notes:       notes,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrTaskTitleEmpty
	}
	if len(t.Title) > MaxTitleLength {
		return ErrTaskTitleTooLong
	}
	if len(t.Description) > MaxDescriptionLength {
		return ErrTaskDescriptionTooLong
	}
	if len(t.Notes) > MaxNotesLength {
		return ErrTaskNotesTooLong
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidPriority, t.Priority)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	return nil
}

// IsOverdue reports whether the task's due date has passed as of the given
// time. Overdue is derived, never stored: a task is overdue when it has a
// due date on an earlier calendar day than asOf and its status is not
// terminal (COMPLETED or CANCELLED).
func (t *Task) IsOverdue(asOf time.Time) bool {
	if t.DueDate == nil || t.Status.IsTerminal() {
		return false
	}
	dy, dm, dd := t.DueDate.Date()
	ay, am, ad := asOf.Date()
	due := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	ref := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	return due.Before(ref)
}

// SetStatus transitions the task to the given status, maintaining the
// completed-at invariant: the timestamp is set only when the task enters
// COMPLETED and cleared when it leaves.
func (t *Task) SetStatus(status Status, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	if status == StatusCompleted {
		completedAt := now.UTC()
		t.CompletedAt = &completedAt
	} else {
		t.CompletedAt = nil
	}
	t.Status = status
	return nil
}

// MarkCompleted sets the task to COMPLETED and stamps completed-at with
// the given time regardless of the prior status. Completing an
// already-completed task simply refreshes the timestamp.
func (t *Task) MarkCompleted(now time.Time) {
	completedAt := now.UTC()
	t.Status = StatusCompleted
	t.CompletedAt = &completedAt
}

// Duplicate returns an unsaved copy of the task: title suffixed with
// " (Copy)", description, priority, due date and notes carried over.
// The copy always starts at TODO with no completion timestamp, even when
// the source is COMPLETED. This reset is deliberate policy.
func (t *Task) Duplicate() *Task {
	return &Task{
		Title:       t.Title + " (Copy)",
		Description: t.Description,
		Priority:    t.Priority,
		Status:      StatusTodo,
		DueDate:     copyTime(t.DueDate),
		Notes:       t.Notes,
	}
}

// Clone returns a deep copy of the task. Used for cache snapshots and
// event payloads so callers never share mutable state.
func (t *Task) Clone() *Task {
	clone := *t
	clone.DueDate = copyTime(t.DueDate)
	clone.CompletedAt = copyTime(t.CompletedAt)
	return &clone
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
