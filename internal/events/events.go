package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// EventType identifies the kind of task mutation an event describes.
type EventType string

// Task mutation event types.
const (
	TypeTaskCreated   EventType = "task.created"
	TypeTaskUpdated   EventType = "task.updated"
	TypeTaskCompleted EventType = "task.completed"
	TypeTaskDeleted   EventType = "task.deleted"
)

// TaskEvent describes one committed task mutation. It is emitted strictly
// after the mutation has succeeded, never speculatively.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type indicates which mutation produced the event
	Type EventType `json:"type"`

	// Payload contains the mutation details serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// TaskChange is the payload carried by a TaskEvent. Before and After are
// snapshots of the task around the mutation; either may be nil (a create
// has no Before, a delete has no After — by the time a delete event is
// observed the row is already gone, so the payload carries only the id
// and last known title).
type TaskChange struct {
	TaskID int64        `json:"task_id"`
	Title  string       `json:"title"`
	Actor  string       `json:"actor"`
	Before *domain.Task `json:"before,omitempty"`
	After  *domain.Task `json:"after,omitempty"`
}

// NewTaskEvent creates a TaskEvent of the given type carrying the change
// payload.
func NewTaskEvent(eventType EventType, change TaskChange) (*TaskEvent, error) {
	payload, err := json.Marshal(change)
	if err != nil {
		return nil, err
	}

	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalChange decodes the event payload into a TaskChange.
func (e *TaskEvent) UnmarshalChange() (*TaskChange, error) {
	var change TaskChange
	if err := json.Unmarshal(e.Payload, &change); err != nil {
		return nil, err
	}
	return &change, nil
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
