// Package audit records the append-only trail of task mutations.
//
// The Recorder subscribes to task mutation events rather than sitting on
// the mutation call path. Recording is best effort by contract: any
// failure while serializing or persisting a record is caught here, logged
// with enough context to diagnose, and discarded. A mutation is never
// blocked, retried or rolled back because its audit write failed; the
// cost is an acceptable gap in the trail.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// eventActions maps event types to the audit action they record.
var eventActions = map[events.EventType]domain.AuditAction{
	events.TypeTaskCreated:   domain.AuditActionCreated,
	events.TypeTaskUpdated:   domain.AuditActionUpdated,
	events.TypeTaskCompleted: domain.AuditActionCompleted,
	events.TypeTaskDeleted:   domain.AuditActionDeleted,
}

// Recorder captures task mutation events as immutable audit records.
// It implements events.EventHandler.
type Recorder struct {
	auditStore store.AuditStore
	logger     *slog.Logger
}

// NewRecorder creates a new Recorder persisting through the given store.
// If logger is nil, a default logger will be used.
func NewRecorder(auditStore store.AuditStore, logger *slog.Logger) *Recorder {
	if auditStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("auditStore cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		auditStore: auditStore,
		logger:     logger.With(slog.String("component", "audit_recorder")),
	}
}

// Ensure Recorder implements events.EventHandler
var _ events.EventHandler = (*Recorder)(nil)

// HandleEvent implements events.EventHandler. It builds and persists one
// audit record for the mutation the event describes. HandleEvent always
// returns nil: audit failures terminate here, not in the publisher.
func (r *Recorder) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	log := logger.FromContextOrDefault(ctx, r.logger)

	action, ok := eventActions[event.Type]
	if !ok {
		log.Debug("ignoring event with unsupported type",
			slog.String("event_type", string(event.Type)),
			slog.String("event_id", event.ID.String()))
		return nil
	}

	change, err := event.UnmarshalChange()
	if err != nil {
		log.Error("failed to decode task change from event",
			slog.String("event_id", event.ID.String()),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil
	}

	oldValue, err := serializeSnapshot(change.Before)
	if err != nil {
		log.Error("failed to serialize task snapshot for audit",
			slog.Int64("task_id", change.TaskID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil
	}
	newValue, err := serializeSnapshot(change.After)
	if err != nil {
		log.Error("failed to serialize task snapshot for audit",
			slog.Int64("task_id", change.TaskID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil
	}

	record, err := domain.NewAuditRecord(
		change.TaskID,
		change.Title,
		action,
		oldValue,
		newValue,
		change.Actor,
	)
	if err != nil {
		log.Error("failed to build audit record",
			slog.Int64("task_id", change.TaskID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil
	}

	if err := r.auditStore.Create(ctx, record); err != nil {
		log.Error("failed to persist audit record",
			slog.Int64("task_id", change.TaskID),
			slog.String("action", string(action)),
			slog.String("error", err.Error()))
		return nil
	}

	log.Debug("recorded audit entry",
		slog.Int64("task_id", change.TaskID),
		slog.String("action", string(action)),
		slog.String("changed_by", record.ChangedBy))
	return nil
}

// History returns the audit trail for the given task id, newest first.
// Unlike recording, reads propagate store failures to the caller.
func (r *Recorder) History(ctx context.Context, taskID int64) ([]*domain.AuditRecord, error) {
	return r.auditStore.FindByTaskID(ctx, taskID)
}

// ActionCounts returns the number of recorded audit entries per action.
func (r *Recorder) ActionCounts(ctx context.Context) (map[domain.AuditAction]int64, error) {
	counts := make(map[domain.AuditAction]int64, len(domain.AllAuditActions()))
	for _, action := range domain.AllAuditActions() {
		count, err := r.auditStore.CountByAction(ctx, action)
		if err != nil {
			return nil, err
		}
		counts[action] = count
	}
	return counts, nil
}

// serializeSnapshot renders a task snapshot as an opaque JSON string.
// A nil snapshot serializes to the empty string, stored as NULL.
func serializeSnapshot(task *domain.Task) (string, error) {
	if task == nil {
		return "", nil
	}
	data, err := json.Marshal(task)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
