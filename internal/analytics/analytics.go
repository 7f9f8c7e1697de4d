// Package analytics computes summary statistics over the task store and
// the audit trail.
package analytics

import (
	"context"
	"log/slog"
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// Summary is a point-in-time breakdown of the tracked tasks.
type Summary struct {
	Total          int64                      `json:"total"`
	ByStatus       map[domain.Status]int64    `json:"by_status"`
	ByPriority     map[domain.Priority]int64  `json:"by_priority"`
	Overdue        int64                      `json:"overdue"`
	CompletionRate float64                    `json:"completion_rate"`
	AuditActions   map[domain.AuditAction]int64 `json:"audit_actions,omitempty"`
}

// Service computes task analytics from store count queries.
type Service struct {
	taskStore  store.TaskStore
	auditStore store.AuditStore
	logger     *slog.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewService creates an analytics service. The audit store is optional;
// when nil the summary omits audit action counts.
func NewService(taskStore store.TaskStore, auditStore store.AuditStore, logger *slog.Logger) *Service {
	if taskStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskStore cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		taskStore:  taskStore,
		auditStore: auditStore,
		logger:     logger.With(slog.String("component", "analytics_service")),
		now:        time.Now,
	}
}

// Summary computes the full breakdown. CompletionRate is completed over
// total, zero when there are no tasks.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	total, err := s.taskStore.Count(ctx)
	if err != nil {
		return nil, err
	}

	byStatus := make(map[domain.Status]int64, len(domain.AllStatuses()))
	for _, status := range domain.AllStatuses() {
		count, err := s.taskStore.CountByStatus(ctx, status)
		if err != nil {
			return nil, err
		}
		byStatus[status] = count
	}

	byPriority := make(map[domain.Priority]int64, len(domain.AllPriorities()))
	for _, priority := range domain.AllPriorities() {
		count, err := s.taskStore.CountByPriority(ctx, priority)
		if err != nil {
			return nil, err
		}
		byPriority[priority] = count
	}

	overdueTasks, err := s.taskStore.FindOverdue(ctx, s.now())
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Total:      total,
		ByStatus:   byStatus,
		ByPriority: byPriority,
		Overdue:    int64(len(overdueTasks)),
	}
	if total > 0 {
		summary.CompletionRate = float64(byStatus[domain.StatusCompleted]) / float64(total)
	}

	if s.auditStore != nil {
		actions := make(map[domain.AuditAction]int64, len(domain.AllAuditActions()))
		for _, action := range domain.AllAuditActions() {
			count, err := s.auditStore.CountByAction(ctx, action)
			if err != nil {
				return nil, err
			}
			actions[action] = count
		}
		summary.AuditActions = actions
	}

	return summary, nil
}
