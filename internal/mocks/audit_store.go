package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// MemoryAuditStore is an in-memory, append-only store.AuditStore with
// error injection for failure-path tests.
type MemoryAuditStore struct {
	mu      sync.Mutex
	records []*domain.AuditRecord
	nextID  int64

	// CreateErr, when set, makes Create fail with it.
	CreateErr error
}

// NewMemoryAuditStore creates an empty MemoryAuditStore.
func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

// Ensure MemoryAuditStore implements store.AuditStore
var _ store.AuditStore = (*MemoryAuditStore)(nil)

// Create implements store.AuditStore.Create
func (s *MemoryAuditStore) Create(ctx context.Context, record *domain.AuditRecord) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	record.ID = s.nextID
	clone := *record
	s.records = append(s.records, &clone)
	return nil
}

// FindByTaskID implements store.AuditStore.FindByTaskID
func (s *MemoryAuditStore) FindByTaskID(
	ctx context.Context,
	taskID int64,
) ([]*domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*domain.AuditRecord
	for _, record := range s.records {
		if record.TaskID == taskID {
			clone := *record
			matched = append(matched, &clone)
		}
	}

	// Newest first, id breaking timestamp ties.
	sort.SliceStable(matched, func(a, b int) bool {
		if matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].ID > matched[b].ID
		}
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})
	return matched, nil
}

// CountByAction implements store.AuditStore.CountByAction
func (s *MemoryAuditStore) CountByAction(
	ctx context.Context,
	action domain.AuditAction,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, record := range s.records {
		if record.Action == action {
			count++
		}
	}
	return count, nil
}

// All returns clones of every record in insertion order.
func (s *MemoryAuditStore) All() []*domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*domain.AuditRecord, 0, len(s.records))
	for _, record := range s.records {
		clone := *record
		all = append(all, &clone)
	}
	return all
}
