// Package mocks provides in-memory implementations of the store
// interfaces for use in tests across packages.
package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// MemoryTaskStore is an in-memory store.TaskStore. It assigns ids and
// timestamps the way the real store does and supports per-method error
// injection for failure-path tests.
type MemoryTaskStore struct {
	mu     sync.Mutex
	tasks  map[int64]*domain.Task
	nextID int64

	// Error injection: when set, the corresponding method fails with it.
	CreateErr  error
	GetErr     error
	UpdateErr  error
	DeleteErr  error
	ListErr    error
	ListAllErr error

	// Call tracking for verification
	GetCalls     int
	ListAllCalls int
}

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{
		tasks: make(map[int64]*domain.Task),
	}
}

// Ensure MemoryTaskStore implements store.TaskStore
var _ store.TaskStore = (*MemoryTaskStore)(nil)

// Seed inserts tasks directly, bypassing validation. Useful for
// arranging fixtures.
func (s *MemoryTaskStore) Seed(tasks ...*domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		if task.ID == 0 {
			s.nextID++
			task.ID = s.nextID
		} else if task.ID > s.nextID {
			s.nextID = task.ID
		}
		s.tasks[task.ID] = task.Clone()
	}
}

// Create implements store.TaskStore.Create
func (s *MemoryTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if s.CreateErr != nil {
		return s.CreateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	task.ID = s.nextID
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task.Clone()
	return nil
}

// GetByID implements store.TaskStore.GetByID
func (s *MemoryTaskStore) GetByID(ctx context.Context, id int64) (*domain.Task, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.GetCalls++
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return task.Clone(), nil
}

// Update implements store.TaskStore.Update
func (s *MemoryTaskStore) Update(ctx context.Context, task *domain.Task) error {
	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}

	task.CreatedAt = existing.CreatedAt
	task.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Delete implements store.TaskStore.Delete
func (s *MemoryTaskStore) Delete(ctx context.Context, id int64) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// ExistsByID implements store.TaskStore.ExistsByID
func (s *MemoryTaskStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[id]
	return ok, nil
}

// Count implements store.TaskStore.Count
func (s *MemoryTaskStore) Count(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.tasks)), nil
}

// CountByStatus implements store.TaskStore.CountByStatus
func (s *MemoryTaskStore) CountByStatus(
	ctx context.Context,
	status domain.Status,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, task := range s.tasks {
		if task.Status == status {
			count++
		}
	}
	return count, nil
}

// CountByPriority implements store.TaskStore.CountByPriority
func (s *MemoryTaskStore) CountByPriority(
	ctx context.Context,
	priority domain.Priority,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, task := range s.tasks {
		if task.Priority == priority {
			count++
		}
	}
	return count, nil
}

// List implements store.TaskStore.List
// Sorting supports the created_at and title fields, which is all the
// tests exercise.
func (s *MemoryTaskStore) List(
	ctx context.Context,
	req store.PageRequest,
) (*store.TaskPage, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	all := s.snapshot()

	sort.SliceStable(all, func(a, b int) bool {
		var less bool
		switch req.Sort {
		case store.SortByTitle:
			less = all[a].Title < all[b].Title
		default:
			if all[a].CreatedAt.Equal(all[b].CreatedAt) {
				less = all[a].ID < all[b].ID
			} else {
				less = all[a].CreatedAt.Before(all[b].CreatedAt)
			}
		}
		if req.Descending {
			return !less
		}
		return less
	})

	return store.NewTaskPage(pageSlice(all, req), int64(len(all)), req), nil
}

// Search implements store.TaskStore.Search
func (s *MemoryTaskStore) Search(
	ctx context.Context,
	text string,
	req store.PageRequest,
) (*store.TaskPage, error) {
	if s.ListErr != nil {
		return nil, s.ListErr
	}

	needle := strings.ToLower(text)
	var matched []*domain.Task
	for _, task := range s.snapshot() {
		if strings.Contains(strings.ToLower(task.Title), needle) ||
			strings.Contains(strings.ToLower(task.Description), needle) {
			matched = append(matched, task)
		}
	}

	sort.SliceStable(matched, func(a, b int) bool {
		return matched[a].CreatedAt.After(matched[b].CreatedAt)
	})

	return store.NewTaskPage(pageSlice(matched, req), int64(len(matched)), req), nil
}

// FindOverdue implements store.TaskStore.FindOverdue
func (s *MemoryTaskStore) FindOverdue(
	ctx context.Context,
	asOf time.Time,
) ([]*domain.Task, error) {
	var overdue []*domain.Task
	for _, task := range s.snapshot() {
		if task.IsOverdue(asOf) {
			overdue = append(overdue, task)
		}
	}
	sort.SliceStable(overdue, func(a, b int) bool {
		return overdue[a].ID < overdue[b].ID
	})
	return overdue, nil
}

// ListAll implements store.TaskStore.ListAll
func (s *MemoryTaskStore) ListAll(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	s.ListAllCalls++
	s.mu.Unlock()

	if s.ListAllErr != nil {
		return nil, s.ListAllErr
	}

	all := s.snapshot()
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].ID < all[b].ID
	})
	return all, nil
}

// snapshot returns clones of all stored tasks.
func (s *MemoryTaskStore) snapshot() []*domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		all = append(all, task.Clone())
	}
	return all
}

// pageSlice cuts one page out of the sorted slice.
func pageSlice(all []*domain.Task, req store.PageRequest) []*domain.Task {
	start := req.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + req.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}
