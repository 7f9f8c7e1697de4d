package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskvault/taskvault-api/internal/cache"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/mocks"
	"github.com/taskvault/taskvault-api/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturingHandler records every event it receives.
type capturingHandler struct {
	events []*events.TaskEvent
	err    error
}

func (h *capturingHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	h.events = append(h.events, event)
	return h.err
}

type serviceFixture struct {
	service   TaskService
	taskStore *mocks.MemoryTaskStore
	taskCache *cache.TaskCache
	handler   *capturingHandler
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	taskStore := mocks.NewMemoryTaskStore()
	taskCache := cache.New(cache.DefaultOptions())
	emitter := events.NewInMemoryEventEmitter(testLogger())
	handler := &capturingHandler{}
	emitter.RegisterHandler(handler)

	svc, err := NewTaskService(taskStore, taskCache, emitter, testLogger())
	require.NoError(t, err)

	return &serviceFixture{
		service:   svc,
		taskStore: taskStore,
		taskCache: taskCache,
		handler:   handler,
	}
}

func (f *serviceFixture) seed(t *testing.T, title string) *domain.Task {
	t.Helper()
	task, err := f.service.Create(context.Background(), CreateTaskInput{Title: title}, "seed")
	require.NoError(t, err)
	f.handler.events = nil
	return task
}

func (f *serviceFixture) lastEvent(t *testing.T) *events.TaskEvent {
	t.Helper()
	require.NotEmpty(t, f.handler.events)
	return f.handler.events[len(f.handler.events)-1]
}

func TestNewTaskService(t *testing.T) {
	taskStore := mocks.NewMemoryTaskStore()
	taskCache := cache.New(cache.DefaultOptions())
	emitter := events.NewInMemoryEventEmitter(testLogger())

	t.Run("requires task store", func(t *testing.T) {
		_, err := NewTaskService(nil, taskCache, emitter, testLogger())
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("requires cache", func(t *testing.T) {
		_, err := NewTaskService(taskStore, nil, emitter, testLogger())
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("requires emitter", func(t *testing.T) {
		_, err := NewTaskService(taskStore, taskCache, nil, testLogger())
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("nil logger falls back to default", func(t *testing.T) {
		svc, err := NewTaskService(taskStore, taskCache, emitter, nil)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestTaskServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates task and emits created event", func(t *testing.T) {
		f := newFixture(t)

		due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
		task, err := f.service.Create(ctx, CreateTaskInput{
			Title:    "Write report",
			Priority: domain.PriorityHigh,
			DueDate:  &due,
		}, "alice")
		require.NoError(t, err)
		assert.NotZero(t, task.ID)
		assert.Equal(t, domain.PriorityHigh, task.Priority)
		assert.Equal(t, domain.StatusTodo, task.Status)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskCreated, event.Type)
		change, err := event.UnmarshalChange()
		require.NoError(t, err)
		assert.Equal(t, task.ID, change.TaskID)
		assert.Equal(t, "alice", change.Actor)
		assert.Nil(t, change.Before)
		require.NotNil(t, change.After)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Create(ctx, CreateTaskInput{Title: "  "}, "alice")
		assert.ErrorIs(t, err, domain.ErrTaskTitleEmpty)
		assert.Empty(t, f.handler.events)
	})

	t.Run("store failure emits nothing", func(t *testing.T) {
		f := newFixture(t)
		f.taskStore.CreateErr = errors.New("insert failed")

		_, err := f.service.Create(ctx, CreateTaskInput{Title: "Task"}, "alice")
		assert.Error(t, err)
		assert.Empty(t, f.handler.events)
	})
}

func TestTaskServiceGet(t *testing.T) {
	ctx := context.Background()

	t.Run("cache miss populates cache", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Cached task")

		callsBefore := f.taskStore.GetCalls
		got, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, got.ID)
		assert.Equal(t, callsBefore+1, f.taskStore.GetCalls)

		// Second read is served from the cache.
		again, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, again.ID)
		assert.Equal(t, callsBefore+1, f.taskStore.GetCalls)
	})

	t.Run("missing task maps to sentinel", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Get(ctx, 999)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServiceUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("updates fields and invalidates cache", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Before title")

		// Warm the cache.
		_, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)

		updated, err := f.service.Update(ctx, seeded.ID, UpdateTaskInput{
			Title:       "After title",
			Description: "now with details",
		}, "bob")
		require.NoError(t, err)
		assert.Equal(t, "After title", updated.Title)

		// A read after the write must see the new state, never the stale
		// cached entry.
		got, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, "After title", got.Title)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskUpdated, event.Type)
		change, err := event.UnmarshalChange()
		require.NoError(t, err)
		require.NotNil(t, change.Before)
		require.NotNil(t, change.After)
		assert.Equal(t, "Before title", change.Before.Title)
		assert.Equal(t, "After title", change.After.Title)
	})

	t.Run("empty priority and status keep current values", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")
		_, err := f.service.Update(ctx, seeded.ID, UpdateTaskInput{
			Title:    "Task",
			Priority: domain.PriorityUrgent,
			Status:   domain.StatusInProgress,
		}, "bob")
		require.NoError(t, err)

		updated, err := f.service.Update(ctx, seeded.ID, UpdateTaskInput{Title: "Task renamed"}, "bob")
		require.NoError(t, err)
		assert.Equal(t, domain.PriorityUrgent, updated.Priority)
		assert.Equal(t, domain.StatusInProgress, updated.Status)
	})

	t.Run("status change maintains completed-at", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")

		completed, err := f.service.Update(ctx, seeded.ID, UpdateTaskInput{
			Title:  "Task",
			Status: domain.StatusCompleted,
		}, "bob")
		require.NoError(t, err)
		require.NotNil(t, completed.CompletedAt)

		reopened, err := f.service.Update(ctx, seeded.ID, UpdateTaskInput{
			Title:  "Task",
			Status: domain.StatusTodo,
		}, "bob")
		require.NoError(t, err)
		assert.Nil(t, reopened.CompletedAt)
	})

	t.Run("missing task maps to sentinel", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Update(ctx, 999, UpdateTaskInput{Title: "Task"}, "bob")
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Empty(t, f.handler.events)
	})
}

func TestTaskServiceComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("completes and stamps timestamp", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")

		task, err := f.service.Complete(ctx, seeded.ID, "alice")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, task.Status)
		require.NotNil(t, task.CompletedAt)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskCompleted, event.Type)
	})

	t.Run("idempotent with monotonic timestamp", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")

		first, err := f.service.Complete(ctx, seeded.ID, "alice")
		require.NoError(t, err)
		require.NotNil(t, first.CompletedAt)

		second, err := f.service.Complete(ctx, seeded.ID, "alice")
		require.NoError(t, err)
		require.NotNil(t, second.CompletedAt)
		assert.Equal(t, domain.StatusCompleted, second.Status)
		assert.False(t, second.CompletedAt.Before(*first.CompletedAt))
	})

	t.Run("missing task maps to sentinel", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Complete(ctx, 999, "alice")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServiceDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes and emits id with last known title", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Doomed task")

		require.NoError(t, f.service.Delete(ctx, seeded.ID, "alice"))

		_, err := f.service.Get(ctx, seeded.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskDeleted, event.Type)
		change, err := event.UnmarshalChange()
		require.NoError(t, err)
		assert.Equal(t, seeded.ID, change.TaskID)
		assert.Equal(t, "Doomed task", change.Title)
		assert.Nil(t, change.Before)
		assert.Nil(t, change.After)
	})

	t.Run("missing task emits nothing", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.Delete(ctx, 999, "alice")
		assert.ErrorIs(t, err, ErrTaskNotFound)
		assert.Empty(t, f.handler.events)
	})

	t.Run("deleted id no longer served from cache", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")

		// Warm the cache, then delete.
		_, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)
		require.NoError(t, f.service.Delete(ctx, seeded.ID, "alice"))

		_, err = f.service.Get(ctx, seeded.ID)
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServiceDuplicate(t *testing.T) {
	ctx := context.Background()

	t.Run("copies fields and resets lifecycle", func(t *testing.T) {
		f := newFixture(t)

		due := time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC)
		source, err := f.service.Create(ctx, CreateTaskInput{
			Title:    "Ship release",
			Priority: domain.PriorityHigh,
			DueDate:  &due,
			Notes:    "coordinate with ops",
		}, "alice")
		require.NoError(t, err)
		_, err = f.service.Complete(ctx, source.ID, "alice")
		require.NoError(t, err)
		f.handler.events = nil

		copy, err := f.service.Duplicate(ctx, source.ID, "alice")
		require.NoError(t, err)

		assert.NotEqual(t, source.ID, copy.ID)
		assert.Equal(t, "Ship release (Copy)", copy.Title)
		assert.Equal(t, domain.PriorityHigh, copy.Priority)
		assert.Equal(t, domain.StatusTodo, copy.Status)
		assert.Nil(t, copy.CompletedAt)
		assert.Equal(t, "coordinate with ops", copy.Notes)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskCreated, event.Type)
		change, err := event.UnmarshalChange()
		require.NoError(t, err)
		assert.Equal(t, copy.ID, change.TaskID)
	})

	t.Run("missing source maps to sentinel", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Duplicate(ctx, 999, "alice")
		assert.ErrorIs(t, err, ErrTaskNotFound)
	})
}

func TestTaskServiceBulkOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("bulk create skips invalid inputs", func(t *testing.T) {
		f := newFixture(t)

		created, err := f.service.BulkCreate(ctx, []CreateTaskInput{
			{Title: "First"},
			{Title: "   "},
			{Title: "Third"},
		}, "alice")
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "First", created[0].Title)
		assert.Equal(t, "Third", created[1].Title)
	})

	t.Run("bulk complete skips missing ids", func(t *testing.T) {
		f := newFixture(t)
		first := f.seed(t, "First")
		second := f.seed(t, "Second")

		result, err := f.service.BulkComplete(ctx, []int64{first.ID, second.ID, 999}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Requested)
		assert.Equal(t, 2, result.Applied)
		assert.Equal(t, []int64{first.ID, second.ID}, result.IDs)

		got, err := f.service.Get(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, got.Status)
	})

	t.Run("bulk update status preserves other fields", func(t *testing.T) {
		f := newFixture(t)
		seeded, err := f.service.Create(ctx, CreateTaskInput{
			Title:       "Detailed task",
			Description: "full description",
			Priority:    domain.PriorityUrgent,
			Notes:       "important notes",
		}, "alice")
		require.NoError(t, err)
		f.handler.events = nil

		result, err := f.service.BulkUpdateStatus(ctx, []int64{seeded.ID}, domain.StatusOnHold, "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, result.Applied)

		got, err := f.service.Get(ctx, seeded.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusOnHold, got.Status)
		assert.Equal(t, "Detailed task", got.Title)
		assert.Equal(t, "full description", got.Description)
		assert.Equal(t, domain.PriorityUrgent, got.Priority)
		assert.Equal(t, "important notes", got.Notes)

		event := f.lastEvent(t)
		assert.Equal(t, events.TypeTaskUpdated, event.Type)
	})

	t.Run("bulk update status rejects unknown status upfront", func(t *testing.T) {
		f := newFixture(t)
		seeded := f.seed(t, "Task")

		_, err := f.service.BulkUpdateStatus(ctx, []int64{seeded.ID}, domain.Status("ARCHIVED"), "alice")
		assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	})

	t.Run("bulk delete reports applied ids", func(t *testing.T) {
		f := newFixture(t)
		first := f.seed(t, "First")
		second := f.seed(t, "Second")

		result, err := f.service.BulkDelete(ctx, []int64{first.ID, 999, second.ID}, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, result.Requested)
		assert.Equal(t, 2, result.Applied)
		assert.Equal(t, []int64{first.ID, second.ID}, result.IDs)
	})

	t.Run("bulk aborts on non-missing error", func(t *testing.T) {
		f := newFixture(t)
		first := f.seed(t, "First")
		second := f.seed(t, "Second")

		f.taskStore.DeleteErr = errors.New("deadlock detected")
		result, err := f.service.BulkDelete(ctx, []int64{first.ID, second.ID}, "alice")
		require.Error(t, err)
		assert.Equal(t, 0, result.Applied)
	})
}

func TestTaskServiceAuditFailureIsolation(t *testing.T) {
	ctx := context.Background()

	// A handler that always fails must never fail the mutation.
	f := newFixture(t)
	f.handler.err = errors.New("subscriber exploded")

	task, err := f.service.Create(ctx, CreateTaskInput{Title: "Task"}, "alice")
	require.NoError(t, err)

	_, err = f.service.Complete(ctx, task.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, task.ID, "alice"))
	assert.Len(t, f.handler.events, 3)
}

func TestTaskServiceListSearchOverdue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	_, err := f.service.Create(ctx, CreateTaskInput{Title: "Pay invoices", DueDate: &yesterday}, "alice")
	require.NoError(t, err)
	_, err = f.service.Create(ctx, CreateTaskInput{Title: "Review code changes"}, "alice")
	require.NoError(t, err)
	_, err = f.service.Create(ctx, CreateTaskInput{Title: "Write documentation"}, "alice")
	require.NoError(t, err)

	t.Run("list pages", func(t *testing.T) {
		page, err := f.service.List(ctx, store.NewPageRequest(0, 2, store.SortByCreatedAt, false))
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, int64(2), page.TotalPages)
	})

	t.Run("search matches title", func(t *testing.T) {
		page, err := f.service.Search(ctx, "review", store.NewPageRequest(0, 10, "", true))
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Review code changes", page.Items[0].Title)
	})

	t.Run("overdue returns only past-due open tasks", func(t *testing.T) {
		tasks, err := f.service.Overdue(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "Pay invoices", tasks[0].Title)
	})
}

var _ store.TaskStore = (*mocks.MemoryTaskStore)(nil)
