package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/taskvault/taskvault-api/internal/cache"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// CreateTaskInput carries the validated fields for a new task. Input
// validation (length limits, content filtering) happens at the HTTP
// boundary before the pipeline is invoked.
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    domain.Priority
	Status      domain.Status
	DueDate     *time.Time
	Notes       string
}

// UpdateTaskInput carries the replacement fields for an existing task.
// An empty Priority or Status leaves the current value in place; a nil
// DueDate clears the due date.
type UpdateTaskInput struct {
	Title       string
	Description string
	Priority    domain.Priority
	Status      domain.Status
	DueDate     *time.Time
	Notes       string
}

// BulkResult reports the outcome of a bulk operation: how many ids were
// requested and which of them the operation was applied to. Missing ids
// are skipped, never fatal.
type BulkResult struct {
	Requested int
	Applied   int
	IDs       []int64
}

// TaskService provides the task mutation pipeline and cached reads.
type TaskService interface {
	// Create persists a new task and publishes a created event.
	Create(ctx context.Context, input CreateTaskInput, actor string) (*domain.Task, error)

	// Get retrieves a task by id, serving from the cache when possible
	// and populating it on a miss. Returns ErrTaskNotFound if absent.
	Get(ctx context.Context, id int64) (*domain.Task, error)

	// Update overwrites the mutable fields of the task at id.
	// Returns ErrTaskNotFound if absent.
	Update(ctx context.Context, id int64, input UpdateTaskInput, actor string) (*domain.Task, error)

	// Complete marks the task COMPLETED, stamping completed-at with the
	// current time regardless of prior status. Idempotent: completing an
	// already-completed task refreshes the timestamp.
	Complete(ctx context.Context, id int64, actor string) (*domain.Task, error)

	// Delete removes the task at id. Returns ErrTaskNotFound if absent.
	Delete(ctx context.Context, id int64, actor string) error

	// Duplicate creates a copy of the task at id with title suffixed
	// " (Copy)", reset to TODO with no completion timestamp.
	Duplicate(ctx context.Context, id int64, actor string) (*domain.Task, error)

	// BulkCreate creates one task per input, in order. Inputs that fail
	// are skipped; the returned slice holds the tasks actually created.
	BulkCreate(ctx context.Context, inputs []CreateTaskInput, actor string) ([]*domain.Task, error)

	// BulkUpdateStatus sets the status of each listed task, in input
	// order. Missing ids are skipped and the batch continues.
	BulkUpdateStatus(
		ctx context.Context,
		ids []int64,
		status domain.Status,
		actor string,
	) (*BulkResult, error)

	// BulkComplete completes each listed task, in input order.
	BulkComplete(ctx context.Context, ids []int64, actor string) (*BulkResult, error)

	// BulkDelete deletes each listed task, in input order.
	BulkDelete(ctx context.Context, ids []int64, actor string) (*BulkResult, error)

	// List returns one page of tasks.
	List(ctx context.Context, req store.PageRequest) (*store.TaskPage, error)

	// Search returns one page of tasks matching the text.
	Search(ctx context.Context, text string, req store.PageRequest) (*store.TaskPage, error)

	// Overdue returns all currently overdue tasks.
	Overdue(ctx context.Context) ([]*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface
type taskServiceImpl struct {
	taskStore store.TaskStore
	taskCache *cache.TaskCache
	emitter   events.EventEmitter
	logger    *slog.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
func NewTaskService(
	taskStore store.TaskStore,
	taskCache *cache.TaskCache,
	emitter events.EventEmitter,
	logger *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, domain.NewValidationError("taskStore", "cannot be nil", domain.ErrValidation)
	}
	if taskCache == nil {
		return nil, domain.NewValidationError("taskCache", "cannot be nil", domain.ErrValidation)
	}
	if emitter == nil {
		return nil, domain.NewValidationError("emitter", "cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskStore: taskStore,
		taskCache: taskCache,
		emitter:   emitter,
		logger:    logger.With(slog.String("component", "task_service")),
		now:       time.Now,
	}, nil
}

// Create implements TaskService.Create
// The cache is never consulted: a freshly assigned id cannot be cached.
func (s *taskServiceImpl) Create(
	ctx context.Context,
	input CreateTaskInput,
	actor string,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := domain.NewTask(
		input.Title,
		input.Description,
		input.Priority,
		input.Status,
		input.DueDate,
		input.Notes,
	)
	if err != nil {
		return nil, NewTaskServiceError("create_task", "invalid task data", err)
	}

	if err := s.taskStore.Create(ctx, task); err != nil {
		log.Error("failed to create task",
			slog.String("title", input.Title),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("create_task", "failed to save task", err)
	}

	s.emit(ctx, events.TypeTaskCreated, events.TaskChange{
		TaskID: task.ID,
		Title:  task.Title,
		Actor:  actor,
		After:  task.Clone(),
	})

	log.Debug("created task",
		slog.Int64("task_id", task.ID),
		slog.String("title", task.Title))
	return task, nil
}

// Get implements TaskService.Get using the cache-aside pattern: check the
// cache, fall back to the store on a miss, then populate the cache.
func (s *taskServiceImpl) Get(ctx context.Context, id int64) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if task, ok := s.taskCache.Get(id); ok {
		log.Debug("task cache hit", slog.Int64("task_id", id))
		return task, nil
	}

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("get_task", "failed to retrieve task", err)
	}

	s.taskCache.Put(task)
	log.Debug("task cache populated", slog.Int64("task_id", id))
	return task, nil
}

// Update implements TaskService.Update
// The write path is store write, then unconditional cache invalidation
// for the id, then event emission. Eviction happens even when no visible
// field changed.
func (s *taskServiceImpl) Update(
	ctx context.Context,
	id int64,
	input UpdateTaskInput,
	actor string,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("update_task", "task lookup failed", err)
	}
	before := task.Clone()

	task.Title = input.Title
	task.Description = input.Description
	task.DueDate = input.DueDate
	task.Notes = input.Notes
	if input.Priority != "" {
		task.Priority = input.Priority
	}
	if input.Status != "" && input.Status != task.Status {
		if err := task.SetStatus(input.Status, s.now()); err != nil {
			return nil, NewTaskServiceError("update_task", "invalid status", err)
		}
	}

	if err := s.taskStore.Update(ctx, task); err != nil {
		log.Error("failed to update task",
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("update_task", "failed to save task", err)
	}

	s.taskCache.Invalidate(id)

	s.emit(ctx, events.TypeTaskUpdated, events.TaskChange{
		TaskID: task.ID,
		Title:  task.Title,
		Actor:  actor,
		Before: before,
		After:  task.Clone(),
	})

	log.Debug("updated task", slog.Int64("task_id", id))
	return task, nil
}

// Complete implements TaskService.Complete
func (s *taskServiceImpl) Complete(
	ctx context.Context,
	id int64,
	actor string,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("complete_task", "task lookup failed", err)
	}
	before := task.Clone()

	task.MarkCompleted(s.now())

	if err := s.taskStore.Update(ctx, task); err != nil {
		log.Error("failed to complete task",
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("complete_task", "failed to save task", err)
	}

	s.taskCache.Invalidate(id)

	s.emit(ctx, events.TypeTaskCompleted, events.TaskChange{
		TaskID: task.ID,
		Title:  task.Title,
		Actor:  actor,
		Before: before,
		After:  task.Clone(),
	})

	log.Debug("completed task", slog.Int64("task_id", id))
	return task, nil
}

// Delete implements TaskService.Delete
// The deleted event carries only the id and last known title: the row is
// gone by the time any observer sees it.
func (s *taskServiceImpl) Delete(ctx context.Context, id int64, actor string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return NewTaskServiceError("delete_task", "task lookup failed", err)
	}

	if err := s.taskStore.Delete(ctx, id); err != nil {
		log.Error("failed to delete task",
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return NewTaskServiceError("delete_task", "failed to delete task", err)
	}

	s.taskCache.Invalidate(id)

	s.emit(ctx, events.TypeTaskDeleted, events.TaskChange{
		TaskID: id,
		Title:  task.Title,
		Actor:  actor,
	})

	log.Debug("deleted task", slog.Int64("task_id", id))
	return nil
}

// Duplicate implements TaskService.Duplicate
func (s *taskServiceImpl) Duplicate(
	ctx context.Context,
	id int64,
	actor string,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	source, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return nil, NewTaskServiceError("duplicate_task", "source lookup failed", err)
	}

	copy := source.Duplicate()
	if err := s.taskStore.Create(ctx, copy); err != nil {
		log.Error("failed to create duplicate task",
			slog.Int64("source_task_id", id),
			slog.String("error", err.Error()))
		return nil, NewTaskServiceError("duplicate_task", "failed to save copy", err)
	}

	s.emit(ctx, events.TypeTaskCreated, events.TaskChange{
		TaskID: copy.ID,
		Title:  copy.Title,
		Actor:  actor,
		After:  copy.Clone(),
	})

	log.Debug("duplicated task",
		slog.Int64("source_task_id", id),
		slog.Int64("task_id", copy.ID))
	return copy, nil
}

// BulkCreate implements TaskService.BulkCreate
func (s *taskServiceImpl) BulkCreate(
	ctx context.Context,
	inputs []CreateTaskInput,
	actor string,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	created := make([]*domain.Task, 0, len(inputs))
	for i, input := range inputs {
		task, err := s.Create(ctx, input, actor)
		if err != nil {
			log.Warn("skipping failed bulk create item",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			continue
		}
		created = append(created, task)
	}

	log.Debug("bulk create finished",
		slog.Int("requested", len(inputs)),
		slog.Int("created", len(created)))
	return created, nil
}

// BulkUpdateStatus implements TaskService.BulkUpdateStatus
// Each id is processed independently: no lock or transaction spans the
// batch, and a missing id is skipped without failing the rest.
func (s *taskServiceImpl) BulkUpdateStatus(
	ctx context.Context,
	ids []int64,
	status domain.Status,
	actor string,
) (*BulkResult, error) {
	if !status.IsValid() {
		return nil, NewTaskServiceError(
			"bulk_update_status",
			"invalid status",
			fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status),
		)
	}

	return s.bulkApply(ctx, "bulk_update_status", ids, func(ctx context.Context, id int64) error {
		return s.setStatus(ctx, id, status, actor)
	})
}

// BulkComplete implements TaskService.BulkComplete
func (s *taskServiceImpl) BulkComplete(
	ctx context.Context,
	ids []int64,
	actor string,
) (*BulkResult, error) {
	return s.bulkApply(ctx, "bulk_complete", ids, func(ctx context.Context, id int64) error {
		_, err := s.Complete(ctx, id, actor)
		return err
	})
}

// BulkDelete implements TaskService.BulkDelete
func (s *taskServiceImpl) BulkDelete(
	ctx context.Context,
	ids []int64,
	actor string,
) (*BulkResult, error) {
	return s.bulkApply(ctx, "bulk_delete", ids, func(ctx context.Context, id int64) error {
		return s.Delete(ctx, id, actor)
	})
}

// setStatus transitions one task's status, leaving every other field
// untouched. Follows the standard write path: store write, cache
// invalidation, event emission.
func (s *taskServiceImpl) setStatus(
	ctx context.Context,
	id int64,
	status domain.Status,
	actor string,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	task, err := s.taskStore.GetByID(ctx, id)
	if err != nil {
		return NewTaskServiceError("set_status", "task lookup failed", err)
	}
	before := task.Clone()

	if task.Status != status {
		if err := task.SetStatus(status, s.now()); err != nil {
			return NewTaskServiceError("set_status", "invalid status", err)
		}
	}

	if err := s.taskStore.Update(ctx, task); err != nil {
		log.Error("failed to update task status",
			slog.Int64("task_id", id),
			slog.String("error", err.Error()))
		return NewTaskServiceError("set_status", "failed to save task", err)
	}

	s.taskCache.Invalidate(id)

	s.emit(ctx, events.TypeTaskUpdated, events.TaskChange{
		TaskID: task.ID,
		Title:  task.Title,
		Actor:  actor,
		Before: before,
		After:  task.Clone(),
	})
	return nil
}

// List implements TaskService.List
func (s *taskServiceImpl) List(
	ctx context.Context,
	req store.PageRequest,
) (*store.TaskPage, error) {
	page, err := s.taskStore.List(ctx, req)
	if err != nil {
		return nil, NewTaskServiceError("list_tasks", "failed to list tasks", err)
	}
	return page, nil
}

// Search implements TaskService.Search
func (s *taskServiceImpl) Search(
	ctx context.Context,
	text string,
	req store.PageRequest,
) (*store.TaskPage, error) {
	page, err := s.taskStore.Search(ctx, text, req)
	if err != nil {
		return nil, NewTaskServiceError("search_tasks", "failed to search tasks", err)
	}
	return page, nil
}

// Overdue implements TaskService.Overdue
func (s *taskServiceImpl) Overdue(ctx context.Context) ([]*domain.Task, error) {
	tasks, err := s.taskStore.FindOverdue(ctx, s.now())
	if err != nil {
		return nil, NewTaskServiceError("overdue_tasks", "failed to find overdue tasks", err)
	}
	return tasks, nil
}

// bulkApply runs the per-id operation over ids in input order. A
// not-found id is skipped and the batch continues; any other error stops
// the batch and is returned alongside the partial result.
func (s *taskServiceImpl) bulkApply(
	ctx context.Context,
	operation string,
	ids []int64,
	apply func(ctx context.Context, id int64) error,
) (*BulkResult, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result := &BulkResult{
		Requested: len(ids),
		IDs:       make([]int64, 0, len(ids)),
	}

	for _, id := range ids {
		err := apply(ctx, id)
		if err != nil {
			if errors.Is(err, ErrTaskNotFound) {
				log.Debug("skipping missing task in bulk operation",
					slog.String("operation", operation),
					slog.Int64("task_id", id))
				continue
			}
			return result, NewTaskServiceError(operation, "bulk operation aborted", err)
		}
		result.Applied++
		result.IDs = append(result.IDs, id)
	}

	log.Debug("bulk operation finished",
		slog.String("operation", operation),
		slog.Int("requested", result.Requested),
		slog.Int("applied", result.Applied))
	return result, nil
}

// emit publishes a mutation event. Emission failures are logged and
// dropped: observers are best effort and must never affect the caller of
// a successful mutation.
func (s *taskServiceImpl) emit(ctx context.Context, eventType events.EventType, change events.TaskChange) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	event, err := events.NewTaskEvent(eventType, change)
	if err != nil {
		log.Error("failed to build task event",
			slog.String("event_type", string(eventType)),
			slog.Int64("task_id", change.TaskID),
			slog.String("error", err.Error()))
		return
	}

	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		log.Error("task event delivery reported failure",
			slog.String("event_type", string(eventType)),
			slog.Int64("task_id", change.TaskID),
			slog.String("error", err.Error()))
	}
}
