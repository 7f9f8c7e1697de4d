package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apiMiddleware "github.com/taskvault/taskvault-api/internal/api/middleware"
	"github.com/taskvault/taskvault-api/internal/audit"
	"github.com/taskvault/taskvault-api/internal/cache"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/mocks"
	"github.com/taskvault/taskvault-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type handlerFixture struct {
	router     http.Handler
	taskStore  *mocks.MemoryTaskStore
	auditStore *mocks.MemoryAuditStore
}

// newHandlerFixture wires the full request path: router, middleware,
// handler, service, cache, event bus and audit recorder over in-memory
// stores.
func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	taskStore := mocks.NewMemoryTaskStore()
	auditStore := mocks.NewMemoryAuditStore()
	taskCache := cache.New(cache.DefaultOptions())
	emitter := events.NewInMemoryEventEmitter(testLogger())

	recorder := audit.NewRecorder(auditStore, testLogger())
	emitter.RegisterHandler(recorder)

	svc, err := service.NewTaskService(taskStore, taskCache, emitter, testLogger())
	require.NoError(t, err)

	handler := NewTaskHandler(svc, recorder, testLogger())

	r := chi.NewRouter()
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.ActorMiddleware)
	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Get("/search", handler.Search)
		r.Get("/overdue", handler.Overdue)
		r.Post("/bulk", handler.BulkCreate)
		r.Post("/bulk/status", handler.BulkUpdateStatus)
		r.Post("/bulk/complete", handler.BulkComplete)
		r.Post("/bulk/delete", handler.BulkDelete)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handler.Get)
			r.Put("/", handler.Update)
			r.Delete("/", handler.Delete)
			r.Post("/complete", handler.Complete)
			r.Post("/duplicate", handler.Duplicate)
			r.Get("/history", handler.History)
		})
	})

	return &handlerFixture{router: r, taskStore: taskStore, auditStore: auditStore}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *handlerFixture) createTask(t *testing.T, title string) TaskResponse {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: title}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	return created
}

func TestTaskHandlerCreate(t *testing.T) {
	t.Run("creates task", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{
			Title:    "Write report",
			Priority: "HIGH",
		}, map[string]string{"X-Actor": "alice"})

		require.Equal(t, http.StatusCreated, rec.Code)
		var created TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotZero(t, created.ID)
		assert.Equal(t, "HIGH", created.Priority)
		assert.Equal(t, "TODO", created.Status)

		// The mutation is audited with the header actor.
		records := f.auditStore.All()
		require.Len(t, records, 1)
		assert.Equal(t, "alice", records[0].ChangedBy)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		f := newHandlerFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader([]byte("{broken")))
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects missing title", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: ""}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{
			Title:    "Task",
			Priority: "CRITICAL",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandlerGet(t *testing.T) {
	f := newHandlerFixture(t)
	created := f.createTask(t, "Task")

	t.Run("returns task", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var got TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("missing id returns 404", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks/999", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var errResp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
		assert.Equal(t, "Task not found", errResp["error"])
		assert.NotEmpty(t, errResp["trace_id"])
	})

	t.Run("non-numeric id returns 400", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks/abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTaskHandlerUpdate(t *testing.T) {
	f := newHandlerFixture(t)
	created := f.createTask(t, "Before")

	rec := f.do(t, http.MethodPut, fmt.Sprintf("/api/tasks/%d", created.ID), UpdateTaskRequest{
		Title:  "After",
		Status: "IN_PROGRESS",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, "IN_PROGRESS", updated.Status)

	rec = f.do(t, http.MethodPut, "/api/tasks/999", UpdateTaskRequest{Title: "Task"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandlerCompleteAndDelete(t *testing.T) {
	f := newHandlerFixture(t)
	created := f.createTask(t, "Task")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var completed TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completed))
	assert.Equal(t, "COMPLETED", completed.Status)
	assert.NotNil(t, completed.CompletedAt)

	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Deleting again is a 404, not an error.
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandlerDuplicate(t *testing.T) {
	f := newHandlerFixture(t)
	created := f.createTask(t, "Ship release")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/duplicate", created.ID), nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var copy TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &copy))
	assert.Equal(t, "Ship release (Copy)", copy.Title)
	assert.Equal(t, "TODO", copy.Status)
	assert.NotEqual(t, created.ID, copy.ID)
}

func TestTaskHandlerHistory(t *testing.T) {
	f := newHandlerFixture(t)
	created := f.createTask(t, "Task")

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/tasks/%d/complete", created.ID), nil,
		map[string]string{"X-Actor": "bob"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d/history", created.ID), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []AuditRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)

	// Newest first: completion before creation.
	assert.Equal(t, "COMPLETED", history[0].Action)
	assert.Equal(t, "bob", history[0].ChangedBy)
	assert.Equal(t, "CREATED", history[1].Action)
	assert.Equal(t, "system", history[1].ChangedBy)

	// A task with no trail yields an empty list.
	rec = f.do(t, http.MethodGet, "/api/tasks/999/history", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty []AuditRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty)
}

func TestTaskHandlerListSearchOverdue(t *testing.T) {
	f := newHandlerFixture(t)
	f.createTask(t, "Review code changes")
	f.createTask(t, "Write documentation")

	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{
		Title:   "Pay invoices",
		DueDate: &yesterday,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("list", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks?page=0&size=2", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var page TaskPageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(3), page.Total)
		assert.Equal(t, int64(2), page.TotalPages)
	})

	t.Run("search", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks/search?q=review", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var page TaskPageResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		require.Len(t, page.Items, 1)
		assert.Equal(t, "Review code changes", page.Items[0].Title)
	})

	t.Run("search without text is rejected", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks/search", nil, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("overdue", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/tasks/overdue", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var tasks []TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
		require.Len(t, tasks, 1)
		assert.Equal(t, "Pay invoices", tasks[0].Title)
		assert.True(t, tasks[0].Overdue)
	})
}

func TestTaskHandlerBulk(t *testing.T) {
	t.Run("bulk create", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk", BulkCreateRequest{
			Tasks: []CreateTaskRequest{{Title: "First"}, {Title: "Second"}},
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		var created []TaskResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Len(t, created, 2)
	})

	t.Run("bulk create rejects empty list", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk", BulkCreateRequest{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bulk complete skips missing ids", func(t *testing.T) {
		f := newHandlerFixture(t)
		first := f.createTask(t, "First")
		second := f.createTask(t, "Second")

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk/complete", BulkIDsRequest{
			IDs: []int64{first.ID, second.ID, 999},
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var result BulkResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 3, result.Requested)
		assert.Equal(t, 2, result.Applied)
		assert.Equal(t, []int64{first.ID, second.ID}, result.IDs)
	})

	t.Run("bulk status update", func(t *testing.T) {
		f := newHandlerFixture(t)
		created := f.createTask(t, "Task")

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk/status", BulkStatusRequest{
			IDs:    []int64{created.ID},
			Status: "ON_HOLD",
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		got := f.do(t, http.MethodGet, fmt.Sprintf("/api/tasks/%d", created.ID), nil, nil)
		var task TaskResponse
		require.NoError(t, json.Unmarshal(got.Body.Bytes(), &task))
		assert.Equal(t, "ON_HOLD", task.Status)
	})

	t.Run("bulk status rejects unknown status", func(t *testing.T) {
		f := newHandlerFixture(t)

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk/status", BulkStatusRequest{
			IDs:    []int64{1},
			Status: "ARCHIVED",
		}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bulk delete", func(t *testing.T) {
		f := newHandlerFixture(t)
		first := f.createTask(t, "First")

		rec := f.do(t, http.MethodPost, "/api/tasks/bulk/delete", BulkIDsRequest{
			IDs: []int64{first.ID, 999},
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var result BulkResultResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.Applied)
	})
}

// auditFailureIsolation: a broken audit store must never fail the
// mutation endpoints.
func TestTaskHandlerAuditFailureIsolation(t *testing.T) {
	f := newHandlerFixture(t)
	f.auditStore.CreateErr = context.DeadlineExceeded

	rec := f.do(t, http.MethodPost, "/api/tasks", CreateTaskRequest{Title: "Task"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, f.auditStore.All())
}
