// Package api provides HTTP handlers for the API.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/store"
)

// AuditReader exposes the read side of the audit trail to the API.
type AuditReader interface {
	History(ctx context.Context, taskID int64) ([]*domain.AuditRecord, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskService service.TaskService
	auditReader AuditReader
	logger      *slog.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(
	taskService service.TaskService,
	auditReader AuditReader,
	logger *slog.Logger,
) *TaskHandler {
	if taskService == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskService cannot be nil for TaskHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TaskHandler")
	}

	return &TaskHandler{
		taskService: taskService,
		auditReader: auditReader,
		logger:      logger.With(slog.String("component", "task_handler")),
		now:         time.Now,
	}
}

// Create handles POST /tasks requests.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	task, err := h.taskService.Create(r.Context(), createInputFromRequest(req), getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("task created", slog.Int64("task_id", task.ID))
	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task, h.now()))
}

// Get handles GET /tasks/{id} requests.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Get(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.now()))
}

// Update handles PUT /tasks/{id} requests.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format",
			slog.String("error", err.Error()),
			slog.Int64("task_id", id))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	input := service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		Status:      domain.Status(req.Status),
		DueDate:     req.DueDate,
		Notes:       req.Notes,
	}

	task, err := h.taskService.Update(r.Context(), id, input, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("task updated", slog.Int64("task_id", task.ID))
	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.now()))
}

// Complete handles POST /tasks/{id}/complete requests.
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Complete(r.Context(), id, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task, h.now()))
}

// Delete handles DELETE /tasks/{id} requests.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.taskService.Delete(r.Context(), id, getActor(r)); err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("task deleted", slog.Int64("task_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// Duplicate handles POST /tasks/{id}/duplicate requests.
func (h *TaskHandler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	task, err := h.taskService.Duplicate(r.Context(), id, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, taskToResponse(task, h.now()))
}

// History handles GET /tasks/{id}/history requests. The trail is
// returned newest first. A task with no recorded history yields an
// empty list, not an error.
func (h *TaskHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := handlePathID(w, r, "id")
	if !ok {
		return
	}

	if h.auditReader == nil {
		shared.RespondWithError(w, r, http.StatusNotFound, "Audit trail is not enabled")
		return
	}

	records, err := h.auditReader.History(r.Context(), id)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	responses := make([]AuditRecordResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, auditToResponse(record))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, responses)
}

// List handles GET /tasks requests with page, size, sort and order
// query parameters.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.taskService.List(r.Context(), parsePageRequest(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.pageToResponse(page))
}

// Search handles GET /tasks/search requests. The q parameter matches
// against title and description, case-insensitively.
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	if text == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Search text is required")
		return
	}

	page, err := h.taskService.Search(r.Context(), text, parsePageRequest(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.pageToResponse(page))
}

// Overdue handles GET /tasks/overdue requests.
func (h *TaskHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.taskService.Overdue(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponses(tasks, h.now()))
}

// BulkCreate handles POST /tasks/bulk requests.
func (h *TaskHandler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req BulkCreateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		log.Warn("invalid request format", slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	inputs := make([]service.CreateTaskInput, 0, len(req.Tasks))
	for _, taskReq := range req.Tasks {
		inputs = append(inputs, createInputFromRequest(taskReq))
	}

	tasks, err := h.taskService.BulkCreate(r.Context(), inputs, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	log.Debug("bulk create finished",
		slog.Int("requested", len(req.Tasks)),
		slog.Int("created", len(tasks)))
	shared.RespondWithJSON(w, r, http.StatusCreated, tasksToResponses(tasks, h.now()))
}

// BulkUpdateStatus handles POST /tasks/bulk/status requests.
func (h *TaskHandler) BulkUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	result, err := h.taskService.BulkUpdateStatus(
		r.Context(),
		req.IDs,
		domain.Status(req.Status),
		getActor(r),
	)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bulkResultToResponse(result))
}

// BulkComplete handles POST /tasks/bulk/complete requests.
func (h *TaskHandler) BulkComplete(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	result, err := h.taskService.BulkComplete(r.Context(), req.IDs, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bulkResultToResponse(result))
}

// BulkDelete handles POST /tasks/bulk/delete requests.
func (h *TaskHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkIDsRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request data")
		return
	}

	result, err := h.taskService.BulkDelete(r.Context(), req.IDs, getActor(r))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, bulkResultToResponse(result))
}

// createInputFromRequest maps the request DTO onto the service input.
func createInputFromRequest(req CreateTaskRequest) service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.Priority(req.Priority),
		Status:      domain.Status(req.Status),
		DueDate:     req.DueDate,
		Notes:       req.Notes,
	}
}

// bulkResultToResponse maps the service bulk result onto the response DTO.
func bulkResultToResponse(result *service.BulkResult) BulkResultResponse {
	ids := result.IDs
	if ids == nil {
		ids = []int64{}
	}
	return BulkResultResponse{
		Requested: result.Requested,
		Applied:   result.Applied,
		IDs:       ids,
	}
}

// pageToResponse maps a store page onto the response DTO.
func (h *TaskHandler) pageToResponse(page *store.TaskPage) TaskPageResponse {
	return TaskPageResponse{
		Items:      tasksToResponses(page.Items, h.now()),
		Total:      page.Total,
		Page:       page.Page,
		Size:       page.Size,
		TotalPages: page.TotalPages,
	}
}
