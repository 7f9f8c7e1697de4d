package api

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/store"
)

// exportColumns is the CSV header row, matching the task fields in
// storage order.
var exportColumns = []string{
	"id", "title", "description", "priority", "status",
	"due_date", "completed_at", "notes", "created_at", "updated_at",
}

// ExportHandler streams the full task list as CSV or JSON.
type ExportHandler struct {
	taskStore store.TaskStore
	logger    *slog.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(taskStore store.TaskStore, logger *slog.Logger) *ExportHandler {
	if taskStore == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("taskStore cannot be nil for ExportHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for ExportHandler")
	}

	return &ExportHandler{
		taskStore: taskStore,
		logger:    logger.With(slog.String("component", "export_handler")),
		now:       time.Now,
	}
}

// Export handles GET /tasks/export requests. The format query parameter
// selects csv (the default) or json.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "json" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unsupported export format")
		return
	}

	tasks, err := h.taskStore.ListAll(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), "Failed to export tasks", err)
		return
	}

	log.Debug("exporting tasks",
		slog.String("format", format),
		slog.Int("count", len(tasks)))

	switch format {
	case "json":
		w.Header().Set("Content-Disposition", `attachment; filename="tasks.json"`)
		shared.RespondWithJSON(w, r, http.StatusOK, tasksToResponses(tasks, h.now()))
	case "csv":
		h.writeCSV(w, tasks)
	}
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, tasks []*domain.Task) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="tasks.csv"`)
	w.WriteHeader(http.StatusOK)

	writer := csv.NewWriter(w)
	if err := writer.Write(exportColumns); err != nil {
		h.logger.Error("failed to write CSV header", slog.String("error", err.Error()))
		return
	}

	for _, task := range tasks {
		row := []string{
			strconv.FormatInt(task.ID, 10),
			task.Title,
			task.Description,
			string(task.Priority),
			string(task.Status),
			formatTime(task.DueDate),
			formatTime(task.CompletedAt),
			task.Notes,
			task.CreatedAt.Format(time.RFC3339),
			task.UpdatedAt.Format(time.RFC3339),
		}
		if err := writer.Write(row); err != nil {
			h.logger.Error("failed to write CSV row",
				slog.Int64("task_id", task.ID),
				slog.String("error", err.Error()))
			return
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Error("failed to flush CSV output", slog.String("error", err.Error()))
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
