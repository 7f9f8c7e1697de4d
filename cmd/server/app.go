package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/taskvault/taskvault-api/internal/analytics"
	"github.com/taskvault/taskvault-api/internal/audit"
	"github.com/taskvault/taskvault-api/internal/cache"
	"github.com/taskvault/taskvault-api/internal/config"
	"github.com/taskvault/taskvault-api/internal/events"
	"github.com/taskvault/taskvault-api/internal/platform/postgres"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/store"
	"github.com/taskvault/taskvault-api/internal/suggest"
)

// application holds the wired dependencies of the running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	taskStore  store.TaskStore
	auditStore store.AuditStore

	taskCache *cache.TaskCache
	emitter   *events.InMemoryEventEmitter

	taskService      service.TaskService
	auditRecorder    *audit.Recorder
	suggestIndex     *suggest.Index
	analyticsService *analytics.Service
}

// newApplication wires every component of the server: the stores on
// top of the database handle, the cache, the event bus with its audit
// and suggestion subscribers, and the mutation pipeline that feeds
// them all.
func newApplication(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*application, error) {
	taskStore := postgres.NewPostgresTaskStore(db, logger)
	auditStore := postgres.NewPostgresAuditStore(db, logger)

	taskCache := cache.New(cache.Options{
		MaxEntries: cfg.Cache.MaxEntries,
		MaxAge:     cfg.Cache.MaxAge,
		MaxIdle:    cfg.Cache.MaxIdle,
	})

	emitter := events.NewInMemoryEventEmitter(logger)

	// The audit trail and the suggestion index both observe the
	// mutation stream. Their failures never surface to callers.
	auditRecorder := audit.NewRecorder(auditStore, logger)
	emitter.RegisterHandler(auditRecorder)

	suggestIndex := suggest.NewIndex(taskStore, cfg.Suggest.CacheTTL, logger)
	emitter.RegisterHandler(suggestIndex)

	taskService, err := service.NewTaskService(taskStore, taskCache, emitter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	analyticsService := analytics.NewService(taskStore, auditStore, logger)

	return &application{
		config:           cfg,
		logger:           logger,
		taskStore:        taskStore,
		auditStore:       auditStore,
		taskCache:        taskCache,
		emitter:          emitter,
		taskService:      taskService,
		auditRecorder:    auditRecorder,
		suggestIndex:     suggestIndex,
		analyticsService: analyticsService,
	}, nil
}
