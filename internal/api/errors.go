package api

import (
	"errors"
	"net/http"

	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/service"
	"github.com/taskvault/taskvault-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, store.ErrInvalidEntity),
		isEntityValidationError(err):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound),
		errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrAuditRecordNotFound):
		return "Audit record not found"

	case errors.Is(err, store.ErrNotFound):
		return "Resource not found"

	case errors.Is(err, store.ErrDuplicate):
		return "Resource already exists"

	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidID):
		// Validation errors name the offending field, which is safe to
		// surface to clients.
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			return validationErr.Error()
		}
		return "Invalid request data"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case isEntityValidationError(err):
		// Entity validation sentinels carry only field limits, safe to
		// surface verbatim.
		return unwrapEntityValidationError(err).Error()

	default:
		return "An unexpected error occurred"
	}
}

// entityValidationErrors are the task-level validation failures that map
// to a 400 response with their own message.
var entityValidationErrors = []error{
	domain.ErrTaskTitleEmpty,
	domain.ErrTaskTitleTooLong,
	domain.ErrTaskDescriptionTooLong,
	domain.ErrTaskNotesTooLong,
	domain.ErrInvalidPriority,
	domain.ErrInvalidStatus,
}

func isEntityValidationError(err error) bool {
	for _, target := range entityValidationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func unwrapEntityValidationError(err error) error {
	for _, target := range entityValidationErrors {
		if errors.Is(err, target) {
			return target
		}
	}
	return err
}
