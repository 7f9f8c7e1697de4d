package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
	"github.com/taskvault/taskvault-api/internal/store"
)

// getPathID extracts a numeric ID from the URL path parameters.
// It parses and validates the ID, handling common error cases.
func getPathID(r *http.Request, paramName string) (int64, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return 0, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := strconv.ParseInt(pathParam, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(paramName, "must be a positive integer", domain.ErrInvalidID)
	}

	return id, nil
}

// handlePathID extracts a numeric ID from the path and writes a 400
// response on failure.
//
// Returns:
//   - (id, true): The parsed ID if valid
//   - (0, false): If extraction failed and an error response was written
func handlePathID(w http.ResponseWriter, r *http.Request, paramName string) (int64, bool) {
	id, err := getPathID(r, paramName)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(err))
		return 0, false
	}
	return id, true
}

// getActor returns the acting identity placed in the context by the
// actor middleware, falling back to the system actor.
func getActor(r *http.Request) string {
	actor := shared.GetActor(r.Context())
	if actor == "" {
		return domain.SystemActor
	}
	return actor
}

// parsePageRequest builds a PageRequest from the standard query
// parameters: page, size, sort, order. Out-of-range values are clamped
// and unknown sort fields fall back to the default.
func parsePageRequest(r *http.Request) store.PageRequest {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	size, _ := strconv.Atoi(query.Get("size"))
	sort := store.SortField(query.Get("sort"))
	descending := query.Get("order") != "asc"

	return store.NewPageRequest(page, size, sort, descending)
}
