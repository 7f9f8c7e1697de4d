package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/platform/logger"
	"github.com/taskvault/taskvault-api/internal/suggest"
)

// SuggestResponse wraps the suggestions for one input title.
type SuggestResponse struct {
	Input       string              `json:"input"`
	Suggestions []suggest.Candidate `json:"suggestions"`
}

// SuggestHandler handles task suggestion HTTP requests.
type SuggestHandler struct {
	index  *suggest.Index
	logger *slog.Logger
}

// NewSuggestHandler creates a new SuggestHandler.
func NewSuggestHandler(index *suggest.Index, logger *slog.Logger) *SuggestHandler {
	if index == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("index cannot be nil for SuggestHandler")
	}
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for SuggestHandler")
	}

	return &SuggestHandler{
		index:  index,
		logger: logger.With(slog.String("component", "suggest_handler")),
	}
}

// Suggest handles GET /suggestions requests. The title query parameter
// seeds the similarity scan; a blank title yields the default
// suggestions rather than an error.
func (h *SuggestHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	title := strings.TrimSpace(r.URL.Query().Get("title"))
	candidates := h.index.Suggest(r.Context(), title)

	log.Debug("suggestions computed",
		slog.String("title", title),
		slog.Int("count", len(candidates)))

	shared.RespondWithJSON(w, r, http.StatusOK, SuggestResponse{
		Input:       title,
		Suggestions: candidates,
	})
}
