package middleware

import (
	"net/http"
	"strings"

	"github.com/taskvault/taskvault-api/internal/api/shared"
	"github.com/taskvault/taskvault-api/internal/domain"
)

// ActorHeader carries the caller identity recorded against mutations.
const ActorHeader = "X-Actor"

// ActorMiddleware copies the caller identity from the X-Actor header into
// the request context. A missing or blank header falls back to the
// system actor so the audit trail never records an empty identity.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = domain.SystemActor
		}

		ctx := shared.SetActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
