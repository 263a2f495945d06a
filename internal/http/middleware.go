package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/ideal-pong/internal/game"
)

// Middleware defines the standard signature for an HTTP middleware.
type Middleware func(http.Handler) http.Handler

// Chain combines multiple middlewares into a single handler.
// The middlewares are applied in the order they are passed.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// contextKey is a custom type to avoid key collisions in context.
type contextKey string

const (
	dryRunKey contextKey = "dryRun"
	playerKey contextKey = "player"
)

const (
	headerPlayerID   = "X-Player-ID"
	headerPlayerName = "X-Player-Name"
)

// paramsMiddleware handles common query parameters like 'verbose' and 'dry_run'.
func paramsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Info("incoming request", "method", r.Method, "url", r.URL.String())
		// Handle 'verbose' for request-scoped verbose logging.
		if r.URL.Query().Get("verbose") == "true" {
			originalLevel := log.GetLevel()
			log.SetLevel(log.DebugLevel)
			defer log.SetLevel(originalLevel)
		}

		isDryRun := r.URL.Query().Get("dry_run") == "true"
		ctx := context.WithValue(r.Context(), dryRunKey, isDryRun)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// playerMiddleware requires the caller identity headers. The display name
// defaults to the id.
func playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerPlayerID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error: headerPlayerID + " header is required",
				Code:  "missing_identity",
			})
			return
		}
		name := strings.TrimSpace(r.Header.Get(headerPlayerName))
		if name == "" {
			name = id
		}
		ctx := context.WithValue(r.Context(), playerKey, game.Player{ID: id, Name: name})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isDryRunFromContext is a helper to safely retrieve the dry_run flag from the request context.
func isDryRunFromContext(r *http.Request) bool {
	dryRun, ok := r.Context().Value(dryRunKey).(bool)
	return ok && dryRun
}

func playerFromContext(r *http.Request) game.Player {
	p, _ := r.Context().Value(playerKey).(game.Player)
	return p
}
