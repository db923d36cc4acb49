package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/myjournalhq/myjournal-api/internal/api"
	"github.com/myjournalhq/myjournal-api/internal/api/auth"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

// RequireOwnership rejects any request whose URL path is not registered to
// the authenticated user. Unknown paths and other users' paths produce the
// same 403.
func RequireOwnership(registry RegistryService, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(
				slog.String("middleware", "RequireOwnership"),
				slog.String("request_id", middleware.GetReqID(ctx)),
			)

			ownerID := auth.GetUserID(ctx)
			if ownerID == "" {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Missing authorization key")
				return
			}

			if _, err := registry.VerifyOwnership(ctx, r.URL.Path, ownerID); err != nil {
				if errors.Is(err, types.ErrVerificationFailed) {
					api.ErrorResponse(w, r, http.StatusForbidden, "Forbidden")
					return
				}
				l.ErrorContext(ctx, "Ownership verification failed", slog.Any("error", err))
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
