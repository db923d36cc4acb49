package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	gocache "github.com/patrickmn/go-cache"

	"github.com/myjournalhq/myjournal-api/internal/api"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

type contextKey string

const UserIDKey contextKey = "userID"
const UserLoginKey contextKey = "userLogin"

// GetUserID returns the authenticated user id placed on the context by
// Authenticate, or "" when the request never passed through it.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func GetUserLogin(ctx context.Context) string {
	login, _ := ctx.Value(UserLoginKey).(string)
	return login
}

type cachedToken struct {
	token *types.Token
	user  *types.User
}

// Authenticate validates the bearer key carried in the Authorization header.
// The header value is the raw key, no scheme prefix. Resolved keys are kept
// in a short-lived cache so repeated requests with the same key skip the
// store; expiry is still checked per request against the cached row.
func Authenticate(repo AuthRepo, logger *slog.Logger) func(next http.Handler) http.Handler {
	cache := gocache.New(1*time.Minute, 5*time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(
				slog.String("middleware", "Authenticate"),
				slog.String("request_id", middleware.GetReqID(ctx)),
			)

			key := r.Header.Get("Authorization")
			if key == "" {
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Missing authorization key")
				return
			}

			var token *types.Token
			var user *types.User
			if entry, ok := cache.Get(key); ok {
				ct := entry.(cachedToken)
				token, user = ct.token, ct.user
			} else {
				var err error
				token, user, err = repo.GetTokenByKey(ctx, key)
				if err != nil {
					if errors.Is(err, types.ErrNotFound) {
						api.ErrorResponse(w, r, http.StatusForbidden, "Invalid authorization key")
						return
					}
					l.ErrorContext(ctx, "Token lookup failed", slog.Any("error", err))
					api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
					return
				}
				cache.Set(key, cachedToken{token: token, user: user}, gocache.DefaultExpiration)
			}

			if token.Expiry > 0 && time.Now().Unix() > token.Created+token.Expiry {
				api.ErrorResponse(w, r, http.StatusForbidden, "Expired authorization key")
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, user.ID)
			ctx = context.WithValue(ctx, UserLoginKey, user.Login)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
