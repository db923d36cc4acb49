package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/myjournalhq/myjournal-api/internal/api"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		AuthService: authService,
	}
}

// AttemptAuth handles POST /auth/attempt. On success the response is the
// attempt record with its freshly issued token; verification failures and
// incomplete input both come back as 400 with the error envelope.
func (h *AuthHandler) AttemptAuth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(
		slog.String("handler", "AttemptAuth"),
		slog.String("request_id", middleware.GetReqID(ctx)),
	)

	var req AttemptAuthRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid attempt request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	attempt, err := h.AuthService.Authenticate(ctx, req.Login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrBadRequest):
			l.InfoContext(ctx, "Authentication attempt rejected", slog.String("login", req.Login))
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		default:
			l.ErrorContext(ctx, "Authentication attempt failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	l.InfoContext(ctx, "Authentication attempt succeeded",
		slog.String("login", attempt.Login),
		slog.String("attempt_id", attempt.ID),
	)
	api.WriteJSONResponse(w, r, http.StatusOK, attempt)
}

// Signup handles POST /auth/signup. Success is an empty 202: the caller is
// expected to follow up with an attempt, and the response deliberately leaks
// nothing about the created account.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := h.logger.With(
		slog.String("handler", "Signup"),
		slog.String("request_id", middleware.GetReqID(ctx)),
	)

	var req SignupRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Invalid signup request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.Email == "" || req.NewPassword == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "ERR_INCOMPLETE: Missing Login or Password")
		return
	}

	user, err := h.AuthService.Register(ctx, req.Email, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrBadRequest):
			l.InfoContext(ctx, "Signup rejected", slog.String("login", req.Email))
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		default:
			l.ErrorContext(ctx, "Signup failed", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	l.InfoContext(ctx, "User registered", slog.String("user_id", user.ID))
	w.WriteHeader(http.StatusAccepted)
}
