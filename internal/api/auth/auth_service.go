package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/crypto/bcrypt"

	"github.com/myjournalhq/myjournal-api/app/observability/metrics"
	"github.com/myjournalhq/myjournal-api/config"
	"github.com/myjournalhq/myjournal-api/internal/events"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthService is the authentication engine consumed by the route layer.
type AuthService interface {
	// Verify checks a login/password pair against the credential store.
	// Unknown logins and wrong passwords are indistinguishable to the
	// caller; both fail with types.ErrInvalidCredentials.
	Verify(ctx context.Context, login, password string) (*types.User, error)

	// Authenticate runs one full attempt: validate input, verify
	// credentials, issue and persist a token, and schedule the audit
	// record. The returned attempt carries the issued token on success.
	Authenticate(ctx context.Context, login, password string) (*types.AuthAttempt, error)

	// Register creates a new user with a bcrypt credential.
	Register(ctx context.Context, login, password string) (*types.User, error)
}

type AuthServiceImpl struct {
	logger *slog.Logger
	repo   AuthRepo
	issuer KeyIssuer
	bus    *events.Dispatcher
	tokens config.TokensConfig
}

func NewAuthService(repo AuthRepo, issuer KeyIssuer, bus *events.Dispatcher, tokens config.TokensConfig, logger *slog.Logger) *AuthServiceImpl {
	return &AuthServiceImpl{
		logger: logger,
		repo:   repo,
		issuer: issuer,
		bus:    bus,
		tokens: tokens,
	}
}

// RegisterAuditHandlers subscribes the audit writers for attempt events.
// The writes run on the dispatcher's workers; their failures are logged and
// never reach the request that triggered them.
func RegisterAuditHandlers(bus *events.Dispatcher, repo AuthRepo) {
	bus.On(EventAttemptSuccess, func(ctx context.Context, payload any) error {
		d, ok := payload.(AttemptSuccess)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", payload, EventAttemptSuccess)
		}
		tokenID := d.TokenID
		return repo.CreateAuthAttempt(ctx, &types.AuthAttempt{
			ID:       d.ID,
			Login:    d.Login,
			Finished: true,
			Error:    nil,
			TokenID:  &tokenID,
			Created:  time.Now().Unix(),
		})
	})

	bus.On(EventAttemptError, func(ctx context.Context, payload any) error {
		d, ok := payload.(AttemptError)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", payload, EventAttemptError)
		}
		errMsg := d.Error
		return repo.CreateAuthAttempt(ctx, &types.AuthAttempt{
			ID:       d.ID,
			Login:    d.Login,
			Finished: true,
			Error:    &errMsg,
			TokenID:  nil,
			Created:  time.Now().Unix(),
		})
	})
}

// Verify implements the credential check. The login is normalized to
// lowercase before lookup.
func (s *AuthServiceImpl) Verify(ctx context.Context, login, password string) (*types.User, error) {
	user, hash, err := s.repo.GetUserWithHashByLogin(ctx, strings.ToLower(login))
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("credential lookup: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, types.ErrInvalidCredentials
	}
	return user, nil
}

// Authenticate is the attempt state machine:
// Started -> VerifyFailed | Verified -> TokenIssued | TokenCreationFailed.
// Audit rows for the terminal states are written fire-and-forget; the HTTP
// response does not wait for them.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, login, password string) (*types.AuthAttempt, error) {
	start := time.Now()
	m := metrics.Get()

	if login == "" || password == "" {
		m.AuthAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "incomplete")))
		return nil, fmt.Errorf("ERR_INCOMPLETE: Missing Login or Password: %w", types.ErrBadRequest)
	}

	attemptID := uuid.NewString()
	tokenID := uuid.NewString()

	user, err := s.Verify(ctx, login, password)
	if err != nil {
		s.bus.Emit(EventAttemptError, AttemptError{
			ID:    attemptID,
			Login: login,
			Error: err.Error(),
		})
		m.AuthAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "denied")))
		m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds())
		return nil, fmt.Errorf("%s: %w", err.Error(), types.ErrBadRequest)
	}

	s.bus.Emit(EventAttemptSuccess, AttemptSuccess{
		ID:      attemptID,
		Login:   login,
		TokenID: tokenID,
	})

	now := time.Now().Unix()
	key, err := s.issuer.IssueKey(tokenID, user.ID, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "Token key issuance failed", slog.Any("error", err))
		m.AuthAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return nil, fmt.Errorf("issue token key: %w", types.ErrServer)
	}

	token := &types.Token{
		ID:      tokenID,
		UserID:  user.ID,
		Key:     key,
		Created: now,
		Expiry:  s.tokenExpiry(),
	}
	if err := s.repo.CreateToken(ctx, token); err != nil {
		// The audit event already reflects a verified attempt; the caller
		// still gets a server error because no usable token exists.
		s.logger.ErrorContext(ctx, "Token persistence failed",
			slog.String("attempt_id", attemptID),
			slog.Any("error", err),
		)
		m.AuthAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return nil, fmt.Errorf("persist token: %w", types.ErrServer)
	}

	m.AuthAttemptsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "success")))
	m.AuthDurationSeconds.Record(ctx, time.Since(start).Seconds())

	// The success payload is assembled here instead of re-read from the
	// store: the audit row races this return by design, and a read-back
	// could observe it missing.
	return &types.AuthAttempt{
		ID:       attemptID,
		Login:    login,
		Finished: true,
		TokenID:  &tokenID,
		Created:  now,
		Token:    token,
	}, nil
}

// Register creates a user and their credential. Logins are lowercased and
// validated against length and the reserved list before the availability
// check.
func (s *AuthServiceImpl) Register(ctx context.Context, login, password string) (*types.User, error) {
	login = strings.ToLower(login)

	if len(login) < minLoginLength || isReservedLogin(login) {
		return nil, fmt.Errorf("invalid username: %w", types.ErrBadRequest)
	}
	if password == "" {
		return nil, fmt.Errorf("missing password: %w", types.ErrBadRequest)
	}

	_, _, err := s.repo.GetUserWithHashByLogin(ctx, login)
	if err == nil {
		return nil, fmt.Errorf("username (%s) is already taken: %w", login, types.ErrBadRequest)
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("availability check: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", types.ErrServer)
	}

	user := &types.User{
		ID:      uuid.NewString(),
		Login:   login,
		Created: time.Now().Unix(),
	}
	hash := &types.PasswordHash{
		ID:      uuid.NewString(),
		Value:   string(hashed),
		OwnerID: user.ID,
	}
	if err := s.repo.CreateUser(ctx, user, hash); err != nil {
		return nil, err
	}

	s.bus.Emit(EventSignupSuccess, SignupSuccess{UserID: user.ID, Login: user.Login})
	return user, nil
}

func (s *AuthServiceImpl) tokenExpiry() int64 {
	expiry := s.tokens.DefaultExpiry
	if expiry == 0 {
		expiry = 86400
	}
	min := s.tokens.MinExpiry
	if min == 0 {
		min = 3600
	}
	if expiry < min {
		expiry = min
	}
	return expiry
}

func isReservedLogin(login string) bool {
	_, ok := reservedLogins[login]
	return ok
}
