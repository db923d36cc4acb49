package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/myjournalhq/myjournal-api/internal/types"
)

// DB is the slice of pgxpool.Pool the repositories use. Narrowed to an
// interface so tests can substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ AuthRepo = (*PostgresAuthRepo)(nil)

// AuthRepo is the credential-store contract the engine depends on.
// Lookups return types.ErrNotFound for absent rows rather than a raw
// driver error.
type AuthRepo interface {
	GetUserWithHashByLogin(ctx context.Context, login string) (*types.User, string, error)
	CreateUser(ctx context.Context, user *types.User, hash *types.PasswordHash) error
	CreateToken(ctx context.Context, token *types.Token) error
	GetTokenByKey(ctx context.Context, key string) (*types.Token, *types.User, error)
	CreateAuthAttempt(ctx context.Context, attempt *types.AuthAttempt) error
	GetAuthAttemptByID(ctx context.Context, id string) (*types.AuthAttempt, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresAuthRepo(db DB, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		db:     db,
	}
}

// GetUserWithHashByLogin fetches a user and their stored password hash in
// one round trip. The login is expected to be normalized by the caller.
func (r *PostgresAuthRepo) GetUserWithHashByLogin(ctx context.Context, login string) (*types.User, string, error) {
	var user types.User
	var hash string
	err := r.db.QueryRow(ctx,
		`SELECT u.id, u.login, u.created, h.value
         FROM users u
         JOIN password_hashes h ON h.owner_id = u.id
         WHERE u.login = $1`,
		login).Scan(&user.ID, &user.Login, &user.Created, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("user %q: %w", login, types.ErrNotFound)
		}
		return nil, "", fmt.Errorf("fetch user by login: %w", err)
	}
	return &user, hash, nil
}

// CreateUser inserts the identity and its credential as one transaction.
func (r *PostgresAuthRepo) CreateUser(ctx context.Context, user *types.User, hash *types.PasswordHash) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO users (id, login, created) VALUES ($1, $2, $3)",
		user.ID, user.Login, user.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("login %q is already taken: %w", user.Login, types.ErrBadRequest)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO password_hashes (id, value, owner_id) VALUES ($1, $2, $3)",
		hash.ID, hash.Value, hash.OwnerID)
	if err != nil {
		return fmt.Errorf("insert password hash: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) CreateToken(ctx context.Context, token *types.Token) error {
	_, err := r.db.Exec(ctx,
		"INSERT INTO tokens (id, user_id, key, created, expiry) VALUES ($1, $2, $3, $4, $5)",
		token.ID, token.UserID, token.Key, token.Created, token.Expiry)
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetTokenByKey resolves a presented bearer key to its token and user by
// exact string equality against the stored key.
func (r *PostgresAuthRepo) GetTokenByKey(ctx context.Context, key string) (*types.Token, *types.User, error) {
	var token types.Token
	var user types.User
	err := r.db.QueryRow(ctx,
		`SELECT t.id, t.user_id, t.key, t.created, t.expiry, u.id, u.login, u.created
         FROM tokens t
         JOIN users u ON u.id = t.user_id
         WHERE t.key = $1`,
		key).Scan(&token.ID, &token.UserID, &token.Key, &token.Created, &token.Expiry,
		&user.ID, &user.Login, &user.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("token: %w", types.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("fetch token by key: %w", err)
	}
	return &token, &user, nil
}

// CreateAuthAttempt appends one terminal audit row. Rows are never updated
// afterwards.
func (r *PostgresAuthRepo) CreateAuthAttempt(ctx context.Context, attempt *types.AuthAttempt) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO auth_attempts (id, login, finished, error, token_id, created)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		attempt.ID, attempt.Login, attempt.Finished, attempt.Error, attempt.TokenID, attempt.Created)
	if err != nil {
		return fmt.Errorf("insert auth attempt: %w", err)
	}
	return nil
}

func (r *PostgresAuthRepo) GetAuthAttemptByID(ctx context.Context, id string) (*types.AuthAttempt, error) {
	var attempt types.AuthAttempt
	var token types.Token
	var tokenID, tokenUserID, tokenKey *string
	var tokenCreated, tokenExpiry *int64

	err := r.db.QueryRow(ctx,
		`SELECT a.id, a.login, a.finished, a.error, a.token_id, a.created,
                t.id, t.user_id, t.key, t.created, t.expiry
         FROM auth_attempts a
         LEFT JOIN tokens t ON t.id = a.token_id
         WHERE a.id = $1`,
		id).Scan(&attempt.ID, &attempt.Login, &attempt.Finished, &attempt.Error, &attempt.TokenID, &attempt.Created,
		&tokenID, &tokenUserID, &tokenKey, &tokenCreated, &tokenExpiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("auth attempt %q: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch auth attempt: %w", err)
	}

	if tokenID != nil {
		token.ID = *tokenID
		token.UserID = *tokenUserID
		token.Key = *tokenKey
		token.Created = *tokenCreated
		token.Expiry = *tokenExpiry
		attempt.Token = &token
	}
	return &attempt, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
