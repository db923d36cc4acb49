package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournalhq/myjournal-api/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresAuthRepo) {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPostgresAuthRepo(pool, testLogger())
}

func TestGetUserWithHashByLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT u.id, u.login, u.created, h.value").
			WithArgs("alice").
			WillReturnRows(pgxmock.NewRows([]string{"id", "login", "created", "value"}).
				AddRow("u1", "alice", int64(100), "$2a$10$hash"))

		user, hash, err := repo.GetUserWithHashByLogin(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
		assert.Equal(t, "$2a$10$hash", hash)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("absent maps to ErrNotFound", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT u.id, u.login, u.created, h.value").
			WithArgs("ghost").
			WillReturnError(pgx.ErrNoRows)

		_, _, err := repo.GetUserWithHashByLogin(ctx, "ghost")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	user := &types.User{ID: "u1", Login: "alice", Created: 100}
	hash := &types.PasswordHash{ID: "h1", Value: "$2a$10$hash", OwnerID: "u1"}

	t.Run("commits user and hash together", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO users").
			WithArgs("u1", "alice", int64(100)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectExec("INSERT INTO password_hashes").
			WithArgs("h1", "$2a$10$hash", "u1").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectCommit()

		require.NoError(t, repo.CreateUser(ctx, user, hash))
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("duplicate login maps to ErrBadRequest", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO users").
			WithArgs("u1", "alice", int64(100)).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		pool.ExpectRollback()

		err := repo.CreateUser(ctx, user, hash)
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("hash insert failure rolls back", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO users").
			WithArgs("u1", "alice", int64(100)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectExec("INSERT INTO password_hashes").
			WithArgs("h1", "$2a$10$hash", "u1").
			WillReturnError(errors.New("disk full"))
		pool.ExpectRollback()

		err := repo.CreateUser(ctx, user, hash)
		require.Error(t, err)
		assert.NoError(t, pool.ExpectationsWereMet())
	})
}

func TestGetTokenByKey(t *testing.T) {
	ctx := context.Background()

	t.Run("found with its user", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT t.id, t.user_id, t.key").
			WithArgs("tok-1/u1/1700000000").
			WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "key", "created", "expiry", "id", "login", "created"}).
				AddRow("tok-1", "u1", "tok-1/u1/1700000000", int64(1700000000), int64(86400), "u1", "alice", int64(100)))

		token, user, err := repo.GetTokenByKey(ctx, "tok-1/u1/1700000000")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token.ID)
		assert.Equal(t, int64(86400), token.Expiry)
		assert.Equal(t, "alice", user.Login)
	})

	t.Run("absent maps to ErrNotFound", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT t.id, t.user_id, t.key").
			WithArgs("bogus").
			WillReturnError(pgx.ErrNoRows)

		_, _, err := repo.GetTokenByKey(ctx, "bogus")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestCreateAuthAttempt(t *testing.T) {
	ctx := context.Background()
	pool, repo := newMockRepo(t)

	errMsg := "invalid credentials"
	pool.ExpectExec("INSERT INTO auth_attempts").
		WithArgs("att-1", "alice", true, &errMsg, (*string)(nil), int64(1700000000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.CreateAuthAttempt(ctx, &types.AuthAttempt{
		ID:       "att-1",
		Login:    "alice",
		Finished: true,
		Error:    &errMsg,
		TokenID:  nil,
		Created:  1700000000,
	})
	require.NoError(t, err)
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestGetAuthAttemptByID(t *testing.T) {
	ctx := context.Background()

	t.Run("success row carries the token", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		tokenID := "tok-1"
		pool.ExpectQuery("SELECT a.id, a.login, a.finished").
			WithArgs("att-1").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "login", "finished", "error", "token_id", "created",
				"id", "user_id", "key", "created", "expiry",
			}).AddRow(
				"att-1", "alice", true, (*string)(nil), &tokenID, int64(1700000000),
				&tokenID, ptr("u1"), ptr("tok-1/u1/1700000000"), ptrInt64(1700000000), ptrInt64(86400),
			))

		attempt, err := repo.GetAuthAttemptByID(ctx, "att-1")
		require.NoError(t, err)
		assert.True(t, attempt.Finished)
		require.NotNil(t, attempt.Token)
		assert.Equal(t, "tok-1", attempt.Token.ID)
	})

	t.Run("error row has no token", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		errMsg := "invalid credentials"
		pool.ExpectQuery("SELECT a.id, a.login, a.finished").
			WithArgs("att-2").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "login", "finished", "error", "token_id", "created",
				"id", "user_id", "key", "created", "expiry",
			}).AddRow(
				"att-2", "alice", true, &errMsg, (*string)(nil), int64(1700000000),
				(*string)(nil), (*string)(nil), (*string)(nil), (*int64)(nil), (*int64)(nil),
			))

		attempt, err := repo.GetAuthAttemptByID(ctx, "att-2")
		require.NoError(t, err)
		require.NotNil(t, attempt.Error)
		assert.Nil(t, attempt.Token)
	})
}

func ptr(s string) *string { return &s }

func ptrInt64(v int64) *int64 { return &v }
