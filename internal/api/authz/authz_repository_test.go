package authz

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/myjournalhq/myjournal-api/internal/types"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRegistryRepo) {
	t.Helper()
	pool, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool, NewPostgresRegistryRepo(pool, testLogger())
}

func TestGetResourceWithOwnerByURI(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT res.id, res.uri, res.created").
			WithArgs("/entry/abc-123").
			WillReturnRows(pgxmock.NewRows([]string{
				"id", "uri", "created", "id", "resource_id", "owner_id", "created",
			}).AddRow("res-1", "/entry/abc-123", int64(100), "ro-1", "res-1", "u1", int64(100)))

		resource, owner, err := repo.GetResourceWithOwnerByURI(ctx, "/entry/abc-123")
		require.NoError(t, err)
		assert.Equal(t, "/entry/abc-123", resource.URI)
		assert.Equal(t, "u1", owner.OwnerID)
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("absent maps to ErrNotFound", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectQuery("SELECT res.id, res.uri, res.created").
			WithArgs("/entry/nope").
			WillReturnError(pgx.ErrNoRows)

		_, _, err := repo.GetResourceWithOwnerByURI(ctx, "/entry/nope")
		assert.ErrorIs(t, err, types.ErrNotFound)
	})
}

func TestCreateResourceWithOwner(t *testing.T) {
	ctx := context.Background()
	resource := &types.Resource{ID: "res-1", URI: "/entry/abc-123", Created: 100}
	owner := &types.ResourceOwner{ID: "ro-1", ResourceID: "res-1", OwnerID: "u1", Created: 100}

	t.Run("commits resource and owner together", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO resources").
			WithArgs("res-1", "/entry/abc-123", int64(100)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectExec("INSERT INTO resource_owners").
			WithArgs("ro-1", "res-1", "u1", int64(100)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectCommit()

		require.NoError(t, repo.CreateResourceWithOwner(ctx, resource, owner))
		assert.NoError(t, pool.ExpectationsWereMet())
	})

	t.Run("duplicate uri maps to ErrAlreadyRegistered", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO resources").
			WithArgs("res-1", "/entry/abc-123", int64(100)).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		pool.ExpectRollback()

		err := repo.CreateResourceWithOwner(ctx, resource, owner)
		assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
	})

	t.Run("duplicate owner row maps to ErrAlreadyRegistered", func(t *testing.T) {
		pool, repo := newMockRepo(t)
		pool.ExpectBegin()
		pool.ExpectExec("INSERT INTO resources").
			WithArgs("res-1", "/entry/abc-123", int64(100)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		pool.ExpectExec("INSERT INTO resource_owners").
			WithArgs("ro-1", "res-1", "u1", int64(100)).
			WillReturnError(&pgconn.PgError{Code: "23505"})
		pool.ExpectRollback()

		err := repo.CreateResourceWithOwner(ctx, resource, owner)
		assert.ErrorIs(t, err, types.ErrAlreadyRegistered)
	})
}
