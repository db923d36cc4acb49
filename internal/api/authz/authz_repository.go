package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/myjournalhq/myjournal-api/internal/types"
)

// DB is the slice of pgxpool.Pool the registry repository uses. Narrowed to
// an interface so tests can substitute a pgxmock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ RegistryRepo = (*PostgresRegistryRepo)(nil)

// RegistryRepo is the store contract behind the ownership registry. URIs are
// expected to arrive normalized; lookups return types.ErrNotFound for absent
// rows and CreateResourceWithOwner returns types.ErrAlreadyRegistered when
// the URI's uniqueness constraint rejects the insert.
type RegistryRepo interface {
	GetResourceWithOwnerByURI(ctx context.Context, uri string) (*types.Resource, *types.ResourceOwner, error)
	CreateResourceWithOwner(ctx context.Context, resource *types.Resource, owner *types.ResourceOwner) error
}

type PostgresRegistryRepo struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresRegistryRepo(db DB, logger *slog.Logger) *PostgresRegistryRepo {
	return &PostgresRegistryRepo{
		logger: logger,
		db:     db,
	}
}

func (r *PostgresRegistryRepo) GetResourceWithOwnerByURI(ctx context.Context, uri string) (*types.Resource, *types.ResourceOwner, error) {
	var resource types.Resource
	var owner types.ResourceOwner
	err := r.db.QueryRow(ctx,
		`SELECT res.id, res.uri, res.created, ro.id, ro.resource_id, ro.owner_id, ro.created
         FROM resources res
         JOIN resource_owners ro ON ro.resource_id = res.id
         WHERE res.uri = $1`,
		uri).Scan(&resource.ID, &resource.URI, &resource.Created,
		&owner.ID, &owner.ResourceID, &owner.OwnerID, &owner.Created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, fmt.Errorf("resource %q: %w", uri, types.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("fetch resource by uri: %w", err)
	}
	return &resource, &owner, nil
}

// CreateResourceWithOwner inserts the resource and its owner row in one
// transaction. The unique index on resources.uri is the real duplicate
// guard; a racing registration for the same URI loses here with
// types.ErrAlreadyRegistered, never by silently overwriting the winner.
func (r *PostgresRegistryRepo) CreateResourceWithOwner(ctx context.Context, resource *types.Resource, owner *types.ResourceOwner) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin register resource: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"INSERT INTO resources (id, uri, created) VALUES ($1, $2, $3)",
		resource.ID, resource.URI, resource.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("uri %q: %w", resource.URI, types.ErrAlreadyRegistered)
		}
		return fmt.Errorf("insert resource: %w", err)
	}

	_, err = tx.Exec(ctx,
		"INSERT INTO resource_owners (id, resource_id, owner_id, created) VALUES ($1, $2, $3, $4)",
		owner.ID, owner.ResourceID, owner.OwnerID, owner.Created)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("resource %q owner: %w", resource.URI, types.ErrAlreadyRegistered)
		}
		return fmt.Errorf("insert resource owner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit register resource: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
