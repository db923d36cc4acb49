package authz

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

	"github.com/myjournalhq/myjournal-api/app/observability/metrics"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

var _ RegistryService = (*RegistryServiceImpl)(nil)

// RegistryService is the ownership registry: one URI maps to exactly one
// owning identity, for every resource type. Route handlers call
// VerifyOwnership before touching domain state and rely on the cascade
// notifier to call RegisterOwnership after creation.
type RegistryService interface {
	// RegisterOwnership claims a URI for an owner. The URI is lowercased
	// before storage. A URI can be claimed once, ever; duplicates fail
	// with types.ErrAlreadyRegistered.
	RegisterOwnership(ctx context.Context, uri, ownerID string) (string, error)

	// VerifyOwnership checks that the URI belongs to ownerID and returns
	// the normalized URI. An unknown URI and someone else's URI fail the
	// same way, with types.ErrVerificationFailed.
	VerifyOwnership(ctx context.Context, uri, ownerID string) (string, error)
}

type RegistryServiceImpl struct {
	logger *slog.Logger
	repo   RegistryRepo
}

func NewRegistryService(repo RegistryRepo, logger *slog.Logger) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

// NormalizeURI is the single normalization rule for registry keys.
func NormalizeURI(uri string) string {
	return strings.ToLower(uri)
}

func (s *RegistryServiceImpl) RegisterOwnership(ctx context.Context, uri, ownerID string) (string, error) {
	normalized := NormalizeURI(uri)

	// The absence check keeps the common duplicate path cheap; the unique
	// index in the store is what actually serializes racing registrations.
	_, _, err := s.repo.GetResourceWithOwnerByURI(ctx, normalized)
	if err == nil {
		return "", fmt.Errorf("uri %q: %w", normalized, types.ErrAlreadyRegistered)
	}
	if !errors.Is(err, types.ErrNotFound) {
		return "", fmt.Errorf("%w: %s", types.ErrStore, err.Error())
	}

	now := time.Now().Unix()
	resource := &types.Resource{
		ID:      uuid.NewString(),
		URI:     normalized,
		Created: now,
	}
	owner := &types.ResourceOwner{
		ID:         uuid.NewString(),
		ResourceID: resource.ID,
		OwnerID:    ownerID,
		Created:    now,
	}
	if err := s.repo.CreateResourceWithOwner(ctx, resource, owner); err != nil {
		if errors.Is(err, types.ErrAlreadyRegistered) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s", types.ErrStore, err.Error())
	}

	metrics.Get().OwnershipRegisteredTotal.Add(ctx, 1)
	s.logger.DebugContext(ctx, "Ownership registered",
		slog.String("uri", normalized),
		slog.String("owner_id", ownerID),
	)
	return resource.ID, nil
}

func (s *RegistryServiceImpl) VerifyOwnership(ctx context.Context, uri, ownerID string) (string, error) {
	normalized := NormalizeURI(uri)
	m := metrics.Get()

	_, owner, err := s.repo.GetResourceWithOwnerByURI(ctx, normalized)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			m.OwnershipChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "denied")))
			return "", fmt.Errorf("uri %q: %w", normalized, types.ErrVerificationFailed)
		}
		m.OwnershipChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "error")))
		return "", fmt.Errorf("%w: %s", types.ErrVerificationError, err.Error())
	}

	if owner.OwnerID != ownerID {
		m.OwnershipChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "denied")))
		return "", fmt.Errorf("uri %q: %w", normalized, types.ErrVerificationFailed)
	}

	m.OwnershipChecksTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "allowed")))
	return normalized, nil
}
