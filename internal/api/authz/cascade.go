package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/myjournalhq/myjournal-api/internal/events"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

// AncestorFunc derives the ancestor URI that should also be registered when
// a nested resource is created. Returning "" means no ancestor registration.
// The derivation is pluggable because the historical rule is disputed; the
// notifier itself never hardcodes a formula.
type AncestorFunc func(uri string) string

// NoAncestor never derives an ancestor. This is the default until the
// intended derivation rule is confirmed.
func NoAncestor(string) string { return "" }

// ParentCollection derives the owning collection for URIs of the shape
// /{collection}/{collectionId}/{subcollection}/{id} — exactly five
// slash-delimited segments including the leading empty one. Creating
// /journal/j1/entry/e7 also claims /journal/j1.
func ParentCollection(uri string) string {
	parts := strings.Split(uri, "/")
	if len(parts) != 5 {
		return ""
	}
	return strings.Join(parts[:3], "/")
}

// Notifier subscribes the cascade handler to resource-creation events.
// Registration runs on the dispatcher's workers, after the triggering
// request has already been answered; failures are logged, never surfaced.
type Notifier struct {
	logger   *slog.Logger
	registry RegistryService
	ancestor AncestorFunc
}

func NewNotifier(registry RegistryService, ancestor AncestorFunc, logger *slog.Logger) *Notifier {
	if ancestor == nil {
		ancestor = NoAncestor
	}
	return &Notifier{
		logger:   logger,
		registry: registry,
		ancestor: ancestor,
	}
}

// Register binds the notifier to the event bus.
func (n *Notifier) Register(bus *events.Dispatcher) {
	bus.On(EventResourceCreated, n.handleResourceCreated)
}

func (n *Notifier) handleResourceCreated(ctx context.Context, payload any) error {
	d, ok := payload.(ResourceCreated)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", payload, EventResourceCreated)
	}

	if err := n.register(ctx, d.URI, d.OwnerID); err != nil {
		return err
	}

	if ancestor := n.ancestor(NormalizeURI(d.URI)); ancestor != "" {
		// The ancestor may have been claimed by an earlier sibling or by
		// its own creation path; that is the expected steady state.
		if err := n.register(ctx, ancestor, d.OwnerID); err != nil {
			n.logger.WarnContext(ctx, "Ancestor registration failed",
				slog.String("uri", ancestor),
				slog.Any("error", err),
			)
		}
	}
	return nil
}

func (n *Notifier) register(ctx context.Context, uri, ownerID string) error {
	_, err := n.registry.RegisterOwnership(ctx, uri, ownerID)
	if err != nil && !errors.Is(err, types.ErrAlreadyRegistered) {
		return err
	}
	return nil
}
