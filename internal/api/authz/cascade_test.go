package authz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/myjournalhq/myjournal-api/internal/events"
	"github.com/myjournalhq/myjournal-api/internal/types"
)

// MockRegistryService is a mock implementation of the RegistryService interface
type MockRegistryService struct {
	mock.Mock

	mu    sync.Mutex
	calls []string
}

func (m *MockRegistryService) RegisterOwnership(ctx context.Context, uri, ownerID string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, uri)
	m.mu.Unlock()
	args := m.Called(ctx, uri, ownerID)
	return args.String(0), args.Error(1)
}

func (m *MockRegistryService) VerifyOwnership(ctx context.Context, uri, ownerID string) (string, error) {
	args := m.Called(ctx, uri, ownerID)
	return args.String(0), args.Error(1)
}

func (m *MockRegistryService) registeredURIs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func newTestBus(t *testing.T) *events.Dispatcher {
	t.Helper()
	bus := events.New(testLogger(), 1, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Close(ctx)
	})
	return bus
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestParentCollection(t *testing.T) {
	// Five segments including the leading empty one.
	assert.Equal(t, "/journal/j1", ParentCollection("/journal/j1/entry/e7"))
	assert.Equal(t, "/category/c2", ParentCollection("/category/c2/journal/j9"))

	// Anything else derives nothing.
	assert.Empty(t, ParentCollection("/journal/j1"))
	assert.Empty(t, ParentCollection("/journal"))
	assert.Empty(t, ParentCollection("/a/b/c/d/e"))
	assert.Empty(t, ParentCollection(""))
}

func TestNotifier(t *testing.T) {
	t.Run("creation event registers the uri", func(t *testing.T) {
		registry := new(MockRegistryService)
		bus := newTestBus(t)
		NewNotifier(registry, NoAncestor, testLogger()).Register(bus)

		registry.On("RegisterOwnership", mock.Anything, "/journal/j1", "u1").Return("res-1", nil)

		bus.Emit(EventResourceCreated, ResourceCreated{URI: "/Journal/J1", OwnerID: "u1"})

		waitUntil(t, func() bool { return len(registry.registeredURIs()) == 1 })
		registry.AssertExpectations(t)
	})

	t.Run("nested creation also claims the parent collection", func(t *testing.T) {
		registry := new(MockRegistryService)
		bus := newTestBus(t)
		NewNotifier(registry, ParentCollection, testLogger()).Register(bus)

		registry.On("RegisterOwnership", mock.Anything, "/journal/j1/entry/e7", "u1").Return("res-1", nil)
		registry.On("RegisterOwnership", mock.Anything, "/journal/j1", "u1").Return("res-2", nil)

		bus.Emit(EventResourceCreated, ResourceCreated{URI: "/journal/j1/entry/e7", OwnerID: "u1"})

		waitUntil(t, func() bool { return len(registry.registeredURIs()) == 2 })
		assert.Equal(t, []string{"/journal/j1/entry/e7", "/journal/j1"}, registry.registeredURIs())
	})

	t.Run("already-claimed parent is the steady state, not an error", func(t *testing.T) {
		registry := new(MockRegistryService)
		bus := newTestBus(t)
		NewNotifier(registry, ParentCollection, testLogger()).Register(bus)

		registry.On("RegisterOwnership", mock.Anything, "/journal/j1/entry/e8", "u1").Return("res-1", nil)
		registry.On("RegisterOwnership", mock.Anything, "/journal/j1", "u1").Return("", types.ErrAlreadyRegistered)

		bus.Emit(EventResourceCreated, ResourceCreated{URI: "/journal/j1/entry/e8", OwnerID: "u1"})

		waitUntil(t, func() bool { return len(registry.registeredURIs()) == 2 })
		registry.AssertExpectations(t)
	})

	t.Run("shallow uris never derive an ancestor", func(t *testing.T) {
		registry := new(MockRegistryService)
		bus := newTestBus(t)
		NewNotifier(registry, ParentCollection, testLogger()).Register(bus)

		registry.On("RegisterOwnership", mock.Anything, "/journal/j1", "u1").Return("res-1", nil)

		bus.Emit(EventResourceCreated, ResourceCreated{URI: "/journal/j1", OwnerID: "u1"})

		waitUntil(t, func() bool { return len(registry.registeredURIs()) == 1 })

		// Give a trailing ancestor registration a chance to show up.
		time.Sleep(50 * time.Millisecond)
		require.Len(t, registry.registeredURIs(), 1)
	})
}
