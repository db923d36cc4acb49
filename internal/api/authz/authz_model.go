package authz

// EventResourceCreated is emitted by route handlers after a domain entity is
// persisted. The cascade notifier is its only subscriber.
const EventResourceCreated = "resource:created"

// ResourceCreated is the payload for EventResourceCreated.
type ResourceCreated struct {
	URI     string
	OwnerID string
}
