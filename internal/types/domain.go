package types

import "errors"

// Sentinel errors for the auth engine and the ownership registry.
// Handlers translate these to HTTP statuses with errors.Is; repositories
// and services wrap them with fmt.Errorf("...: %w", ...) to keep the cause.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrServer             = errors.New("internal server error")
	ErrNotFound           = errors.New("requested item not found")

	ErrAlreadyRegistered  = errors.New("resource uri registered")
	ErrVerificationFailed = errors.New("verification failed")
	ErrVerificationError  = errors.New("unable to perform verification")
	ErrStore              = errors.New("store failure")
)

// User is an identity record. Immutable after signup except through the
// profile routes, which live outside this service.
type User struct {
	ID      string `json:"Id"`
	Login   string `json:"Login"`
	Created int64  `json:"Created"`
}

// PasswordHash is the single active salted credential for a user.
type PasswordHash struct {
	ID      string `json:"Id"`
	Value   string `json:"-"`
	OwnerID string `json:"OwnerId"`
}

// Token is a bearer credential. Key is the exact string clients present in
// the Authorization header; rows are created once and never updated.
type Token struct {
	ID      string `json:"Id"`
	UserID  string `json:"UserId"`
	Key     string `json:"Key"`
	Created int64  `json:"Created"`
	Expiry  int64  `json:"Expiry"`
}

// AuthAttempt is the append-only audit record for one authentication call.
// TokenID is set iff Error is nil.
type AuthAttempt struct {
	ID       string  `json:"Id"`
	Login    string  `json:"Login"`
	Finished bool    `json:"Finished"`
	Error    *string `json:"Error"`
	TokenID  *string `json:"TokenId"`
	Created  int64   `json:"Created"`
	Token    *Token  `json:"Token,omitempty"`
}

// Resource is an entry in the ownership registry. URI is stored lowercase
// and is globally unique.
type Resource struct {
	ID      string `json:"Id"`
	URI     string `json:"Uri"`
	Created int64  `json:"Created"`
}

// ResourceOwner joins a resource to its single owning identity.
type ResourceOwner struct {
	ID         string `json:"Id"`
	ResourceID string `json:"ResourceId"`
	OwnerID    string `json:"OwnerId"`
	Created    int64  `json:"Created"`
}
