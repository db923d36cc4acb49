package auth

// Event names the engine emits on the dispatcher. Audit handlers subscribe
// to the attempt events; the signup event is informational.
const (
	EventAttemptSuccess = "auth/attempt:success"
	EventAttemptError   = "auth/attempt:error"
	EventSignupSuccess  = "signup:success"
)

// AttemptSuccess is the payload for EventAttemptSuccess. TokenID is the
// pre-allocated id of the token being issued for this attempt.
type AttemptSuccess struct {
	ID      string
	Login   string
	TokenID string
}

// AttemptError is the payload for EventAttemptError.
type AttemptError struct {
	ID    string
	Login string
	Error string
}

// SignupSuccess is the payload for EventSignupSuccess.
type SignupSuccess struct {
	UserID string
	Login  string
}

// AttemptAuthRequest is the login request body.
type AttemptAuthRequest struct {
	Login    string `json:"Login"`
	Password string `json:"Password"`
}

// SignupRequest is the registration request body. The original API accepts
// the login under Email and the password under NewPassword.
type SignupRequest struct {
	Email       string `json:"Email"`
	NewPassword string `json:"NewPassword"`
}

// Logins that can never be registered.
var reservedLogins = map[string]struct{}{
	"admin":      {},
	"root":       {},
	"system":     {},
	"support":    {},
	"myjournal":  {},
	"webmaster":  {},
	"postmaster": {},
}

const minLoginLength = 5

const bcryptCost = 10
