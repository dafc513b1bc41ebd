// Package identity talks to the external certificate authority that issues
// ledger enrollment material. The onboarding core only depends on the
// Registrar contract; CAClient is the HTTP implementation.
package identity

import "context"

// Registration is the successful result of a register call.
type Registration struct {
	// Handle identifies the registered identity at the CA (the enroll ID).
	Handle string

	// Reused is set when the identity was already registered and the CA
	// call was treated as a success. Re-running a batch is a normal
	// operational scenario, not an error.
	Reused bool
}

// Registrar registers a user identity with the identity service. A non-nil
// error means the registration failed for that user; the caller decides
// whether that is fatal. Implementations retry transient failures
// internally, so one call is one logical registration attempt.
type Registrar interface {
	Register(ctx context.Context, userID, org string, attrs map[string]string, asAdmin bool) (*Registration, error)
}
