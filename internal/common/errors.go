// Package common defines shared sentinel errors used across the onboarding
// pipeline. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Batch-entry errors. An invalid record is skipped; no token is issued for it.
	ErrInvalidUserRecord = errors.New("invalid user record")

	// Per-user step errors. Both are non-fatal to the batch.
	ErrRegistrationFailed = errors.New("identity registration failed")
	ErrLedgerFailed       = errors.New("ledger submission failed")

	// ErrPersistence marks the only run-level failure: the token file could
	// not be written.
	ErrPersistence = errors.New("token persistence failed")

	// Adapter/repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("service unavailable")
)
