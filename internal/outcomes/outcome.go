// Package outcomes records per-user onboarding telemetry: one row per
// (run, user, stage). Outcomes are observational only and never gate the
// batch; a recording failure is logged by the caller and ignored.
package outcomes

import (
	"context"
	"time"
)

// Stage tags what happened to a user during a run.
type Stage string

const (
	StageRegistered         Stage = "registered"
	StageRegistrationFailed Stage = "registration_failed"
	StageLedgerRecorded     Stage = "ledger_recorded"
	StageLedgerFailed       Stage = "ledger_failed"
	StageTokenIssued        Stage = "token_issued"
	StageSkippedInvalid     Stage = "skipped_invalid"
)

type Outcome struct {
	ID        int64
	RunID     string
	UserID    string
	Stage     Stage
	Detail    string
	CreatedAt time.Time
}

// Recorder stores outcomes. Implementations must be safe for concurrent use;
// a parallel run records from multiple workers.
type Recorder interface {
	Record(ctx context.Context, o *Outcome) error
	ListByRun(ctx context.Context, runID string) ([]Outcome, error)
}

// NoopRecorder drops everything. Used when no outcomes DSN is configured.
type NoopRecorder struct{}

func (NoopRecorder) Record(ctx context.Context, o *Outcome) error { return nil }

func (NoopRecorder) ListByRun(ctx context.Context, runID string) ([]Outcome, error) {
	return nil, nil
}
