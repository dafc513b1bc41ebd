// Package onboarding drives the batch: for every user it registers the
// identity, records the user on the ledger, issues an access token, and
// finally persists the accumulated token set in one atomic write.
package onboarding

import (
	"context"
	"fmt"

	"github.com/auctionledger/onboard/internal/batch"
	"github.com/auctionledger/onboard/internal/identity"
	"github.com/auctionledger/onboard/internal/ledger"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/outcomes"
	"github.com/auctionledger/onboard/internal/token"
	"github.com/auctionledger/onboard/internal/tokenstore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Orchestrator runs a batch end to end. Registration and ledger failures
// are best-effort: they are logged and recorded as outcomes, and the user
// still receives a token. The only run-level failures are an unreadable
// batch (handled by the caller) and a failed final persist.
type Orchestrator struct {
	registrar identity.Registrar
	recorder  ledger.Recorder
	issuer    *token.Issuer
	store     tokenstore.Store
	outcomes  outcomes.Recorder
	logger    logging.Logger
	whitelist []string
	workers   int
}

func New(
	registrar identity.Registrar,
	recorder ledger.Recorder,
	issuer *token.Issuer,
	store tokenstore.Store,
	rec outcomes.Recorder,
	whitelist []string,
	workers int,
	logger logging.Logger,
) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if rec == nil {
		rec = outcomes.NoopRecorder{}
	}
	return &Orchestrator{
		registrar: registrar,
		recorder:  recorder,
		issuer:    issuer,
		store:     store,
		outcomes:  rec,
		logger:    logger.With("module", "onboarding"),
		whitelist: whitelist,
		workers:   workers,
	}
}

// Run processes every user in batch order and persists the issued tokens.
// The returned slice order equals input order regardless of the worker
// count: parallel results are rejoined by batch index before the persist.
func (o *Orchestrator) Run(ctx context.Context, users []batch.UserRecord) ([]token.IssuedToken, error) {
	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)

	log.Info(ctx, "starting onboarding run", "users", len(users), "workers", o.workers)

	results := make([]*token.IssuedToken, len(users))

	if o.workers == 1 {
		for i := range users {
			results[i] = o.processUser(ctx, log, runID, i, &users[i])
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for i := range users {
			i := i
			g.Go(func() error {
				results[i] = o.processUser(gctx, log, runID, i, &users[i])
				return nil
			})
		}
		// workers never return errors, best-effort policy
		_ = g.Wait()
	}

	tokens := make([]token.IssuedToken, 0, len(users))
	for _, t := range results {
		if t != nil {
			tokens = append(tokens, *t)
		}
	}

	if err := o.store.Persist(ctx, tokens); err != nil {
		log.Error(ctx, "persisting tokens failed", "error", err.Error())
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	log.Info(ctx, "onboarding run complete", "issued", len(tokens), "skipped", len(users)-len(tokens))
	return tokens, nil
}

// processUser walks one user through registration, ledger recording, and
// token issuance. It returns nil only for a malformed record; step failures
// do not stop issuance.
func (o *Orchestrator) processUser(ctx context.Context, log logging.Logger, runID string, idx int, user *batch.UserRecord) *token.IssuedToken {
	if err := user.Validate(); err != nil {
		log.Warn(ctx, "skipping invalid user record", "index", idx, "error", err.Error())
		o.record(ctx, log, runID, user.UserID, outcomes.StageSkippedInvalid, err.Error())
		return nil
	}

	ulog := log.With("user", user.UserID, "org", user.Org)

	attrs := batch.WhitelistAttributes(user, o.whitelist)
	if reg, err := o.registrar.Register(ctx, user.UserID, user.Org, attrs, true); err != nil {
		ulog.Warn(ctx, "identity registration failed", "error", err.Error())
		o.record(ctx, log, runID, user.UserID, outcomes.StageRegistrationFailed, err.Error())
	} else {
		ulog.Debug(ctx, "identity registered", "handle", reg.Handle, "reused", reg.Reused)
		o.record(ctx, log, runID, user.UserID, outcomes.StageRegistered, reg.Handle)
	}

	if txID, err := o.recorder.SubmitAddUser(ctx, user); err != nil {
		ulog.Warn(ctx, "ledger recording failed", "error", err.Error())
		o.record(ctx, log, runID, user.UserID, outcomes.StageLedgerFailed, err.Error())
	} else {
		ulog.Debug(ctx, "user recorded on ledger", "tx_id", txID)
		o.record(ctx, log, runID, user.UserID, outcomes.StageLedgerRecorded, txID)
	}

	tok, err := o.issuer.Issue(user)
	if err != nil {
		ulog.Error(ctx, "token issuance failed", "error", err.Error())
		o.record(ctx, log, runID, user.UserID, outcomes.StageSkippedInvalid, err.Error())
		return nil
	}

	o.record(ctx, log, runID, user.UserID, outcomes.StageTokenIssued, "")
	return tok
}

func (o *Orchestrator) record(ctx context.Context, log logging.Logger, runID, userID string, stage outcomes.Stage, detail string) {
	err := o.outcomes.Record(ctx, &outcomes.Outcome{
		RunID:  runID,
		UserID: userID,
		Stage:  stage,
		Detail: detail,
	})
	if err != nil {
		// telemetry only, never gates the batch
		log.Debug(ctx, "outcome not recorded", "user", userID, "stage", string(stage), "error", err.Error())
	}
}
