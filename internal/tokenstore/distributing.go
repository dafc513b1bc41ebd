package tokenstore

import (
	"context"

	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/token"
)

// DistributingStore persists through the primary store, then best-effort
// copies the set to the secondary. A secondary failure is logged and
// swallowed: only the primary decides whether the run persisted.
type DistributingStore struct {
	primary   Store
	secondary Store
	logger    logging.Logger
}

func NewDistributingStore(primary, secondary Store, logger logging.Logger) *DistributingStore {
	return &DistributingStore{primary: primary, secondary: secondary, logger: logger.With("module", "distributing_store")}
}

func (s *DistributingStore) Persist(ctx context.Context, tokens []token.IssuedToken) error {
	if err := s.primary.Persist(ctx, tokens); err != nil {
		return err
	}

	if s.secondary != nil {
		if err := s.secondary.Persist(ctx, tokens); err != nil {
			s.logger.Warn(ctx, "token distribution failed", "error", err.Error())
		}
	}

	return nil
}
