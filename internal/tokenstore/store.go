// Package tokenstore persists the issued token set. FileStore is the
// durable local artifact the run is judged by; S3Store optionally uploads a
// copy for client distribution.
package tokenstore

import (
	"context"

	"github.com/auctionledger/onboard/internal/token"
)

// Store replaces the persisted token set wholesale with tokens, preserving
// their order. A Store is written exactly once per batch run.
type Store interface {
	Persist(ctx context.Context, tokens []token.IssuedToken) error
}
