// Package ledger submits onboarding transactions to the distributed ledger
// network. The core depends on the Recorder contract; GatewayClient is the
// HTTP gateway implementation and PeerHealth the optional gRPC preflight.
package ledger

import (
	"context"

	"github.com/auctionledger/onboard/internal/batch"
)

// Recorder records a user's existence on the ledger. SubmitAddUser is one
// blocking call per user; implementations may retry transient failures
// internally. The returned string is the ledger transaction ID.
type Recorder interface {
	SubmitAddUser(ctx context.Context, user *batch.UserRecord) (string, error)
}
