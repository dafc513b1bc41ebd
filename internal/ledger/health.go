package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/auctionledger/onboard/internal/common"
	"github.com/auctionledger/onboard/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// PeerHealth checks peer gRPC endpoints before a batch run. The check is a
// preflight only: an unhealthy peer is logged, the run proceeds anyway.
type PeerHealth struct {
	timeout time.Duration
	logger  logging.Logger
}

func NewPeerHealth(timeout time.Duration, logger logging.Logger) *PeerHealth {
	return &PeerHealth{timeout: timeout, logger: logger.With("module", "peer_health")}
}

// Check dials addr and queries the standard gRPC health service.
func (p *PeerHealth) Check(ctx context.Context, addr string) error {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", common.ErrUnavailable, addr, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("%w: health check %s: %w", common.ErrUnavailable, addr, err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: peer %s reports %s", common.ErrUnavailable, addr, resp.GetStatus())
	}

	return nil
}

// CheckAll checks every peer and returns the number that answered healthy.
func (p *PeerHealth) CheckAll(ctx context.Context, peers []string) int {
	healthy := 0
	for _, addr := range peers {
		if err := p.Check(ctx, addr); err != nil {
			p.logger.Warn(ctx, "peer preflight failed", "peer", addr, "error", err.Error())
			continue
		}
		p.logger.Debug(ctx, "peer healthy", "peer", addr)
		healthy++
	}
	return healthy
}
