package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/auctionledger/onboard/internal/batch"
	"github.com/auctionledger/onboard/internal/common"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// GatewayClient invokes chaincode through the network's REST gateway.
// The gateway signs and submits the transaction to the configured peers on
// behalf of the identity named in the X-As-User / X-As-Org headers.
type GatewayClient struct {
	endpoint  string
	peers     []string
	channel   string
	chaincode string
	hc        *http.Client
	logger    logging.Logger
	attempts  uint64
	backoff   time.Duration
}

func NewGatewayClient(endpoint string, peers []string, channel, chaincode string, attempts int, backoff time.Duration, logger logging.Logger) *GatewayClient {
	return &GatewayClient{
		endpoint:  strings.TrimRight(endpoint, "/"),
		peers:     peers,
		channel:   channel,
		chaincode: chaincode,
		hc:        &http.Client{Timeout: 60 * time.Second},
		logger:    logger.With("module", "gateway_client"),
		attempts:  uint64(attempts),
		backoff:   backoff,
	}
}

type invokeRequest struct {
	Peers []string `json:"peers"`
	Fn    string   `json:"fn"`
	Args  []string `json:"args"`
}

type invokeResponse struct {
	Success bool   `json:"success"`
	TxID    string `json:"txId"`
	Message string `json:"message"`
}

// SubmitAddUser submits an addUser transaction carrying the full serialized
// user record (balance included: the ledger is the system of record for it)
// as the identity of the user being onboarded.
func (c *GatewayClient) SubmitAddUser(ctx context.Context, user *batch.UserRecord) (string, error) {
	arg, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrLedgerFailed, err)
	}
	return c.Invoke(ctx, "addUser", []string{string(arg)}, user.UserID, user.Org)
}

// Invoke calls fn on the configured channel/chaincode and returns the
// transaction ID. Network errors and 5xx responses are retried with
// exponential backoff.
func (c *GatewayClient) Invoke(ctx context.Context, fn string, args []string, asUser, asOrg string) (string, error) {
	body, err := json.Marshal(invokeRequest{Peers: c.peers, Fn: fn, Args: args})
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrLedgerFailed, err)
	}

	url := fmt.Sprintf("%s/channels/%s/chaincodes/%s", c.endpoint, c.channel, c.chaincode)
	requestID := uuid.NewString()

	var txID string
	b := retry.WithMaxRetries(c.attempts, retry.NewExponential(c.backoff))

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		txID, err = c.invoke(ctx, url, requestID, asUser, asOrg, body)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s as %s@%s: %w", common.ErrLedgerFailed, fn, asUser, asOrg, err)
	}

	c.logger.Debug(ctx, "chaincode invoked", "fn", fn, "tx_id", txID, "request_id", requestID)
	return txID, nil
}

func (c *GatewayClient) invoke(ctx context.Context, url, requestID, asUser, asOrg string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("X-As-User", asUser)
	req.Header.Set("X-As-Org", asOrg)

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("%w: %w", common.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", retry.RetryableError(err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", retry.RetryableError(fmt.Errorf("%w: gateway returned %d", common.ErrUnavailable, resp.StatusCode))
	}

	gwResp := &invokeResponse{}
	if err := json.Unmarshal(data, gwResp); err != nil {
		return "", fmt.Errorf("decode gateway response: %w", err)
	}

	if !gwResp.Success {
		return "", fmt.Errorf("gateway rejected transaction: %s", gwResp.Message)
	}

	return gwResp.TxID, nil
}
