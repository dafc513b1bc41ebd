package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/auctionledger/onboard/internal/common"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/sethvargo/go-retry"
)

// CAClient registers identities through the CA's REST API. Transient
// failures (network errors, 5xx responses) are retried with exponential
// backoff; a 4xx response other than "already registered" is permanent.
type CAClient struct {
	endpoint    string
	adminUser   string
	adminSecret string
	hc          *http.Client
	logger      logging.Logger
	attempts    uint64
	backoff     time.Duration
}

func NewCAClient(endpoint, adminUser, adminSecret string, attempts int, backoff time.Duration, logger logging.Logger) *CAClient {
	return &CAClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		adminUser:   adminUser,
		adminSecret: adminSecret,
		hc:          &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With("module", "ca_client"),
		attempts:    uint64(attempts),
		backoff:     backoff,
	}
}

type registerAttr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type registerRequest struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	Affiliation string         `json:"affiliation"`
	Secret      string         `json:"secret"`
	Attrs       []registerAttr `json:"attrs,omitempty"`
}

type registerResponse struct {
	Success bool `json:"success"`
	Result  struct {
		Secret string `json:"secret"`
	} `json:"result"`
	Errors []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Register registers userID under the org affiliation, forwarding the given
// attributes. An identity that is already registered is reported as a
// success with Reused set. asAdmin selects the admin identity for the call;
// the batch flow always registers as admin.
func (c *CAClient) Register(ctx context.Context, userID, org string, attrs map[string]string, asAdmin bool) (*Registration, error) {
	secret, err := DeriveEnrollmentSecret(c.adminSecret, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRegistrationFailed, err)
	}

	req := registerRequest{
		ID:          userID,
		Type:        "client",
		Affiliation: org,
		Secret:      secret,
	}
	for name, value := range attrs {
		req.Attrs = append(req.Attrs, registerAttr{Name: name, Value: value})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrRegistrationFailed, err)
	}

	var reg *Registration
	b := retry.WithMaxRetries(c.attempts, retry.NewExponential(c.backoff))

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		reg, err = c.register(ctx, userID, asAdmin, body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: user %s: %w", common.ErrRegistrationFailed, userID, err)
	}

	return reg, nil
}

func (c *CAClient) register(ctx context.Context, userID string, asAdmin bool, body []byte) (*Registration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/v1/register", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if asAdmin {
		httpReq.SetBasicAuth(c.adminUser, c.adminSecret)
	}

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("%w: %w", common.ErrUnavailable, err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.RetryableError(err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("%w: CA returned %d", common.ErrUnavailable, resp.StatusCode))
	}

	caResp := &registerResponse{}
	if err := json.Unmarshal(data, caResp); err != nil {
		return nil, fmt.Errorf("decode CA response: %w", err)
	}

	if caResp.Success {
		return &Registration{Handle: userID}, nil
	}

	// Re-registration of a known identity is a success: re-running the
	// batch must not fail.
	if resp.StatusCode == http.StatusConflict || alreadyRegistered(caResp) {
		c.logger.Debug(ctx, "identity already registered", "user", userID)
		return &Registration{Handle: userID, Reused: true}, nil
	}

	if len(caResp.Errors) > 0 {
		return nil, fmt.Errorf("CA error %d: %s", caResp.Errors[0].Code, caResp.Errors[0].Message)
	}
	return nil, fmt.Errorf("CA returned status %d", resp.StatusCode)
}

func alreadyRegistered(resp *registerResponse) bool {
	for _, e := range resp.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already registered") {
			return true
		}
	}
	return false
}
