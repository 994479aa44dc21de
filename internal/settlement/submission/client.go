// Package submission dispatches settlement payloads to the payment endpoint.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/settle/internal/settlement"
)

var (
	// ErrAuthorizationRequired is returned when no authorization code is supplied.
	ErrAuthorizationRequired = errors.New("submission: authorization code required")
	// ErrSubmitRejected wraps a non-2xx answer from the payment endpoint.
	ErrSubmitRejected = errors.New("submission: rejected")
)

const (
	headerAuthorizationCode = "X-Authorization-Code"
	headerIdempotencyKey    = "Idempotency-Key"
)

// Receipt is what the payment endpoint returned.
type Receipt struct {
	IdempotencyKey string          `json:"idempotencyKey"`
	Status         int             `json:"status"`
	Body           json.RawMessage `json:"body,omitempty"`
}

// Client posts payloads to the payment submission endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient constructs a client with the given request timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit sends the payload once. The idempotency key lets the server drop a
// duplicate if the caller retries after a lost response.
func (c *Client) Submit(ctx context.Context, payload settlement.SubmissionPayload, authCode string) (Receipt, error) {
	authCode = strings.TrimSpace(authCode)
	if authCode == "" {
		return Receipt{}, ErrAuthorizationRequired
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Receipt{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	key := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAuthorizationCode, authCode)
	req.Header.Set(headerIdempotencyKey, key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("submission: post: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Receipt{}, fmt.Errorf("submission: read response: %w", err)
	}
	receipt := Receipt{IdempotencyKey: key, Status: resp.StatusCode}
	if json.Valid(raw) {
		receipt.Body = raw
	}
	if resp.StatusCode >= 400 {
		return receipt, fmt.Errorf("%w: status %d", ErrSubmitRejected, resp.StatusCode)
	}
	return receipt, nil
}
