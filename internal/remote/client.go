// Package remote is the HTTP client of the back-office.
//
// Client implements reconcile.Remote and netstatus.Pinger. Every mutation
// is a POST of an operation envelope; the operation id makes resubmission
// safe.
package remote

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

	"github.com/roach88/possync/internal/apperr"
	"github.com/roach88/possync/internal/model"
	"github.com/roach88/possync/internal/ops"
)

// ErrNoRemote is returned by commands that need a back-office URL when none
// is configured.
var ErrNoRemote = errors.New("no remote_url configured")

// Client talks to one back-office.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client. timeout bounds each request.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping checks the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz: status %d", resp.StatusCode)
	}
	return nil
}

// Submit posts one operation. Conflicts come back as CONFLICT errors and
// every other failure as SYNC_FAILED.
func (c *Client) Submit(ctx context.Context, meta ops.Meta, p ops.Payload) (ops.Ack, error) {
	env, err := ops.EnvelopeOf(meta, p)
	if err != nil {
		return ops.Ack{}, apperr.Sync("encode operation", err)
	}
	body, err := json.Marshal(env)
	if err != nil {
		return ops.Ack{}, apperr.Sync("encode operation", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/operations", bytes.NewReader(body))
	if err != nil {
		return ops.Ack{}, apperr.Sync("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", meta.ID)
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return ops.Ack{}, apperr.Sync("remote unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ops.Ack{}, decodeError(resp)
	}
	var ack ops.Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return ops.Ack{}, apperr.Sync("decode acknowledgement", err)
	}
	return ack, nil
}

// Transactions lists the transactions the back-office holds for a store.
func (c *Client) Transactions(ctx context.Context, storeID string) ([]model.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/stores/"+storeID+"/transactions", nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Sync("remote unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var txns []model.Transaction
	if err := json.NewDecoder(resp.Body).Decode(&txns); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}
	return txns, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeError(resp *http.Response) error {
	var we ops.WireError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &we); err != nil || we.Message == "" {
		we.Message = strings.TrimSpace(string(data))
	}
	if we.Message == "" {
		we.Message = http.StatusText(resp.StatusCode)
	}

	cause := fmt.Errorf("status %d: %s", resp.StatusCode, we.Message)
	switch {
	case resp.StatusCode == http.StatusConflict:
		return apperr.Sync("back-office rejected operation", apperr.Wrap(apperr.CodeConflict, we.Message, cause))
	case resp.StatusCode == http.StatusUnauthorized:
		return apperr.Sync("back-office refused credentials", cause)
	case resp.StatusCode == http.StatusForbidden:
		return apperr.Sync("back-office denied operation", cause)
	case resp.StatusCode >= 500:
		return apperr.Sync("back-office failure", cause)
	default:
		return apperr.Sync("back-office rejected request", cause)
	}
}
