// Package remote implements the ledger gateway over a ledger node's HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/rps-ledger/internal/api/apierr"
	"github.com/mcoot/rps-ledger/internal/api/middleware"
	"github.com/mcoot/rps-ledger/internal/api/request"
	"github.com/mcoot/rps-ledger/internal/api/response"
	"github.com/mcoot/rps-ledger/internal/model"
)

const apiPrefix = "/api/v1"

// Client is an HTTP client for a ledger node
type Client struct {
	baseURL    string
	httpClient *http.Client
	// streamClient has no timeout; event streams stay open
	streamClient *http.Client
}

// NewClient creates a new ledger node client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the node URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Gateway returns a gateway bound to one contract on this node
func (c *Client) Gateway(contract model.Address) *Gateway {
	return &Gateway{client: c, contract: contract}
}

// unreachable classifies a transport failure
func unreachable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrUnreachable, err)
}

// Do performs a JSON request. account, when set, is sent as the caller.
// Errors carry the model error kind the node reported; transport failures
// and server errors are ErrUnreachable.
func (c *Client) Do(ctx context.Context, method, path string, account model.Address, body, result any) error {
	url := c.baseURL + apiPrefix + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if account.IsSet() {
		req.Header.Set(middleware.AccountHeader, account.String())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unreachable(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return unreachable(err)
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%w: failed to parse response: %v", model.ErrUnreachable, err)
		}
	}

	return nil
}

// decodeError maps an error response back to a model error
func decodeError(resp *http.Response) error {
	respBody, _ := io.ReadAll(resp.Body)

	var errResp apierr.ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Code != "" {
		if mapped := apierr.ToError(errResp.Error); mapped != nil {
			return mapped
		}
		return fmt.Errorf("%w: %s (%s)", model.ErrUnreachable, errResp.Error.Message, errResp.Error.Code)
	}
	return fmt.Errorf("%w: HTTP %d: %s", model.ErrUnreachable, resp.StatusCode, strings.TrimSpace(string(respBody)))
}

// Health checks that the node is serving
func (c *Client) Health(ctx context.Context) error {
	var health response.Health
	if err := c.Do(ctx, http.MethodGet, "/health", model.NoAddress, nil, &health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("%w: node status %q", model.ErrUnreachable, health.Status)
	}
	return nil
}

// Deploy creates a contract on the node
func (c *Client) Deploy(ctx context.Context, req request.DeployRequest) (response.Contract, error) {
	var contract response.Contract
	err := c.Do(ctx, http.MethodPost, "/contracts", model.NoAddress, req, &contract)
	return contract, err
}

// Contracts lists the node's contracts
func (c *Client) Contracts(ctx context.Context) ([]response.Contract, error) {
	var list response.ContractList
	if err := c.Do(ctx, http.MethodGet, "/contracts", model.NoAddress, nil, &list); err != nil {
		return nil, err
	}
	return list.Contracts, nil
}

// Contract returns a contract's summary
func (c *Client) Contract(ctx context.Context, addr model.Address) (response.Contract, error) {
	var contract response.Contract
	err := c.Do(ctx, http.MethodGet, "/contracts/"+addr.String(), model.NoAddress, nil, &contract)
	return contract, err
}

// Balance returns the payouts credited to an account
func (c *Client) Balance(ctx context.Context, account model.Address) (uint64, error) {
	var balance response.Balance
	if err := c.Do(ctx, http.MethodGet, "/accounts/"+account.String()+"/balance", model.NoAddress, nil, &balance); err != nil {
		return 0, err
	}
	return balance.Balance, nil
}
