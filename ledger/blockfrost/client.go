// Package blockfrost implements ledger.Backend against the Blockfrost Cardano API.
package blockfrost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/x402-foundation/x402-cardano/ledger"
)

const (
	MainnetURL = "https://cardano-mainnet.blockfrost.io/api/v0"
	PreprodURL = "https://cardano-preprod.blockfrost.io/api/v0"

	DefaultSubmitTimeout     = 30 * time.Second
	DefaultFetchTimeout      = 15 * time.Second
	DefaultRequestsPerSecond = 10

	projectIDHeader = "project_id"
	contentTypeCBOR = "application/cbor"
)

// BaseURLForNetwork returns the API root for a network name
func BaseURLForNetwork(network string) string {
	if network == "cardano-mainnet" {
		return MainnetURL
	}
	return PreprodURL
}

// Config configures the Blockfrost client
type Config struct {
	// BaseURL is the API root (optional, defaults to MainnetURL)
	BaseURL string

	// ProjectID is sent in the project_id header
	ProjectID string

	// HTTPClient is the HTTP client to use (optional)
	HTTPClient *http.Client

	// SubmitTimeout bounds a submission (optional, defaults to 30s)
	SubmitTimeout time.Duration

	// FetchTimeout bounds an outputs lookup (optional, defaults to 15s)
	FetchTimeout time.Duration

	// RequestsPerSecond limits outgoing requests (optional, defaults to 10; negative disables)
	RequestsPerSecond float64
}

// Client is a minimal Blockfrost API client
type Client struct {
	baseURL       string
	projectID     string
	httpClient    *http.Client
	submitTimeout time.Duration
	fetchTimeout  time.Duration
	limiter       *rate.Limiter
}

// NewClient creates a new Blockfrost client
func NewClient(config Config) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = MainnetURL
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	submitTimeout := config.SubmitTimeout
	if submitTimeout == 0 {
		submitTimeout = DefaultSubmitTimeout
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout == 0 {
		fetchTimeout = DefaultFetchTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	rps := config.RequestsPerSecond
	if rps == 0 {
		rps = DefaultRequestsPerSecond
	}
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}

	return &Client{
		baseURL:       baseURL,
		projectID:     config.ProjectID,
		httpClient:    httpClient,
		submitTimeout: submitTimeout,
		fetchTimeout:  fetchTimeout,
		limiter:       limiter,
	}
}

// ============================================================================
// ledger.Backend Implementation
// ============================================================================

// SubmitTx posts raw CBOR to /tx/submit
func (c *Client) SubmitTx(ctx context.Context, rawTx []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, "/tx/submit", bytes.NewReader(rawTx))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentTypeCBOR)

	body, err := c.do(req)
	if err != nil {
		return "", err
	}

	// The hash is returned as a JSON string
	var txHash string
	if err := json.Unmarshal(body, &txHash); err != nil {
		txHash = strings.Trim(strings.TrimSpace(string(body)), `"`)
	}
	return txHash, nil
}

// TxOutputs fetches /txs/{hash}/utxos
func (c *Client) TxOutputs(ctx context.Context, txHash string) ([]ledger.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/txs/"+url.PathEscape(txHash)+"/utxos", nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(req)
	if err != nil {
		var backendErr *ledger.BackendError
		if errors.As(err, &backendErr) && backendErr.StatusCode == http.StatusNotFound {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}

	var utxos txUtxos
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, fmt.Errorf("failed to decode utxos response: %w", err)
	}
	return utxos.Outputs, nil
}

// ============================================================================
// Internal
// ============================================================================

type txUtxos struct {
	Hash    string          `json:"hash"`
	Outputs []ledger.Output `json:"outputs"`
}

type apiError struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.projectID != "" {
		req.Header.Set(projectIDHeader, c.projectID)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		backendErr := &ledger.BackendError{StatusCode: resp.StatusCode}
		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil {
			backendErr.Kind = apiErr.Error
			backendErr.Message = apiErr.Message
		}
		return nil, backendErr
	}
	return body, nil
}

var _ ledger.Backend = (*Client)(nil)
