// Package explorer fetches paged account transaction history from an
// etherscan-compatible indexing API.
package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"deposit-reconciler/internal/domain"
)

// Default configuration values.
const (
	DefaultPageSize = 100
	DefaultTimeout  = 30 * time.Second
)

// msgNoTransactions is the API's empty-history message; paired with an empty
// result it marks the normal end of pagination.
const msgNoTransactions = "No transactions found"

// Client fetches one page of transaction summaries per call.
// Pages are requested newest-block-first; page 1 is the most recent page.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	client   *http.Client
	limiter  *rate.Limiter // nil disables client-side throttling
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithPageSize sets the fixed page size shared across all calls.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithRateLimit installs a token-bucket limiter in front of every request.
// The explorer API key is shared across all concurrent scans; a limiter keeps
// the aggregate request rate under the provider quota.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewClient creates a new explorer client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize returns the fixed page size used for every request.
func (c *Client) PageSize() int {
	return c.pageSize
}

// listResponse is the raw explorer envelope.
type listResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Result  []rawTxSummary `json:"result"`
}

// rawTxSummary is one raw record of an account-history page.
type rawTxSummary struct {
	Hash  string `json:"hash"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// FetchPage fetches one page of transaction summaries for an address.
// startBlock bounds the query to blocks at or after that height; it is supplied
// by the caller and never recomputed here. An empty slice means the account
// history is exhausted.
func (c *Client) FetchPage(ctx context.Context, address string, startBlock int64, page int) ([]domain.TransactionSummary, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{Message: "rate limiter wait", Err: err}
		}
	}

	q := url.Values{}
	q.Set("module", "account")
	q.Set("action", "txlist")
	q.Set("address", address)
	q.Set("startblock", strconv.FormatInt(startBlock, 10))
	q.Set("page", strconv.Itoa(page))
	q.Set("offset", strconv.Itoa(c.pageSize))
	q.Set("sort", "desc")
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Message: "create request", Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Message: "http request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Message: "unmarshal response", Err: err}
	}

	// The API reports an exhausted history as status "0" with the message
	// "No transactions found" and an empty result. That is a normal end of
	// pagination. Every other non-OK status is a failure, even when it
	// happens to carry an empty result array.
	if list.Status != "1" {
		if len(list.Result) == 0 && strings.EqualFold(list.Message, msgNoTransactions) {
			return nil, nil
		}
		return nil, &FetchError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("api status %s: %s", list.Status, list.Message),
		}
	}

	return decodeSummaries(list.Result)
}

// decodeSummaries validates raw records into domain summaries.
// A decode failure is reported the same way as a transport failure by callers:
// the page is unusable and the scan aborts.
func decodeSummaries(raw []rawTxSummary) ([]domain.TransactionSummary, error) {
	summaries := make([]domain.TransactionSummary, 0, len(raw))
	for i, r := range raw {
		if r.Hash == "" {
			return nil, &SchemaError{Index: i, Field: "hash"}
		}
		if r.From == "" {
			return nil, &SchemaError{Index: i, Field: "from"}
		}
		// "to" may legitimately be empty for contract creations; the verifier
		// rejects those later. Missing value is a schema violation.
		if r.Value == "" {
			return nil, &SchemaError{Index: i, Field: "value"}
		}
		value, ok := new(big.Int).SetString(r.Value, 10)
		if !ok || value.Sign() < 0 {
			return nil, &SchemaError{Index: i, Field: "value"}
		}
		summaries = append(summaries, domain.TransactionSummary{
			Hash:  r.Hash,
			From:  r.From,
			To:    r.To,
			Value: value,
		})
	}
	return summaries, nil
}
