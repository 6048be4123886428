// Package priceapi is a client for the companion stock-price endpoint,
// GET /api/stock-prices?symbols=A,B,C.
package priceapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 5 // requests per second

	// LimitMessage is the error body the endpoint returns when its upstream is rate limited.
	LimitMessage = "API limit reached"
)

// Client calls the companion price endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client for the endpoint served at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents an error body returned by the endpoint.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("price API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type errorBody struct {
	Error string `json:"error"`
}

// FetchQuotes requests prices for tickers. Tickers the endpoint cannot
// resolve are absent from the result.
func (c *Client) FetchQuotes(ctx context.Context, tickers []string) (map[string]float64, error) {
	if len(tickers) == 0 {
		return map[string]float64{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	const path = "/api/stock-prices"
	params := url.Values{}
	params.Set("symbols", strings.Join(tickers, ","))
	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Int("symbols", len(tickers)).Msg("Price API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body)), Endpoint: path}
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		if resp.StatusCode == http.StatusTooManyRequests || strings.EqualFold(apiErr.Message, LimitMessage) {
			return nil, fmt.Errorf("%w: %w", common.ErrUpstreamRateLimited, apiErr)
		}
		return nil, apiErr
	}

	var raw map[string]*float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	prices := make(map[string]float64, len(raw))
	for ticker, price := range raw {
		if price == nil || !common.IsPositiveFinite(*price) {
			continue
		}
		prices[strings.ToUpper(ticker)] = *price
	}
	return prices, nil
}

// Ensure Client implements QuoteFetcher
var _ interfaces.QuoteFetcher = (*Client)(nil)
