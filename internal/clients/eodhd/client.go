// Package eodhd provides a client for the EODHD real-time quote API
package eodhd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bobmcallan/intellivest/internal/common"
	"github.com/bobmcallan/intellivest/internal/interfaces"
	"github.com/bobmcallan/intellivest/internal/models"
)

// flexFloat64 handles JSON values that may be either a number or a string.
// EODHD reports missing values as "NA".
type flexFloat64 float64

func (f *flexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "NA" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = flexFloat64(num)
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into float64", string(data))
}

const (
	DefaultBaseURL   = "https://eodhd.com/api"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client fetches real-time quotes from EODHD.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

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

// NewClient creates a new EODHD client
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an API error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("EODHD API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request. HTTP 429 is reported as
// common.ErrUpstreamRateLimited wrapping the APIError.
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_token", c.apiKey)
	params.Set("fmt", "json")

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("EODHD API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusPaymentRequired {
			return fmt.Errorf("%w: %w", common.ErrUpstreamRateLimited, apiErr)
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// realTimeResponse is one element of the /real-time response.
type realTimeResponse struct {
	Code          string      `json:"code"`
	Timestamp     flexFloat64 `json:"timestamp"`
	Close         flexFloat64 `json:"close"`
	PreviousClose flexFloat64 `json:"previousClose"`
	Change        flexFloat64 `json:"change"`
	ChangePct     flexFloat64 `json:"change_p"`
}

func (r realTimeResponse) toQuote() models.RealTimeQuote {
	q := models.RealTimeQuote{
		Code:          strings.ToUpper(r.Code),
		Close:         float64(r.Close),
		PreviousClose: float64(r.PreviousClose),
		Change:        float64(r.Change),
		ChangePct:     float64(r.ChangePct),
	}
	if r.Timestamp > 0 {
		q.Timestamp = time.Unix(int64(r.Timestamp), 0)
	}
	return q
}

// GetRealTimeQuotes retrieves live quotes for tickers in one request:
// GET /real-time/{first}?s={rest,...}. EODHD answers with an object for a
// single ticker and an array for several.
func (c *Client) GetRealTimeQuotes(ctx context.Context, tickers []string) ([]models.RealTimeQuote, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	params := url.Values{}
	if len(tickers) > 1 {
		params.Set("s", strings.Join(tickers[1:], ","))
	}
	path := "/real-time/" + url.PathEscape(tickers[0])

	var raw json.RawMessage
	if err := c.get(ctx, path, params, &raw); err != nil {
		return nil, err
	}

	var items []realTimeResponse
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0:
		return nil, nil
	case trimmed[0] == '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode real-time quotes: %w", err)
		}
	default:
		var one realTimeResponse
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("failed to decode real-time quote: %w", err)
		}
		items = []realTimeResponse{one}
	}

	quotes := make([]models.RealTimeQuote, 0, len(items))
	for _, item := range items {
		quotes = append(quotes, item.toQuote())
	}
	return quotes, nil
}

// GetRealTimeQuote retrieves a single live quote.
func (c *Client) GetRealTimeQuote(ctx context.Context, ticker string) (*models.RealTimeQuote, error) {
	quotes, err := c.GetRealTimeQuotes(ctx, []string{ticker})
	if err != nil {
		return nil, err
	}
	if len(quotes) == 0 {
		return nil, errors.New("no quote returned for " + ticker)
	}
	return &quotes[0], nil
}

// FetchQuotes resolves tickers to last prices. Quotes without a usable close
// ("NA" or zero) are omitted.
func (c *Client) FetchQuotes(ctx context.Context, tickers []string) (map[string]float64, error) {
	quotes, err := c.GetRealTimeQuotes(ctx, tickers)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		if q.Code == "" || !common.IsPositiveFinite(q.Close) {
			c.logger.Debug().Str("ticker", q.Code).Msg("No usable close in EODHD quote")
			continue
		}
		prices[q.Code] = q.Close
	}
	return prices, nil
}

// Ensure Client implements QuoteFetcher
var _ interfaces.QuoteFetcher = (*Client)(nil)
