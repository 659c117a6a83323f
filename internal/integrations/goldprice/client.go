// Package goldprice wraps the live gold price lookup. Every failure mode is
// folded into the returned PriceQuote; FetchPrice never surfaces an error to
// its caller, so the chat pipeline degrades instead of crashing when the
// upstream misbehaves.
package goldprice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"gold-agent/internal/domain"
)

const defaultBaseURL = "https://www.goldapi.io"

// priceResponse is the minimal response shape of the XAU/INR endpoint.
// price_gram_24k is the per-gram price in INR.
type priceResponse struct {
	PriceGram24K float64 `json:"price_gram_24k"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// Client fetches the live INR-per-gram gold price.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore.Getter for API
// token retrieval. The token is fetched from SSM on the first FetchPrice call
// and reused for the lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("goldprice: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("goldprice: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.paramPrefix+"/gold-api-token")
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func priceURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/api/XAU/INR"
}

// FetchPrice attempts one remote lookup with a bounded timeout. Transport and
// timeout failures come back as PriceError; a reachable upstream without a
// usable per-gram value comes back as PriceUnavailable. The two states read
// the same to the user but must be logged separately by the caller.
func (c *Client) FetchPrice(ctx context.Context) domain.PriceQuote {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return domain.PriceQuote{State: domain.PriceError, Err: err}
	}

	url := priceURL(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.PriceQuote{State: domain.PriceError, Err: fmt.Errorf("goldprice: create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-access-token", apiKey)

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return domain.PriceQuote{State: domain.PriceError, Err: fmt.Errorf("goldprice: request failed: %w", err)}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.PriceQuote{
			State: domain.PriceError,
			Err:   fmt.Errorf("goldprice: unexpected status %d from %s: %s", res.StatusCode, url, string(buf)),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return domain.PriceQuote{State: domain.PriceError, Err: fmt.Errorf("goldprice: read response body: %w", err)}
	}

	var payload priceResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.PriceQuote{State: domain.PriceUnavailable, Err: fmt.Errorf("goldprice: decode response: %w", err)}
	}
	if payload.PriceGram24K <= 0 {
		return domain.PriceQuote{State: domain.PriceUnavailable}
	}

	return domain.PriceQuote{
		State:      domain.PriceAvailable,
		PerGramINR: math.Round(payload.PriceGram24K*100) / 100,
	}
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("goldprice: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("goldprice: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("goldprice: API token is empty")
	}
	return tp.Token, nil
}
