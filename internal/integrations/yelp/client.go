package yelp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Business is the subset of a Yelp business record used by the seeding loader.
type Business struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ReviewCount int         `json:"review_count"`
	Rating      float64     `json:"rating"`
	Coordinates Coordinates `json:"coordinates"`
	Location    Location    `json:"location"`
}

// Coordinates may arrive with either field missing for unmapped businesses.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Location is the structured address block of a business.
type Location struct {
	Address1 string `json:"address1"`
	Address2 string `json:"address2"`
	Address3 string `json:"address3"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zip_code"`
}

// searchResponse is the minimal response shape of the business search endpoint.
type searchResponse struct {
	Businesses []Business `json:"businesses"`
	Total      int        `json:"total"`
}

// SearchParams are the query parameters for one business search page.
type SearchParams struct {
	Term     string
	Location string
	Limit    int // Yelp caps pages at 50
	Offset   int
	SortBy   string
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("yelp: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused Yelp Fusion client for business search.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     Getter
	paramName  string

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

// NewClient creates a new Client backed by the given paramstore Getter for
// API key retrieval. The key is fetched on the first search and reused for
// the lifetime of the process.
func NewClient(ps Getter, paramName string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("yelp: paramstore getter must not be nil")
	}
	paramName = strings.TrimSpace(paramName)
	if paramName == "" {
		return nil, errors.New("yelp: parameter name must not be empty")
	}
	c := &Client{
		baseURL:    "https://api.yelp.com/v3",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		getter:     ps,
		paramName:  paramName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// resolveAPIKey fetches the API key from the parameter store on the first
// call and returns the cached result on every subsequent call.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.paramName)
	})
	return c.apiKey, c.keyErr
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func searchURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.yelp.com/v3"
	}
	if strings.HasSuffix(base, "/v3") {
		return base + "/businesses/search"
	}
	return base + "/v3/businesses/search"
}

// SearchBusinesses fetches one page of business search results.
func (c *Client) SearchBusinesses(ctx context.Context, p SearchParams) ([]Business, error) {
	if strings.TrimSpace(p.Term) == "" {
		return nil, errors.New("yelp: term must not be empty")
	}
	if strings.TrimSpace(p.Location) == "" {
		return nil, errors.New("yelp: location must not be empty")
	}
	if p.Limit <= 0 || p.Limit > 50 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.SortBy == "" {
		p.SortBy = "best_match"
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("term", p.Term)
	q.Set("location", p.Location)
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	q.Set("sort_by", p.SortBy)
	reqURL := searchURL(c.baseURL) + "?" + q.Encode()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("yelp: create request: %w", reqErr)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, reqURL)
	if err != nil {
		return nil, fmt.Errorf("yelp: request failed: %w", err)
	}

	var payload searchResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return nil, fmt.Errorf("yelp: decode response: %w", decErr)
	}
	return payload.Businesses, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("yelp: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("yelp: key parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("yelp: fetch API key from paramstore: %w", err)
	}
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", errors.New("yelp: API key is empty")
	}
	return key, nil
}
