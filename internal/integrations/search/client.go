package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"
	requestsigner "github.com/opensearch-project/opensearch-go/v2/signer/awsv2"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
)

const (
	indexName         = "restaurants"
	docTypeRestaurant = "Restaurant"
)

// indexMappings creates the thin restaurant index: one shard, keyword fields
// only, sized for a few thousand documents.
const indexMappings = `{
	"settings": {"number_of_shards": 1, "number_of_replicas": 0},
	"mappings": {
		"properties": {
			"RestaurantID": {"type": "keyword"},
			"Cuisine": {"type": "keyword"},
			"docType": {"type": "keyword"}
		}
	}
}`

// indexDoc is the document stored per restaurant.
type indexDoc struct {
	RestaurantID string `json:"RestaurantID"`
	Cuisine      string `json:"Cuisine"`
	DocType      string `json:"docType"`
}

// searchResponse is the minimal response shape for the sampling query.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source domain.RestaurantRef `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// StatusError captures non-2xx OpenSearch responses with status-aware context.
type StatusError struct {
	StatusCode int
	Op         string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("search: %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// BulkStats summarizes one bulk indexing run.
type BulkStats struct {
	Indexed uint64
	Failed  uint64
}

// Client wraps the restaurants search index.
type Client struct {
	os *opensearch.Client
}

type settings struct {
	username  string
	password  string
	transport http.RoundTripper
	awsCfg    *aws.Config
}

type Option func(*settings)

// WithBasicAuth authenticates with a username and password, for domains with
// fine-grained access control.
func WithBasicAuth(username, password string) Option {
	return func(s *settings) {
		s.username = username
		s.password = password
	}
}

// WithAWSConfig signs requests with SigV4 credentials for the es service.
func WithAWSConfig(cfg aws.Config) Option {
	return func(s *settings) {
		s.awsCfg = &cfg
	}
}

// WithTransport overrides the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(s *settings) {
		s.transport = rt
	}
}

// New creates a search Client for the given endpoint. Endpoints without a
// scheme are assumed to be https.
func New(endpoint string, opts ...Option) (*Client, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("search: endpoint must not be empty")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	cfg := opensearch.Config{
		Addresses: []string{endpoint},
		Username:  s.username,
		Password:  s.password,
		Transport: s.transport,
	}
	if s.awsCfg != nil {
		sgn, err := requestsigner.NewSignerWithService(*s.awsCfg, "es")
		if err != nil {
			return nil, fmt.Errorf("search: create request signer: %w", err)
		}
		cfg.Signer = sgn
	}

	osc, err := opensearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("search: create client: %w", err)
	}
	return &Client{os: osc}, nil
}

// SampleByCuisine returns up to size thin references for a cuisine, ranked by
// a random score derived from seed so repeated queries vary their results.
func (c *Client) SampleByCuisine(ctx context.Context, cuisine string, seed int64, size int) ([]domain.RestaurantRef, error) {
	cuisine = strings.ToLower(strings.TrimSpace(cuisine))
	if cuisine == "" {
		return nil, errors.New("search: SampleByCuisine: cuisine must not be empty")
	}
	if size < 1 {
		return nil, errors.New("search: SampleByCuisine: size must be positive")
	}

	body, err := json.Marshal(map[string]any{
		"size": size,
		"query": map[string]any{
			"function_score": map[string]any{
				"query":        map[string]any{"term": map[string]any{"Cuisine": cuisine}},
				"random_score": map[string]any{"seed": seed},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("search: SampleByCuisine marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, c.os)
	if err != nil {
		return nil, fmt.Errorf("search: SampleByCuisine: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, statusError("SampleByCuisine", res)
	}

	var payload searchResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("search: SampleByCuisine decode response: %w", err)
	}
	refs := make([]domain.RestaurantRef, 0, len(payload.Hits.Hits))
	for _, h := range payload.Hits.Hits {
		refs = append(refs, h.Source)
	}
	return refs, nil
}

// EnsureIndex creates the restaurants index with its keyword mappings when it
// does not already exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	existsReq := opensearchapi.IndicesExistsRequest{Index: []string{indexName}}
	res, err := existsReq.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("search: EnsureIndex exists check: %w", err)
	}
	_ = res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return &StatusError{StatusCode: res.StatusCode, Op: "EnsureIndex exists check"}
	}

	createReq := opensearchapi.IndicesCreateRequest{
		Index: indexName,
		Body:  strings.NewReader(indexMappings),
	}
	cres, err := createReq.Do(ctx, c.os)
	if err != nil {
		return fmt.Errorf("search: EnsureIndex create: %w", err)
	}
	defer func() { _ = cres.Body.Close() }()
	if cres.IsError() {
		return statusError("EnsureIndex create", cres)
	}
	return nil
}

// BulkIndex writes one thin document per reference, keyed by RestaurantID so
// re-indexing the same records is an overwrite, not a duplicate.
func (c *Client) BulkIndex(ctx context.Context, refs []domain.RestaurantRef) (BulkStats, error) {
	if len(refs) == 0 {
		return BulkStats{}, nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:     c.os,
		Index:      indexName,
		NumWorkers: 1,
	})
	if err != nil {
		return BulkStats{}, fmt.Errorf("search: BulkIndex create indexer: %w", err)
	}

	for _, ref := range refs {
		if ref.RestaurantID == "" {
			continue
		}
		doc, err := json.Marshal(indexDoc{
			RestaurantID: ref.RestaurantID,
			Cuisine:      strings.ToLower(ref.Cuisine),
			DocType:      docTypeRestaurant,
		})
		if err != nil {
			_ = bi.Close(ctx)
			return BulkStats{}, fmt.Errorf("search: BulkIndex marshal doc: %w", err)
		}
		if err := bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: ref.RestaurantID,
			Body:       bytes.NewReader(doc),
		}); err != nil {
			_ = bi.Close(ctx)
			return BulkStats{}, fmt.Errorf("search: BulkIndex add %s: %w", ref.RestaurantID, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return BulkStats{}, fmt.Errorf("search: BulkIndex flush: %w", err)
	}
	stats := bi.Stats()
	return BulkStats{Indexed: stats.NumIndexed, Failed: stats.NumFailed}, nil
}

func statusError(op string, res *opensearchapi.Response) *StatusError {
	buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &StatusError{StatusCode: res.StatusCode, Op: op, Body: string(buf)}
}
