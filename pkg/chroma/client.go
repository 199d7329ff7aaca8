package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "http://localhost:8000"

// Client queries a Chroma vector store over its REST API. Embedding happens
// server side; callers pass query text only.
type Client interface {
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
}

// QueryRequest is the request body for a collection query.
type QueryRequest struct {
	Collection string   `json:"-"`
	QueryTexts []string `json:"query_texts"`
	NResults   int      `json:"n_results"`
	Include    []string `json:"include,omitempty"`
}

// QueryResult is the response for a collection query. The outer slices are
// per query text; the inner slices are ranked nearest-first.
type QueryResult struct {
	Documents [][]string            `json:"documents"`
	Distances [][]float64           `json:"distances"`
	Metadatas [][]map[string]string `json:"metadatas"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default server URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Chroma client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if req.Collection == "" {
		return nil, eris.New("chroma: collection is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "chroma: marshal request")
	}

	url := fmt.Sprintf("%s/api/v1/collections/%s/query", c.baseURL, req.Collection)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "chroma: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "chroma: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "chroma: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("chroma: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var result QueryResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "chroma: unmarshal response")
	}

	return &result, nil
}
