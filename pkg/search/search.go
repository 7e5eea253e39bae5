// Package search is a client for the GOV.UK Search API
// (https://docs.publishing.service.gov.uk/repos/search-api/using-the-search-api.html).
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/Sternrassler/govuk-api-client/pkg/client"
	"github.com/Sternrassler/govuk-api-client/pkg/content"
	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/Sternrassler/govuk-api-client/pkg/pagination"
	"github.com/rs/zerolog"
)

const searchPath = "/api/search.json"

// Result is one decoded search result.
type Result = map[string]any

// Response is the body of a search API call.
type Response struct {
	Total            int              `json:"total"`
	Start            int              `json:"start"`
	Results          []Result         `json:"results"`
	Facets           map[string]Facet `json:"facets,omitempty"`
	SuggestedQueries []string         `json:"suggested_queries,omitempty"`
}

// Facet is the aggregation returned for a facet_<field> parameter.
type Facet struct {
	Options              []FacetOption `json:"options"`
	DocumentsWithNoValue int           `json:"documents_with_no_value"`
	TotalOptions         int           `json:"total_options"`
	MissingOptions       int           `json:"missing_options"`
	Scope                string        `json:"scope,omitempty"`
}

// FacetOption is one value of a facet and its document count.
type FacetOption struct {
	Value     json.RawMessage `json:"value"`
	Documents int             `json:"documents"`
}

// Client queries the search API. Its default query is merged under every
// call's query.
type Client struct {
	exec       client.Executor
	defaults   Query
	observer   client.Observer
	pagination pagination.Config
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithObserver notifies o of every fetched page of results.
func WithObserver(o client.Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// WithPagination configures GetAll's batch fetcher.
func WithPagination(cfg pagination.Config) Option {
	return func(c *Client) {
		c.pagination = cfg
	}
}

// New creates a search client with default query parameters.
func New(exec client.Executor, defaults Query, opts ...Option) *Client {
	c := &Client{
		exec:       exec,
		defaults:   defaults,
		observer:   client.NopObserver{},
		pagination: pagination.DefaultConfig(),
		logger:     logging.NewLogger(logging.ComponentSearch),
	}
	for _, opt := range opts {
		opt(c)
	}

	if !defaults.IsEmpty() {
		c.logger.Debug().
			Str("q", defaults.Text).
			Str("params", defaults.Values().Encode()).
			Msg("Default search query")
	}
	return c
}

// NewWithText creates a search client whose default query searches for text.
func NewWithText(exec client.Executor, text string, opts ...Option) *Client {
	return New(exec, Text(text), opts...)
}

// Fetch runs q merged over the client defaults and returns the raw
// response.
func (c *Client) Fetch(ctx context.Context, q Query) (*Response, error) {
	merged := c.defaults.Merge(q)
	if merged.IsEmpty() {
		return nil, ErrNoQuery
	}
	return c.fetch(ctx, merged)
}

// Get returns the first page of results for q.
func (c *Client) Get(ctx context.Context, q Query) ([]Result, error) {
	merged := c.defaults.Merge(q)
	if merged.IsEmpty() {
		return nil, ErrNoQuery
	}
	return c.page(ctx, merged)
}

// GetAll returns every result for q, fetching all pages concurrently. The
// page size is q.Count (default and maximum MaxPerPage); q.Total, when set,
// replaces the count request.
func (c *Client) GetAll(ctx context.Context, q Query) ([]Result, error) {
	merged := c.defaults.Merge(q)

	pageSize := MaxPerPage
	if merged.Count != nil {
		pageSize = min(*merged.Count, MaxPerPage)
	}
	total := merged.Total

	base := merged
	base.Count = nil
	base.Total = 0
	if base.IsEmpty() {
		return nil, ErrNoQuery
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("params", base.Values().Encode()).
		Int("per_page", pageSize).
		Int("total_override", total).
		Msg("Getting all search results")

	fetcher := pagination.NewBatchFetcher[Result](pageFetcher{client: c, query: base}, c.pagination)
	results, err := fetcher.FetchAll(ctx, pageSize, total)
	if err != nil {
		return nil, fmt.Errorf("get all search results: %w", err)
	}
	return results, nil
}

// Total returns how many results q matches. 0 means no results.
func (c *Client) Total(ctx context.Context, q Query) (int, error) {
	merged := c.defaults.Merge(q)
	if merged.IsEmpty() {
		return 0, ErrNoQuery
	}
	return c.total(ctx, merged)
}

// Info returns the search metadata of the content item at path, or nil when
// search does not know it. Client defaults are not applied.
func (c *Client) Info(ctx context.Context, path string) (Result, error) {
	trimmed, err := content.NormalizePath(path)
	if err != nil {
		return nil, err
	}

	q := Query{Count: Int(1)}.Filter("link", "/"+trimmed)
	resp, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	return resp.Results[0], nil
}

// Facets returns the aggregation of field for q, with up to limit options.
func (c *Client) Facets(ctx context.Context, q Query, field string, limit int) (*Facet, error) {
	if field == "" {
		return nil, fmt.Errorf("%w: empty facet field", ErrInvalidOption)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: facet limit must be > 0 (got %d)", ErrInvalidOption, limit)
	}

	merged := c.defaults.Merge(q).WithFacet(FacetFacet, field, strconv.Itoa(limit))
	merged.Count = Int(0)

	resp, err := c.fetch(ctx, merged)
	if err != nil {
		return nil, err
	}
	facet, ok := resp.Facets[field]
	if !ok {
		return &Facet{}, nil
	}
	return &facet, nil
}

// page fetches one page and notifies the observer.
func (c *Client) page(ctx context.Context, q Query) ([]Result, error) {
	resp, err := c.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	results := resp.Results
	if results == nil {
		results = []Result{}
	}
	c.observer.OnSearchPage(results)
	return results, nil
}

func (c *Client) total(ctx context.Context, q Query) (int, error) {
	q.Count = Int(0)
	resp, err := c.fetch(ctx, q)
	if err != nil {
		return 0, err
	}
	return resp.Total, nil
}

// fetch validates q and performs the request. q is already merged.
func (c *Client) fetch(ctx context.Context, q Query) (*Response, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	target := c.exec.URL(searchPath, q.Values())
	c.logger.Debug().Str("url", target).Msg("Getting search results")

	body, err := c.exec.Execute(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &client.DecodeError{URL: target, Err: err}
	}
	return &resp, nil
}

// pageFetcher adapts a query to pagination.PageFetcher.
type pageFetcher struct {
	client *Client
	query  Query
}

func (p pageFetcher) Total(ctx context.Context) (int, error) {
	return p.client.total(ctx, p.query)
}

func (p pageFetcher) FetchPage(ctx context.Context, start, count int) ([]Result, error) {
	q := p.query
	q.Start = Int(start)
	q.Count = Int(count)
	return p.client.page(ctx, q)
}
