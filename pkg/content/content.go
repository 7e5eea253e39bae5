// Package content is a client for the GOV.UK Content API
// (https://content-api.publishing.service.gov.uk/).
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/govuk-api-client/pkg/client"
	"github.com/Sternrassler/govuk-api-client/pkg/logging"
	"github.com/rs/zerolog"
)

// ErrNoPath is returned when Get is called without a content item path.
var ErrNoPath = errors.New("no content item path")

// Item is a decoded content item.
type Item = map[string]any

// Client fetches content items.
type Client struct {
	exec     client.Executor
	observer client.Observer
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithObserver notifies o of every fetched content item.
func WithObserver(o client.Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New creates a content client on top of exec.
func New(exec client.Executor, opts ...Option) *Client {
	c := &Client{
		exec:     exec,
		observer: client.NopObserver{},
		logger:   logging.NewLogger(logging.ComponentContent),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizePath strips a single leading "/" from path.
func NormalizePath(path string) (string, error) {
	if path == "" {
		return "", ErrNoPath
	}
	trimmed := strings.TrimPrefix(path, "/")
	if trimmed == "" {
		return "", ErrNoPath
	}
	return trimmed, nil
}

// Get fetches the content item at path, e.g. "/register-to-vote".
func (c *Client) Get(ctx context.Context, path string) (Item, error) {
	trimmed, err := NormalizePath(path)
	if err != nil {
		return nil, err
	}

	target := c.exec.URL("/api/content/"+trimmed, nil)
	c.logger.Debug().Str("path", trimmed).Msg("Getting content item")

	body, err := c.exec.Execute(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("get content item %q: %w", trimmed, err)
	}

	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, &client.DecodeError{URL: target, Err: err}
	}

	c.observer.OnContent(item)
	return item, nil
}
