package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/miradorhq/sessiond/internal/domain/principal"
)

// DefaultRequestTimeout bounds directory lookups when no client is supplied.
const DefaultRequestTimeout = 10 * time.Second

// RESTClient fetches principal listings from the directory REST API.
//
// Wire shape: GET {base}/admins and GET {base}/users return JSON arrays of
// records. Transport-level failures and non-200 responses all map to
// ErrUnavailable; the caller only needs to know the lookup did not resolve.
type RESTClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// RESTOption is a functional option for configuring RESTClient.
type RESTOption func(*RESTClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) RESTOption {
	return func(c *RESTClient) {
		c.client = client
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) RESTOption {
	return func(c *RESTClient) {
		c.logger = logger
	}
}

// NewRESTClient creates a directory client for the given base URL.
func NewRESTClient(baseURL string, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultRequestTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admins returns all administrator records.
func (c *RESTClient) Admins(ctx context.Context) ([]Record, error) {
	return c.fetch(ctx, "/admins", principal.KindAdmin)
}

// Users returns all regular user records.
func (c *RESTClient) Users(ctx context.Context) ([]Record, error) {
	return c.fetch(ctx, "/users", principal.KindUser)
}

func (c *RESTClient) fetch(ctx context.Context, path string, kind principal.Kind) ([]Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: directory returned %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var records []Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return filterValid(records, kind, c.logger), nil
}

// Compile-time interface verification.
var _ Directory = (*RESTClient)(nil)
