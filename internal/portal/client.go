// Package portal is a thin HTTP client for the content service's REST API:
// item metadata, web map document fetch and update, and layer schema
// introspection.
//
// The service reports most failures as a JSON error envelope inside an HTTP
// 200 response, so every call probes the decoded body before trusting it.
package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldmaps/webmapctl/internal/fields"
)

// TokenProvider returns the access token attached to each request. An empty
// token leaves the request anonymous.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken adapts a fixed token string into a TokenProvider.
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) {
		return token, nil
	}
}

// RetryPolicy controls retry behavior for idempotent requests. Only GETs are
// ever retried.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Statuses    map[int]struct{}
}

// DefaultRetryPolicy retries GETs twice more on throttling and gateway
// failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		Statuses: map[int]struct{}{
			http.StatusTooManyRequests:    {},
			http.StatusBadGateway:         {},
			http.StatusServiceUnavailable: {},
			http.StatusGatewayTimeout:     {},
		},
	}
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithTokenProvider supplies the access token source.
func WithTokenProvider(tp TokenProvider) Option {
	return func(c *Client) {
		c.token = tp
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client talks to one content service instance.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenProvider
	retry   RetryPolicy
	logger  *slog.Logger
}

// New constructs a client rooted at the service's sharing API base URL, for
// example "https://example.maps.arcgis.com/sharing/rest".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   DefaultRetryPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Item fetches an item's catalog metadata. An id the service does not know
// comes back as a code 400 envelope; that maps onto ErrNotFound.
func (c *Client) Item(ctx context.Context, itemID string) (*Item, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("an item id is required")
	}
	body, err := c.get(ctx, c.endpoint("/content/items/"+url.PathEscape(itemID)))
	if err != nil {
		var restErr *RESTError
		if errors.As(err, &restErr) && restErr.NotFound() {
			return nil, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch item %s: %w", itemID, err)
	}
	var item Item
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", itemID, err)
	}
	return &item, nil
}

// ItemData fetches an item's data resource, the raw web map document JSON,
// without interpreting it.
func (c *Client) ItemData(ctx context.Context, itemID string) ([]byte, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, fmt.Errorf("an item id is required")
	}
	body, err := c.get(ctx, c.endpoint("/content/items/"+url.PathEscape(itemID)+"/data"))
	if err != nil {
		var restErr *RESTError
		if errors.As(err, &restErr) && restErr.NotFound() {
			return nil, fmt.Errorf("item %s data: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("fetch item %s data: %w", itemID, err)
	}
	return body, nil
}

// UpdateItemData replaces an item's data resource with the supplied document
// bytes and returns the service's acknowledgment. A false acknowledgment
// without an error means the service declined the write.
func (c *Client) UpdateItemData(ctx context.Context, owner, itemID string, data []byte) (bool, error) {
	if strings.TrimSpace(owner) == "" {
		return false, fmt.Errorf("an item owner is required")
	}
	if strings.TrimSpace(itemID) == "" {
		return false, fmt.Errorf("an item id is required")
	}
	endpoint := c.endpoint(fmt.Sprintf("/content/users/%s/items/%s/update",
		url.PathEscape(owner), url.PathEscape(itemID)))

	form := url.Values{}
	form.Set("text", string(data))

	body, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return false, fmt.Errorf("update item %s: %w", itemID, err)
	}
	var result updateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("decode update result for item %s: %w", itemID, err)
	}
	return result.Success, nil
}

// LayerFields fetches a feature layer's attribute schema from its service
// endpoint. The layer URL is absolute and lives outside the sharing API.
func (c *Client) LayerFields(ctx context.Context, layerURL string) ([]fields.Field, error) {
	if strings.TrimSpace(layerURL) == "" {
		return nil, fmt.Errorf("a layer url is required")
	}
	body, err := c.get(ctx, layerURL)
	if err != nil {
		return nil, fmt.Errorf("fetch layer schema %s: %w", layerURL, err)
	}
	var schema layerSchema
	if err := json.Unmarshal(body, &schema); err != nil {
		return nil, fmt.Errorf("decode layer schema %s: %w", layerURL, err)
	}
	flds := make([]fields.Field, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		flds = append(flds, fields.Field{Name: field.Name, Type: field.Type, Alias: field.Alias})
	}
	return flds, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodPost, rawURL, form)
}

// do performs one request against the service, retrying GETs per the retry
// policy, and returns the response body after the error-envelope probe.
func (c *Client) do(ctx context.Context, method, rawURL string, form url.Values) ([]byte, error) {
	attempts := c.retry.MaxAttempts
	if attempts < 1 || method != http.MethodGet {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			c.logger.Debug("retrying request", "url", rawURL, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retry.Delay):
			}
		}

		body, retryable, err := c.doOnce(ctx, method, rawURL, form)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, rawURL string, form url.Values) ([]byte, bool, error) {
	req, err := c.newRequest(ctx, method, rawURL, form)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, retryable := c.retry.Statuses[resp.StatusCode]
		return nil, retryable, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if restErr := probeEnvelope(body); restErr != nil {
		return nil, false, restErr
	}
	return body, false, nil
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if method == http.MethodGet {
		var err error
		if rawURL, err = withJSONFormat(rawURL); err != nil {
			return nil, err
		}
	} else {
		if form == nil {
			form = url.Values{}
		}
		form.Set("f", "json")
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquire token: %w", err)
		}
		if token = strings.TrimSpace(token); token != "" {
			req.Header.Set("X-Esri-Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// withJSONFormat appends f=json to a URL, preserving any existing query.
func withJSONFormat(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("f", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// probeEnvelope detects the service's JSON error envelope in a 200 response.
func probeEnvelope(body []byte) *RESTError {
	var probe struct {
		Error *RESTError `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil
	}
	if probe.Error != nil && (probe.Error.Code != 0 || probe.Error.Message != "") {
		return probe.Error
	}
	return nil
}
