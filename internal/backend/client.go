package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxPages = 50

// Client is a thin JSON client for the inventory API. Every call carries the
// caller's API token, so the backend enforces its own permissions too.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient constructs a Client for baseURL (e.g. http://localhost:8000/api).
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(parsed.String(), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}, nil
}

// Login exchanges credentials for an API token and the user profile.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return LoginResult{}, err
	}
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, c.endpoint("users/login/"), "", body, &out); err != nil {
		return LoginResult{}, err
	}
	if out.Token == "" {
		return LoginResult{}, fmt.Errorf("backend: login response without token: %w", ErrUnauthorized)
	}
	return out, nil
}

// Logout revokes the API token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, c.endpoint("users/logout/"), token, nil, nil)
}

// Me returns the profile bound to token.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var out User
	err := c.do(ctx, http.MethodGet, c.endpoint("users/me/"), token, nil, &out)
	return out, err
}

// ListProducts returns every product, following pagination when the API pages.
func (c *Client) ListProducts(ctx context.Context, token string) ([]Product, error) {
	var products []Product
	next := c.endpoint("products/")
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			c.logger.Warn("backend product pagination truncated", slog.Int("pages", page))
			break
		}
		var raw json.RawMessage
		if err := c.do(ctx, http.MethodGet, next, token, nil, &raw); err != nil {
			return nil, err
		}
		items, more, err := decodePage[Product](raw)
		if err != nil {
			return nil, fmt.Errorf("backend: decode products: %w", err)
		}
		products = append(products, items...)
		next = more
	}
	return products, nil
}

// RecentMovements returns the latest stock movements.
func (c *Client) RecentMovements(ctx context.Context, token string, limit int) ([]Movement, error) {
	endpoint := c.endpoint("dashboard/recent-movements/")
	if limit > 0 {
		endpoint += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, endpoint, token, nil, &raw); err != nil {
		return nil, err
	}
	items, _, err := decodePage[Movement](raw)
	if err != nil {
		return nil, fmt.Errorf("backend: decode movements: %w", err)
	}
	return items, nil
}

// DashboardKPIs relays the KPI document unchanged.
func (c *Client) DashboardKPIs(ctx context.Context, token string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, c.endpoint("dashboard/kpis/"), token, nil, &raw)
	return raw, err
}

// ListDocuments lists documents of resource (e.g. "deliveries").
func (c *Client) ListDocuments(ctx context.Context, token, resource string, query url.Values) (json.RawMessage, error) {
	endpoint := c.endpoint(resource + "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, endpoint, token, nil, &raw)
	return raw, err
}

// GetDocument fetches one document.
func (c *Client) GetDocument(ctx context.Context, token, resource string, id int64) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodGet, c.endpoint(documentPath(resource, id)), token, nil, &raw)
	return raw, err
}

// CreateDocument posts body unchanged.
func (c *Client) CreateDocument(ctx context.Context, token, resource string, body []byte) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, c.endpoint(resource+"/"), token, body, &raw)
	return raw, err
}

// UpdateDocument replaces a document with body (PUT).
func (c *Client) UpdateDocument(ctx context.Context, token, resource string, id int64, body []byte) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPut, c.endpoint(documentPath(resource, id)), token, body, &raw)
	return raw, err
}

// ValidateDocument triggers the document's validation action, which posts the
// stock movements on the backend.
func (c *Client) ValidateDocument(ctx context.Context, token, resource, action string, id int64) (json.RawMessage, error) {
	return c.DocumentAction(ctx, token, resource, action, id, nil)
}

// DocumentAction posts body to a detail action such as
// users/{id}/reset_password/.
func (c *Client) DocumentAction(ctx context.Context, token, resource, action string, id int64, body []byte) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, http.MethodPost, c.endpoint(documentPath(resource, id)+action+"/"), token, body, &raw)
	return raw, err
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, token, resource string, id int64) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(documentPath(resource, id)), token, nil, nil)
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

func documentPath(resource string, id int64) string {
	return resource + "/" + strconv.FormatInt(id, 10) + "/"
}

func (c *Client) do(ctx context.Context, method, endpoint, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.logger.Warn("backend request failed", slog.String("method", method), slog.String("url", endpoint), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	c.logger.Debug("backend request",
		slog.String("method", method),
		slog.String("url", endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if err := statusError(resp.StatusCode, payload); err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], payload...)
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("backend: decode response: %w", err)
	}
	return nil
}

func statusError(status int, payload []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		body := json.RawMessage(bytes.TrimSpace(payload))
		if !json.Valid(body) {
			quoted, _ := json.Marshal(map[string]string{"detail": string(body)})
			body = quoted
		}
		return &RejectedError{Status: status, Body: body}
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: throttled (status %d)", ErrUnavailable, status)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
}

type page[T any] struct {
	Results []T     `json:"results"`
	Next    *string `json:"next"`
}

// decodePage accepts either a bare JSON array or a paginated envelope.
func decodePage[T any](raw json.RawMessage) ([]T, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, "", nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", err
		}
		return items, "", nil
	}
	var p page[T]
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, "", err
	}
	next := ""
	if p.Next != nil {
		next = *p.Next
	}
	return p.Results, next, nil
}
