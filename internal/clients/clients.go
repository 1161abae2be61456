package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// LookupError describes one failed call to a sibling service.
type LookupError struct {
	Resource   string
	ID         string
	StatusCode int
	Err        error
}

func (e *LookupError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s lookup %q: status %d", e.Resource, e.ID, e.StatusCode)
	}
	return fmt.Sprintf("%s lookup %q: %v", e.Resource, e.ID, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// NotFound reports whether the sibling answered 404.
func (e *LookupError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

type BookInfo struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// NewHTTPClient returns a traced client with a per-request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

type AuthClient struct {
	baseURL string
	http    *http.Client
}

func NewAuthClient(baseURL string, httpClient *http.Client) *AuthClient {
	return &AuthClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetUser calls GET {AUTH_URL}/auth/users/{id}.
func (c *AuthClient) GetUser(ctx context.Context, id, token string) (*domain.UserProfile, error) {
	var u domain.UserProfile
	if err := getJSON(ctx, c.http, c.baseURL+"/auth/users/"+url.PathEscape(id), token, "user", id, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

type BookClient struct {
	baseURL string
	http    *http.Client
}

func NewBookClient(baseURL string, httpClient *http.Client) *BookClient {
	return &BookClient{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetBook calls GET {BOOK_URL}/books/{id}.
func (c *BookClient) GetBook(ctx context.Context, id, token string) (*BookInfo, error) {
	var b BookInfo
	if err := getJSON(ctx, c.http, c.baseURL+"/books/"+url.PathEscape(id), token, "book", id, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func getJSON(ctx context.Context, hc *http.Client, endpoint, token, resource, id string, out any) error {
	fail := func(status int, err error) error {
		return &LookupError{Resource: resource, ID: id, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(0, err)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		if !strings.HasPrefix(strings.ToLower(token), "bearer ") {
			token = "Bearer " + token
		}
		req.Header.Set("Authorization", token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fail(0, fmt.Errorf("decode %s: %w", resource, err))
	}
	return nil
}
