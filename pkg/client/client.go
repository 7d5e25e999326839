package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Errors returned for well-known service responses.
var (
	ErrUnauthorized            = errors.New("unauthorized")
	ErrDomainAlreadyRegistered = errors.New("domain already registered")
	ErrDomainNotFound          = errors.New("domain not found")
)

// APIError is any other non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("server error %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Domain is a custom domain record as returned by the service.
type Domain struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Domain            string    `json:"domain"`
	OwnershipType     string    `json:"ownership_type"`
	OwnershipName     string    `json:"ownership_name"`
	OwnershipValue    string    `json:"ownership_value"`
	SSLName           string    `json:"ssl_name"`
	SSLValue          string    `json:"ssl_value"`
	VerificationToken string    `json:"verification_token"`
	Verified          bool      `json:"verified"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AddResult is the response to AddDomain. Domain is nil when SkippedDBUpdate
// is set.
type AddResult struct {
	Success           bool    `json:"success"`
	Domain            *Domain `json:"data,omitempty"`
	VerificationToken string  `json:"verification_token,omitempty"`
	Message           string  `json:"message,omitempty"`
	Warning           string  `json:"warning,omitempty"`
	SkippedDBUpdate   bool    `json:"skipped_db_update,omitempty"`
}

// MockMode reports whether the service had no provisioning provider configured.
func (r *AddResult) MockMode() bool {
	return r.Message == "Mock Mode"
}

// Client talks to the custom domains service.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("http client must not be nil")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an owner session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Timeout: d}
		return nil
	}
}

// New creates a Client for the service at base, e.g. "http://localhost:8080".
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddDomain attaches domain to the caller's site.
func (c *Client) AddDomain(ctx context.Context, domain string) (*AddResult, error) {
	payload, err := json.Marshal(map[string]string{"domain": domain})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/v1/domains", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out AddResult
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListDomains returns the caller's domains, newest first.
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/domains", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var out struct {
		Data []Domain `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetDomain returns one of the caller's domains.
func (c *Client) GetDomain(ctx context.Context, domain string) (*Domain, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/v1/domains/"+url.PathEscape(domain), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	var out struct {
		Data *Domain `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) do(req *http.Request, out any) error {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError maps a failed response onto the package errors. Some errors
// are plain text, others {"error": "...", "details": "..."}.
func decodeError(status int, body []byte) error {
	var e struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}

	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrDomainNotFound
	case status == http.StatusBadRequest && msg == "Domain already registered":
		return ErrDomainAlreadyRegistered
	}
	return &APIError{StatusCode: status, Message: msg, Details: e.Details}
}
