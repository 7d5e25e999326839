package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmerrifield20/customdomains/internal/domains/model"
)

// ErrHostnameNotFound is returned by FindHostname when the provider has no
// custom hostname matching the requested domain.
var ErrHostnameNotFound = errors.New("custom hostname not found")

// HostnameProvider is the provisioning provider's custom hostname API.
type HostnameProvider interface {
	// FindHostname returns the existing hostname record for domain, or
	// ErrHostnameNotFound.
	FindHostname(ctx context.Context, domain string) (*model.ProviderHostname, error)
	// CreateHostname registers domain with TXT-based domain control validation.
	CreateHostname(ctx context.Context, domain string) (*model.ProviderHostname, error)
}

// Credentials are the provider's API credentials.
type Credentials struct {
	APIToken string
	ZoneID   string
}

// Sentinel values shipped in sample configuration files.
var (
	placeholderTokens = []string{"your_real_token", "your_token_here"}
	placeholderZones  = []string{"your_real_zone_id", "your_zone_id_here"}
)

// Configured reports whether both credentials are set to something other
// than a known placeholder. When false the service runs in mock mode.
func (c Credentials) Configured() bool {
	token := strings.TrimSpace(c.APIToken)
	zone := strings.TrimSpace(c.ZoneID)
	if token == "" || zone == "" {
		return false
	}
	for _, p := range placeholderTokens {
		if token == p {
			return false
		}
	}
	for _, p := range placeholderZones {
		if zone == p {
			return false
		}
	}
	return true
}

// Op names the provider call that failed.
type Op string

const (
	OpCheck  Op = "check"
	OpCreate Op = "create"
	OpList   Op = "list"
)

// Error is a failed provider call. Auth is true when the failure indicates
// the provider rejected our credentials rather than the request itself.
type Error struct {
	Op      Op
	Message string
	Auth    bool
	Timeout bool
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s failed: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// authMarkers are lowercase fragments that identify credential failures in
// provider error messages.
var authMarkers = []string{
	"authentication",
	"unauthorized",
	"forbidden",
	"invalid api token",
	"invalid access token",
	"invalid request headers",
}

// NewError classifies err as returned by a provider client for op.
func NewError(op Op, err error) *Error {
	e := &Error{Op: op, Message: err.Error(), Err: err}
	if errors.Is(err, context.DeadlineExceeded) {
		e.Timeout = true
		e.Message = "request timed out"
		return e
	}
	msg := strings.ToLower(e.Message)
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			e.Auth = true
			break
		}
	}
	return e
}

// NewAuthError wraps err as a credential failure for op. Clients call it
// when the transport itself says so (HTTP 401 or 403), whatever the body.
func NewAuthError(op Op, err error) *Error {
	e := &Error{Op: op, Message: strings.TrimSpace(err.Error()), Auth: true, Err: err}
	if e.Message == "" {
		e.Message = "credentials rejected"
	}
	return e
}

// IsAuthError reports whether err wraps a provider credential failure.
func IsAuthError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Auth
}
