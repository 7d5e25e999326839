package cloudflare

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/jmerrifield20/customdomains/internal/domains/model"
	"github.com/jmerrifield20/customdomains/internal/provider"
	"go.uber.org/zap"
)

const (
	sslMethodTXT = "txt"
	sslTypeDV    = "dv"

	defaultTimeout = 10 * time.Second
	pageSize       = 50
)

// Config configures the Cloudflare for SaaS custom hostname client.
type Config struct {
	Credentials provider.Credentials
	// BaseURL overrides the API endpoint; empty means the public API.
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// RequestRecorder is called once per provider API call.
type RequestRecorder func(op string, success bool)

// Provider implements provider.HostnameProvider over Cloudflare custom hostnames.
type Provider struct {
	client  *cloudflare.API
	zoneID  string
	timeout time.Duration
	record  RequestRecorder
	logger  *zap.Logger
}

// New builds a Provider. It performs no network calls.
func New(cfg Config, logger *zap.Logger) (*Provider, error) {
	if !cfg.Credentials.Configured() {
		return nil, fmt.Errorf("cloudflare API token and zone ID required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := []cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{
			Timeout:   timeout,
			Transport: statusRecorder{next: http.DefaultTransport},
		}),
		cloudflare.UsingRetryPolicy(cfg.MaxRetries, 1, 5),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(cfg.BaseURL))
	}

	client, err := cloudflare.NewWithAPIToken(cfg.Credentials.APIToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &Provider{
		client:  client,
		zoneID:  cfg.Credentials.ZoneID,
		timeout: timeout,
		record:  func(string, bool) {},
		logger:  logger,
	}, nil
}

// SetRequestRecorder installs a metrics callback.
func (p *Provider) SetRequestRecorder(fn RequestRecorder) {
	if fn != nil {
		p.record = fn
	}
}

// FindHostname implements provider.HostnameProvider. The API's hostname
// filter is a prefix match, so every page is scanned for an exact match.
func (p *Provider) FindHostname(ctx context.Context, domain string) (*model.ProviderHostname, error) {
	start := time.Now()
	page := 1
	for {
		pageCtx, cancel := context.WithTimeout(ctx, p.timeout)
		pageCtx, status := withStatus(pageCtx)
		hostnames, info, err := p.client.CustomHostnames(pageCtx, p.zoneID, page, cloudflare.CustomHostname{Hostname: domain})
		cancel()
		if err != nil {
			p.record(string(provider.OpCheck), false)
			return nil, classify(provider.OpCheck, err, *status)
		}
		p.record(string(provider.OpCheck), true)

		for _, h := range hostnames {
			if strings.EqualFold(h.Hostname, domain) {
				p.logger.Debug("custom hostname found",
					zap.String("domain", domain),
					zap.String("hostname_id", h.ID),
					zap.Int("page", page),
					zap.Duration("duration", time.Since(start)),
				)
				return toModel(h), nil
			}
		}
		if page >= info.TotalPages || len(hostnames) < pageSize {
			return nil, provider.ErrHostnameNotFound
		}
		page++
	}
}

// CreateHostname implements provider.HostnameProvider.
func (p *Provider) CreateHostname(ctx context.Context, domain string) (*model.ProviderHostname, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	ctx, status := withStatus(ctx)

	start := time.Now()
	res, err := p.client.CreateCustomHostname(ctx, p.zoneID, cloudflare.CustomHostname{
		Hostname: domain,
		SSL: &cloudflare.CustomHostnameSSL{
			Method: sslMethodTXT,
			Type:   sslTypeDV,
		},
	})
	if err != nil {
		p.record(string(provider.OpCreate), false)
		return nil, classify(provider.OpCreate, err, *status)
	}
	p.record(string(provider.OpCreate), true)

	p.logger.Info("custom hostname created",
		zap.String("domain", domain),
		zap.String("hostname_id", res.Result.ID),
		zap.Duration("duration", time.Since(start)),
	)
	return toModel(res.Result), nil
}

// ListHostnames returns every custom hostname in the zone.
func (p *Provider) ListHostnames(ctx context.Context) ([]model.ProviderHostname, error) {
	var all []model.ProviderHostname
	page := 1
	for {
		pageCtx, cancel := context.WithTimeout(ctx, p.timeout)
		pageCtx, status := withStatus(pageCtx)
		hostnames, info, err := p.client.CustomHostnames(pageCtx, p.zoneID, page, cloudflare.CustomHostname{})
		cancel()
		if err != nil {
			p.record(string(provider.OpList), false)
			return nil, classify(provider.OpList, err, *status)
		}
		p.record(string(provider.OpList), true)

		for _, h := range hostnames {
			all = append(all, *toModel(h))
		}
		if page >= info.TotalPages || len(hostnames) < pageSize {
			break
		}
		page++
	}
	return all, nil
}

// classify turns a client error into a provider.Error. The SDK's typed 401
// and 403 errors only exist when the body parsed as JSON, so the status seen
// on the wire is checked as well.
func classify(op provider.Op, err error, status int) *provider.Error {
	var authn *cloudflare.AuthenticationError
	var authz *cloudflare.AuthorizationError
	if errors.As(err, &authn) || errors.As(err, &authz) ||
		status == http.StatusUnauthorized || status == http.StatusForbidden {
		return provider.NewAuthError(op, err)
	}
	return provider.NewError(op, err)
}

type statusKey struct{}

// withStatus returns a context under which statusRecorder stores the last
// HTTP status code received.
func withStatus(ctx context.Context) (context.Context, *int) {
	status := new(int)
	return context.WithValue(ctx, statusKey{}, status), status
}

type statusRecorder struct {
	next http.RoundTripper
}

func (t statusRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if resp != nil {
		if status, ok := req.Context().Value(statusKey{}).(*int); ok {
			*status = resp.StatusCode
		}
	}
	return resp, err
}

func toModel(h cloudflare.CustomHostname) *model.ProviderHostname {
	out := &model.ProviderHostname{
		ID:       h.ID,
		Hostname: h.Hostname,
		Status:   string(h.Status),
	}

	ov := h.OwnershipVerification
	if ov.Type != "" || ov.Name != "" || ov.Value != "" {
		out.OwnershipVerification = &model.OwnershipVerification{
			Type:  ov.Type,
			Name:  ov.Name,
			Value: ov.Value,
		}
	}

	if h.SSL != nil {
		ssl := &model.HostnameSSL{
			Status: string(h.SSL.Status),
			Method: string(h.SSL.Method),
		}
		for _, r := range h.SSL.ValidationRecords {
			ssl.ValidationRecords = append(ssl.ValidationRecords, model.ValidationRecord{
				TXTName:     r.TxtName,
				TXTValue:    r.TxtValue,
				CNAME:       r.CnameName,
				CNAMETarget: r.CnameTarget,
			})
		}
		out.SSL = ssl
	}
	return out
}
