package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmerrifield20/customdomains/internal/dns"
	"github.com/jmerrifield20/customdomains/internal/domains/model"
	"github.com/jmerrifield20/customdomains/internal/domains/repository"
	"github.com/jmerrifield20/customdomains/internal/provider"
	"go.uber.org/zap"
)

const defaultStoreTimeout = 5 * time.Second

// domainStore is the storage interface required by DomainService.
// *repository.DomainRepository satisfies this interface.
type domainStore interface {
	Upsert(ctx context.Context, p model.UpsertParams) (*model.DomainRecord, error)
	GetByDomain(ctx context.Context, domain string) (*model.DomainRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.DomainRecord, error)
}

// Outcome describes which path AddDomain took.
type Outcome int

const (
	// OutcomeReconciled means the provider was consulted and the record stored.
	OutcomeReconciled Outcome = iota
	// OutcomeMock means no provider is configured and offline records were stored.
	OutcomeMock
	// OutcomeSkipped means the provider rejected our credentials and storage
	// was left untouched.
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMock:
		return "mock"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "reconciled"
	}
}

// AddResult is the outcome of one AddDomain call.
type AddResult struct {
	Outcome      Outcome
	Domain       string
	Hostname     model.HostnameResult
	Verification model.Verification
	// Record is nil when Outcome is OutcomeSkipped.
	Record *model.DomainRecord
	// Warning carries a non-fatal provider failure, if any.
	Warning string
}

// DomainService runs the custom domain reconcile pipeline.
type DomainService struct {
	store        domainStore
	provider     provider.HostnameProvider
	storeTimeout time.Duration
	logger       *zap.Logger
}

// NewDomainService creates a DomainService. Pass a nil provider to run in
// mock mode; callers decide that with provider.Credentials.Configured.
// A storeTimeout of zero uses a five second default.
func NewDomainService(store domainStore, hp provider.HostnameProvider, storeTimeout time.Duration, logger *zap.Logger) *DomainService {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &DomainService{store: store, provider: hp, storeTimeout: storeTimeout, logger: logger}
}

// MockMode reports whether the service synthesizes records offline.
func (s *DomainService) MockMode() bool {
	return s.provider == nil
}

// AddDomain attaches domain to ownerID. It consults the provider (check,
// then create), normalizes the verification records and upserts them.
//
// Provider failures never fail the call: they surface as AddResult.Warning.
// A provider authentication failure additionally skips the upsert so that
// records stored by an earlier successful run are not overwritten.
func (s *DomainService) AddDomain(ctx context.Context, ownerID, rawDomain string) (*AddResult, error) {
	domain, err := canonicalize(rawDomain)
	if err != nil {
		return nil, err
	}

	if s.provider == nil {
		v := dns.MockVerification(domain)
		s.logger.Info("provider not configured, using mock verification",
			zap.String("domain", domain),
			zap.String("owner_id", ownerID),
		)
		rec, err := s.upsert(ctx, ownerID, domain, v)
		if err != nil {
			return nil, err
		}
		return &AddResult{Outcome: OutcomeMock, Domain: domain, Verification: v, Record: rec}, nil
	}

	hr := s.provision(ctx, domain)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("add domain: %w", err)
	}

	res := &AddResult{
		Domain:       domain,
		Hostname:     hr,
		Verification: dns.Normalize(domain, hr.State),
	}
	if hr.Reason != nil {
		res.Warning = warningFor(hr.Reason)
	}

	if provider.IsAuthError(hr.Reason) {
		s.logger.Warn("provider rejected credentials, leaving stored record untouched",
			zap.String("domain", domain),
			zap.String("owner_id", ownerID),
			zap.Error(hr.Reason),
		)
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	rec, err := s.upsert(ctx, ownerID, domain, res.Verification)
	if err != nil {
		return nil, err
	}
	res.Outcome = OutcomeReconciled
	res.Record = rec

	s.logger.Info("custom domain reconciled",
		zap.String("domain", domain),
		zap.String("owner_id", ownerID),
		zap.Stringer("hostname", hr.Source),
		zap.String("ownership_type", string(res.Verification.Ownership.Type)),
		zap.Bool("has_warning", res.Warning != ""),
	)
	return res, nil
}

// provision runs the existence check and, only when the provider has no
// hostname yet, the create call. The check always runs first so a retry
// after a cancelled create picks up the hostname instead of duplicating it.
func (s *DomainService) provision(ctx context.Context, domain string) model.HostnameResult {
	state, err := s.provider.FindHostname(ctx, domain)
	if err == nil {
		return model.Found(state)
	}
	if !errors.Is(err, provider.ErrHostnameNotFound) {
		s.logger.Warn("custom hostname check failed", zap.String("domain", domain), zap.Error(err))
		return model.Unavailable(err)
	}
	if ctx.Err() != nil {
		return model.Unavailable(ctx.Err())
	}

	state, err = s.provider.CreateHostname(ctx, domain)
	if err != nil {
		s.logger.Warn("custom hostname create failed", zap.String("domain", domain), zap.Error(err))
		return model.Unavailable(err)
	}
	return model.Created(state)
}

func (s *DomainService) upsert(ctx context.Context, ownerID, domain string, v model.Verification) (*model.DomainRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.store.Upsert(sctx, model.UpsertParams{OwnerID: ownerID, Domain: domain, Verification: v})
	if err == nil {
		return rec, nil
	}
	if errors.Is(err, repository.ErrDomainClaimed) {
		s.logger.Info("domain already claimed by another owner",
			zap.String("domain", domain),
			zap.String("owner_id", ownerID),
		)
		return nil, ErrDomainAlreadyClaimed
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("add domain: %w", ctx.Err())
	}
	return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
}

// GetDomain returns ownerID's record for domain. Records owned by someone
// else are reported as ErrDomainNotFound.
func (s *DomainService) GetDomain(ctx context.Context, ownerID, rawDomain string) (*model.DomainRecord, error) {
	domain, err := canonicalize(rawDomain)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	rec, err := s.store.GetByDomain(sctx, domain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDomainNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if rec.OwnerID != ownerID {
		return nil, ErrDomainNotFound
	}
	return rec, nil
}

// ListDomains returns ownerID's records, newest first.
func (s *DomainService) ListDomains(ctx context.Context, ownerID string) ([]*model.DomainRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	recs, err := s.store.ListByOwner(sctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if recs == nil {
		recs = []*model.DomainRecord{}
	}
	return recs, nil
}

func canonicalize(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrMissingDomain
	}
	domain, err := dns.Canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidDomain, err)
	}
	return domain, nil
}

func warningFor(err error) string {
	var pe *provider.Error
	if !errors.As(err, &pe) {
		return "Provider unavailable: " + err.Error()
	}
	switch {
	case pe.Auth:
		return "Provider authentication failed, stored records left unchanged: " + pe.Message
	case pe.Op == provider.OpCreate:
		return "Provider hostname creation failed: " + pe.Message
	default:
		return "Provider hostname check failed: " + pe.Message
	}
}

// Sentinel errors for the domain service.
var (
	ErrMissingDomain        = errors.New("missing domain")
	ErrInvalidDomain        = errors.New("invalid domain")
	ErrDomainAlreadyClaimed = errors.New("domain already registered")
	ErrDomainNotFound       = errors.New("domain not found")
	ErrPersistence          = errors.New("persistence failure")
)
