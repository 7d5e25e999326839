package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/customdomains/internal/dns"
	"github.com/jmerrifield20/customdomains/internal/domains/model"
	"github.com/jmerrifield20/customdomains/internal/domains/repository"
	"github.com/jmerrifield20/customdomains/internal/domains/service"
	"github.com/jmerrifield20/customdomains/internal/provider"
	"go.uber.org/zap"
)

// ── In-memory stub for domainStore ─────────────────────────────────────────

type stubDomainStore struct {
	mu      sync.Mutex
	rows    map[string]*model.DomainRecord
	upserts int
	failErr error
}

func newStubStore() *stubDomainStore {
	return &stubDomainStore{rows: make(map[string]*model.DomainRecord)}
}

// Upsert mirrors upsert_domain: same owner updates in place, another owner
// is rejected, verified and created_at are never touched.
func (s *stubDomainStore) Upsert(_ context.Context, p model.UpsertParams) (*model.DomainRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.failErr != nil {
		return nil, s.failErr
	}

	v := p.Verification
	now := time.Now().UTC()
	row, ok := s.rows[p.Domain]
	if ok && row.OwnerID != p.OwnerID {
		return nil, repository.ErrDomainClaimed
	}
	if !ok {
		row = &model.DomainRecord{ID: uuid.New(), OwnerID: p.OwnerID, Domain: p.Domain, CreatedAt: now}
		s.rows[p.Domain] = row
	}
	row.OwnershipType = v.Ownership.Type
	row.OwnershipName = v.Ownership.Name
	row.OwnershipValue = v.Ownership.Value
	row.SSLName = v.SSL.Name
	row.SSLValue = v.SSL.Value
	row.VerificationToken = v.Token
	row.UpdatedAt = now
	cp := *row
	return &cp, nil
}

func (s *stubDomainStore) GetByDomain(_ context.Context, domain string) (*model.DomainRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[domain]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *stubDomainStore) ListByOwner(_ context.Context, ownerID string) ([]*model.DomainRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.DomainRecord
	for _, row := range s.rows {
		if row.OwnerID == ownerID {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubDomainStore) get(domain string) *model.DomainRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[domain]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

// ── Stub provider ──────────────────────────────────────────────────────────

type stubProvider struct {
	find    func(ctx context.Context, domain string) (*model.ProviderHostname, error)
	create  func(ctx context.Context, domain string) (*model.ProviderHostname, error)
	finds   int
	creates int
}

func (p *stubProvider) FindHostname(ctx context.Context, domain string) (*model.ProviderHostname, error) {
	p.finds++
	return p.find(ctx, domain)
}

func (p *stubProvider) CreateHostname(ctx context.Context, domain string) (*model.ProviderHostname, error) {
	p.creates++
	if p.create == nil {
		return nil, errors.New("unexpected create")
	}
	return p.create(ctx, domain)
}

func notFound(context.Context, string) (*model.ProviderHostname, error) {
	return nil, provider.ErrHostnameNotFound
}

func newService(store *stubDomainStore, hp provider.HostnameProvider) *service.DomainService {
	return service.NewDomainService(store, hp, time.Second, zap.NewNop())
}

// ── Tests ──────────────────────────────────────────────────────────────────

func TestAddDomain_mockMode(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)

	res, err := svc.AddDomain(context.Background(), "owner-1", "vo.example.com")
	if err != nil {
		t.Fatalf("AddDomain: %v", err)
	}
	if res.Outcome != service.OutcomeMock {
		t.Errorf("Outcome = %v, want mock", res.Outcome)
	}
	if res.Verification.Token != "verify-vo-example-com" {
		t.Errorf("token = %q", res.Verification.Token)
	}

	row := store.get("vo.example.com")
	if row == nil {
		t.Fatal("expected stored row")
	}
	if row.OwnershipType != model.RecordTXT || row.OwnershipName != "_verify.vo.example.com" {
		t.Errorf("unexpected ownership record: %+v", row)
	}
	if row.Verified {
		t.Error("verified must be false")
	}
	if row.SSLName != "" || row.SSLValue != "" {
		t.Error("mock mode must not produce an SSL record")
	}
}

func TestAddDomain_mockModeDeterministic(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)
	ctx := context.Background()

	first, err := svc.AddDomain(ctx, "owner-1", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := svc.AddDomain(ctx, "owner-1", " Example.COM. ")
	if err != nil {
		t.Fatal(err)
	}
	if first.Verification.Token != second.Verification.Token {
		t.Errorf("tokens differ: %q vs %q", first.Verification.Token, second.Verification.Token)
	}
	if first.Record.ID != second.Record.ID {
		t.Error("expected the same row on retry")
	}
	if len(store.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(store.rows))
	}
}

func TestAddDomain_missingAndInvalid(t *testing.T) {
	svc := newService(newStubStore(), nil)
	ctx := context.Background()

	if _, err := svc.AddDomain(ctx, "owner-1", "   "); !errors.Is(err, service.ErrMissingDomain) {
		t.Errorf("empty domain: got %v, want ErrMissingDomain", err)
	}
	for _, d := range []string{"localhost", "bad_domain.com", "-x.example.com", "exa mple.com"} {
		_, err := svc.AddDomain(ctx, "owner-1", d)
		if !errors.Is(err, service.ErrInvalidDomain) {
			t.Errorf("%q: got %v, want ErrInvalidDomain", d, err)
		}
		if !errors.Is(err, dns.ErrNotHostname) {
			t.Errorf("%q: expected the hostname error to be wrapped, got %v", d, err)
		}
	}
}

func TestAddDomain_foundSkipsCreate(t *testing.T) {
	hp := &stubProvider{find: func(_ context.Context, d string) (*model.ProviderHostname, error) {
		return &model.ProviderHostname{
			ID:       "ch_1",
			Hostname: d,
			OwnershipVerification: &model.OwnershipVerification{
				Type: "txt", Value: "owner-token",
			},
		}, nil
	}}
	store := newStubStore()
	svc := newService(store, hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if hp.creates != 0 {
		t.Errorf("create called %d times, want 0", hp.creates)
	}
	if res.Hostname.Source != model.SourceFound {
		t.Errorf("Source = %v, want found", res.Hostname.Source)
	}
	if res.Warning != "" {
		t.Errorf("unexpected warning %q", res.Warning)
	}
	row := store.get("shop.example.com")
	if row.OwnershipName != "_cf-custom-hostname.shop.example.com" {
		t.Errorf("ownership name = %q", row.OwnershipName)
	}
	if row.VerificationToken != "owner-token" {
		t.Errorf("token = %q", row.VerificationToken)
	}
}

func TestAddDomain_createdWithCNAMEOnly(t *testing.T) {
	hp := &stubProvider{
		find: notFound,
		create: func(_ context.Context, d string) (*model.ProviderHostname, error) {
			return &model.ProviderHostname{
				ID:       "ch_new",
				Hostname: d,
				SSL: &model.HostnameSSL{ValidationRecords: []model.ValidationRecord{
					{CNAMETarget: "dcv.provider.example"},
				}},
			}, nil
		},
	}
	store := newStubStore()
	svc := newService(store, hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if hp.finds != 1 || hp.creates != 1 {
		t.Errorf("finds=%d creates=%d, want 1/1", hp.finds, hp.creates)
	}
	if res.Hostname.Source != model.SourceCreated {
		t.Errorf("Source = %v, want created", res.Hostname.Source)
	}
	row := store.get("shop.example.com")
	if row.SSLName != "_acme-challenge.shop.example.com" {
		t.Errorf("ssl_name = %q", row.SSLName)
	}
	if row.SSLValue != "dcv.provider.example" {
		t.Errorf("ssl_value = %q", row.SSLValue)
	}
}

func TestAddDomain_checkFailureIsWarning(t *testing.T) {
	hp := &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return nil, provider.NewError(provider.OpCheck, errors.New("HTTP status 502: bad gateway"))
	}}
	store := newStubStore()
	svc := newService(store, hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "shop.example.com")
	if err != nil {
		t.Fatalf("provider failure must not fail the request: %v", err)
	}
	if res.Outcome != service.OutcomeReconciled {
		t.Errorf("Outcome = %v", res.Outcome)
	}
	if res.Warning == "" {
		t.Error("expected a warning")
	}
	if hp.creates != 0 {
		t.Error("create must not run after a failed check")
	}
	row := store.get("shop.example.com")
	if row == nil {
		t.Fatal("expected a placeholder row")
	}
	if row.VerificationToken != model.PendingVerificationToken {
		t.Errorf("token = %q, want pending", row.VerificationToken)
	}
	if row.OwnershipName != "_cf-custom-hostname.shop.example.com" {
		t.Errorf("ownership name = %q", row.OwnershipName)
	}
}

func TestAddDomain_createFailureIsWarning(t *testing.T) {
	hp := &stubProvider{
		find: notFound,
		create: func(context.Context, string) (*model.ProviderHostname, error) {
			return nil, provider.NewError(provider.OpCreate, errors.New("Duplicate custom hostname found. (1406)"))
		},
	}
	svc := newService(newStubStore(), hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Record == nil || res.Warning == "" {
		t.Errorf("expected stored record with warning, got %+v", res)
	}
}

func TestAddDomain_providerTimeoutIsWarning(t *testing.T) {
	hp := &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return nil, provider.NewError(provider.OpCheck, context.DeadlineExceeded)
	}}
	svc := newService(newStubStore(), hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "shop.example.com")
	if err != nil {
		t.Fatalf("provider timeout must not fail the request: %v", err)
	}
	if res.Outcome != service.OutcomeReconciled || res.Warning == "" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAddDomain_authFailureSkipsUpsert(t *testing.T) {
	store := newStubStore()
	ctx := context.Background()

	// Seed a verified row from an earlier, healthy run.
	good := newService(store, &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return &model.ProviderHostname{OwnershipVerification: &model.OwnershipVerification{Value: "real-token"}}, nil
	}})
	if _, err := good.AddDomain(ctx, "owner-1", "shop.example.com"); err != nil {
		t.Fatal(err)
	}
	store.rows["shop.example.com"].Verified = true
	before := store.get("shop.example.com")
	upserts := store.upserts

	hp := &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return nil, provider.NewError(provider.OpCheck, errors.New("Authentication error (10000)"))
	}}
	svc := newService(store, hp)

	res, err := svc.AddDomain(ctx, "owner-1", "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != service.OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", res.Outcome)
	}
	if res.Record != nil {
		t.Error("skipped result must not carry a record")
	}
	if res.Warning == "" {
		t.Error("expected warning")
	}
	if store.upserts != upserts {
		t.Error("upsert must not be called on provider auth failure")
	}
	after := store.get("shop.example.com")
	if *after != *before {
		t.Errorf("row changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestAddDomain_authFailureInsertsNothing(t *testing.T) {
	store := newStubStore()
	hp := &stubProvider{
		find: notFound,
		create: func(context.Context, string) (*model.ProviderHostname, error) {
			return nil, provider.NewError(provider.OpCreate, errors.New("Invalid API Token (1000)"))
		},
	}
	svc := newService(store, hp)

	res, err := svc.AddDomain(context.Background(), "owner-1", "new.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != service.OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", res.Outcome)
	}
	if len(store.rows) != 0 {
		t.Error("no row may be inserted on provider auth failure")
	}
}

func TestAddDomain_statusOnlyAuthFailureSkipsUpsert(t *testing.T) {
	store := newStubStore()
	ctx := context.Background()

	good := newService(store, &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return &model.ProviderHostname{OwnershipVerification: &model.OwnershipVerification{Value: "real-token"}}, nil
	}})
	if _, err := good.AddDomain(ctx, "owner-1", "shop.example.com"); err != nil {
		t.Fatal(err)
	}
	before := store.get("shop.example.com")
	upserts := store.upserts

	// A 401 with an empty body carries no recognizable message.
	hp := &stubProvider{find: func(context.Context, string) (*model.ProviderHostname, error) {
		return nil, provider.NewAuthError(provider.OpCheck, errors.New(""))
	}}
	res, err := newService(store, hp).AddDomain(ctx, "owner-1", "shop.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != service.OutcomeSkipped {
		t.Errorf("Outcome = %v, want skipped", res.Outcome)
	}
	if store.upserts != upserts {
		t.Error("upsert must not be called on provider auth failure")
	}
	if after := store.get("shop.example.com"); *after != *before {
		t.Errorf("row changed:\nbefore %+v\nafter  %+v", before, after)
	}
	if hp.creates != 0 {
		t.Error("create must not run after the check was rejected")
	}
}

func TestAddDomain_claimedByOtherOwner(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)
	ctx := context.Background()

	if _, err := svc.AddDomain(ctx, "owner-1", "example.com"); err != nil {
		t.Fatal(err)
	}
	before := store.get("example.com")

	_, err := svc.AddDomain(ctx, "owner-2", "example.com")
	if !errors.Is(err, service.ErrDomainAlreadyClaimed) {
		t.Fatalf("got %v, want ErrDomainAlreadyClaimed", err)
	}
	if after := store.get("example.com"); *after != *before {
		t.Error("existing row must be left unmodified")
	}
}

func TestAddDomain_verifiedSurvivesRetry(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)
	ctx := context.Background()

	first, err := svc.AddDomain(ctx, "owner-1", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	store.rows["example.com"].Verified = true

	second, err := svc.AddDomain(ctx, "owner-1", "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Record.Verified {
		t.Error("verified must not be reset on retry")
	}
	if !second.Record.CreatedAt.Equal(first.Record.CreatedAt) {
		t.Error("created_at must not change")
	}
}

func TestAddDomain_persistenceFailure(t *testing.T) {
	store := newStubStore()
	store.failErr = errors.New("connection reset")
	svc := newService(store, nil)

	_, err := svc.AddDomain(context.Background(), "owner-1", "example.com")
	if !errors.Is(err, service.ErrPersistence) {
		t.Fatalf("got %v, want ErrPersistence", err)
	}
}

func TestAddDomain_cancelledDuringProvider(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hp := &stubProvider{find: func(ctx context.Context, _ string) (*model.ProviderHostname, error) {
		cancel()
		return nil, provider.NewError(provider.OpCheck, ctx.Err())
	}}
	store := newStubStore()
	svc := newService(store, hp)

	_, err := svc.AddDomain(ctx, "owner-1", "example.com")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if store.upserts != 0 {
		t.Error("cancelled request must not reach storage")
	}
	if hp.creates != 0 {
		t.Error("cancelled request must not create a hostname")
	}
}

func TestGetDomain_ownerScoped(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)
	ctx := context.Background()

	if _, err := svc.AddDomain(ctx, "owner-1", "example.com"); err != nil {
		t.Fatal(err)
	}

	rec, err := svc.GetDomain(ctx, "owner-1", "EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetDomain: %v", err)
	}
	if rec.Domain != "example.com" {
		t.Errorf("domain = %q", rec.Domain)
	}

	if _, err := svc.GetDomain(ctx, "owner-2", "example.com"); !errors.Is(err, service.ErrDomainNotFound) {
		t.Errorf("other owner: got %v, want ErrDomainNotFound", err)
	}
	if _, err := svc.GetDomain(ctx, "owner-1", "missing.example.com"); !errors.Is(err, service.ErrDomainNotFound) {
		t.Errorf("missing: got %v, want ErrDomainNotFound", err)
	}
}

func TestListDomains(t *testing.T) {
	store := newStubStore()
	svc := newService(store, nil)
	ctx := context.Background()

	empty, err := svc.ListDomains(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}

	for _, d := range []string{"a.example.com", "b.example.com"} {
		if _, err := svc.AddDomain(ctx, "owner-1", d); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := svc.AddDomain(ctx, "owner-2", "c.example.com"); err != nil {
		t.Fatal(err)
	}

	recs, err := svc.ListDomains(ctx, "owner-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}
}

func TestMockMode(t *testing.T) {
	if !newService(newStubStore(), nil).MockMode() {
		t.Error("nil provider should mean mock mode")
	}
	if newService(newStubStore(), &stubProvider{find: notFound}).MockMode() {
		t.Error("configured provider should not be mock mode")
	}
}
