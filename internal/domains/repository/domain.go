package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/customdomains/internal/domains/model"
)

// ErrNotFound is returned when no custom domain matches the lookup.
var ErrNotFound = errors.New("custom domain not found")

// ErrDomainClaimed is returned by Upsert when the domain is already
// registered to a different owner.
var ErrDomainClaimed = errors.New("domain already registered to another owner")

const pgUniqueViolation = "23505"

const domainColumns = `id, owner_id, domain, ownership_type, ownership_name, ownership_value,
	ssl_name, ssl_value, verification_token, verified, created_at, updated_at`

// DomainRepository persists custom domains in PostgreSQL.
type DomainRepository struct {
	db *pgxpool.Pool
}

// NewDomainRepository creates a new DomainRepository.
func NewDomainRepository(db *pgxpool.Pool) *DomainRepository {
	return &DomainRepository{db: db}
}

// Upsert calls upsert_domain, which inserts the domain or refreshes its
// verification records in one statement. Repeating a call with the same
// owner and domain converges on a single row; verified and created_at are
// preserved across updates.
func (r *DomainRepository) Upsert(ctx context.Context, p model.UpsertParams) (*model.DomainRecord, error) {
	v := p.Verification
	row := r.db.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM upsert_domain($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.OwnerID, p.Domain, v.Token,
		string(v.Ownership.Type), v.Ownership.Name, v.Ownership.Value,
		v.SSL.Name, v.SSL.Value,
	)
	d, err := scanDomain(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDomainClaimed
		}
		return nil, fmt.Errorf("upsert domain: %w", err)
	}
	return d, nil
}

// GetByDomain returns the custom domain record for domain.
func (r *DomainRepository) GetByDomain(ctx context.Context, domain string) (*model.DomainRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+domainColumns+` FROM custom_domains WHERE domain = $1`, domain,
	)
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

// ListByOwner returns the owner's domains, newest first.
func (r *DomainRepository) ListByOwner(ctx context.Context, ownerID string) ([]*model.DomainRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+domainColumns+` FROM custom_domains
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []*model.DomainRecord
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return out, nil
}

func scanDomain(row pgx.Row) (*model.DomainRecord, error) {
	d := &model.DomainRecord{}
	var ownershipType string
	err := row.Scan(
		&d.ID, &d.OwnerID, &d.Domain,
		&ownershipType, &d.OwnershipName, &d.OwnershipValue,
		&d.SSLName, &d.SSLValue, &d.VerificationToken,
		&d.Verified, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.OwnershipType = model.RecordType(ownershipType)
	return d, nil
}
