package model

import (
	"time"

	"github.com/google/uuid"
)

// RecordType is the DNS record kind the domain owner publishes.
type RecordType string

const (
	RecordTXT   RecordType = "txt"
	RecordCNAME RecordType = "cname"
)

// PendingVerificationToken is stored when neither the provider nor the mock
// path produced a usable token value.
const PendingVerificationToken = "pending_verification"

// DomainRecord is a persisted custom domain attached to an owner's site.
//
// Verified is owned by the external verification poller; the reconciler
// only ever inserts it as false and never overwrites an existing value.
type DomainRecord struct {
	ID                uuid.UUID  `json:"id"`
	OwnerID           string     `json:"owner_id"`
	Domain            string     `json:"domain"`
	OwnershipType     RecordType `json:"ownership_type"`
	OwnershipName     string     `json:"ownership_name"`
	OwnershipValue    string     `json:"ownership_value"`
	SSLName           string     `json:"ssl_name"`
	SSLValue          string     `json:"ssl_value"`
	VerificationToken string     `json:"verification_token"`
	Verified          bool       `json:"verified"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Record is a canonical {type, name, value} DNS record.
type Record struct {
	Type  RecordType `json:"type"`
	Name  string     `json:"name"`
	Value string     `json:"value"`
}

// IsZero reports whether no name and no value are set.
func (r Record) IsZero() bool {
	return r.Name == "" && r.Value == ""
}

// Verification is the canonical output of the normalizer: the ownership
// challenge plus the SSL (DCV) challenge, which may be empty while the
// provider has not populated it yet.
type Verification struct {
	Ownership Record `json:"ownership"`
	SSL       Record `json:"ssl"`
	Token     string `json:"verification_token"`
}

// UpsertParams is the input to the reconciliation upsert.
type UpsertParams struct {
	OwnerID      string
	Domain       string
	Verification Verification
}
