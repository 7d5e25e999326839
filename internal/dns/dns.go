// Package dns holds the pure DNS logic of custom domain provisioning:
// hostname validation, the deterministic offline (mock) challenge, and the
// normalizer that maps provider hostname state onto canonical records.
// Nothing in this package performs I/O.
package dns

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmerrifield20/customdomains/internal/domains/model"
)

// ErrNotHostname is returned when a domain is empty or not a hostname.
var ErrNotHostname = errors.New("not a valid hostname")

const (
	mockTokenPrefix     = "verify-"
	mockRecordPrefix    = "_verify."
	ownershipNamePrefix = "_cf-custom-hostname."
	acmeChallengePrefix = "_acme-challenge."

	maxHostnameLength = 253
)

var hostnameRegex = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)

// Canonicalize trims, lowercases and strips a trailing dot from domain, then
// checks that the result is a syntactically valid multi-label hostname.
func Canonicalize(domain string) (string, error) {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if d == "" {
		return "", ErrNotHostname
	}
	if len(d) > maxHostnameLength || !hostnameRegex.MatchString(d) {
		return "", ErrNotHostname
	}
	return d, nil
}

// MockToken returns the offline verification token for domain. It depends on
// the domain string alone, so repeated calls always agree.
func MockToken(domain string) string {
	return mockTokenPrefix + strings.ReplaceAll(domain, ".", "-")
}

// MockTXTHost returns the record name the owner publishes in offline mode.
func MockTXTHost(domain string) string {
	return mockRecordPrefix + domain
}

// MockVerification synthesizes the canonical records used when no provider
// is configured. There is never an SSL record in this mode.
func MockVerification(domain string) model.Verification {
	token := MockToken(domain)
	return model.Verification{
		Ownership: model.Record{
			Type:  model.RecordTXT,
			Name:  MockTXTHost(domain),
			Value: token,
		},
		Token: token,
	}
}
