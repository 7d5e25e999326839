package dns

import (
	"strings"

	"github.com/jmerrifield20/customdomains/internal/domains/model"
)

// Normalize maps a provider hostname onto canonical ownership and SSL
// records. state may be nil (provider unavailable), in which case the
// ownership record carries only the default name and the SSL record is empty.
//
// For SSL only the first validation record is considered. A complete TXT
// pair always wins over a CNAME target on that record.
func Normalize(domain string, state *model.ProviderHostname) model.Verification {
	var ov model.OwnershipVerification
	var ssl *model.HostnameSSL
	if state != nil {
		if state.OwnershipVerification != nil {
			ov = *state.OwnershipVerification
		}
		ssl = state.SSL
	}

	v := model.Verification{
		Ownership: model.Record{
			Type:  recordType(ov.Type),
			Name:  orDefault(ov.Name, ownershipNamePrefix+domain),
			Value: ov.Value,
		},
		SSL: normalizeSSL(domain, ssl),
	}
	v.Token = token(v)
	return v
}

func normalizeSSL(domain string, ssl *model.HostnameSSL) model.Record {
	if ssl == nil || len(ssl.ValidationRecords) == 0 {
		return model.Record{}
	}
	first := ssl.ValidationRecords[0]
	switch {
	case first.TXTName != "" && first.TXTValue != "":
		return model.Record{Type: model.RecordTXT, Name: first.TXTName, Value: first.TXTValue}
	case first.CNAMETarget != "":
		return model.Record{
			Type:  model.RecordCNAME,
			Name:  orDefault(first.CNAME, acmeChallengePrefix+domain),
			Value: first.CNAMETarget,
		}
	default:
		return model.Record{}
	}
}

// recordType folds the provider's free-form type onto the two stored kinds.
// Anything other than cname is treated as txt.
func recordType(t string) model.RecordType {
	if strings.EqualFold(strings.TrimSpace(t), string(model.RecordCNAME)) {
		return model.RecordCNAME
	}
	return model.RecordTXT
}

func token(v model.Verification) string {
	switch {
	case v.Ownership.Value != "":
		return v.Ownership.Value
	case v.SSL.Value != "":
		return v.SSL.Value
	default:
		return model.PendingVerificationToken
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
