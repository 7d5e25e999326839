package model

// ProviderHostname is the provider's view of a custom hostname. Every field
// is optional; consumers must not assume any of them is populated.
type ProviderHostname struct {
	ID                    string                 `json:"id,omitempty"`
	Hostname              string                 `json:"hostname,omitempty"`
	Status                string                 `json:"status,omitempty"`
	OwnershipVerification *OwnershipVerification `json:"ownership_verification,omitempty"`
	SSL                   *HostnameSSL           `json:"ssl,omitempty"`
}

// OwnershipVerification is the provider's ownership challenge.
type OwnershipVerification struct {
	Type  string `json:"type,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// HostnameSSL is the provider's certificate state for a hostname.
type HostnameSSL struct {
	Status            string             `json:"status,omitempty"`
	Method            string             `json:"method,omitempty"`
	ValidationRecords []ValidationRecord `json:"validation_records,omitempty"`
}

// ValidationRecord is one DCV record. The provider fills either the TXT pair,
// the CNAME pair, or both.
type ValidationRecord struct {
	TXTName     string `json:"txt_name,omitempty"`
	TXTValue    string `json:"txt_value,omitempty"`
	CNAME       string `json:"cname,omitempty"`
	CNAMETarget string `json:"cname_target,omitempty"`
}

// HostnameSource tags where a HostnameResult came from.
type HostnameSource int

const (
	// SourceUnavailable means the provider could not be consulted or failed.
	SourceUnavailable HostnameSource = iota
	SourceFound
	SourceCreated
)

func (s HostnameSource) String() string {
	switch s {
	case SourceFound:
		return "found"
	case SourceCreated:
		return "created"
	default:
		return "unavailable"
	}
}

// HostnameResult is the outcome of the provisioning step. State is nil and
// Reason is set when Source is SourceUnavailable. Construct it with Found,
// Created or Unavailable.
type HostnameResult struct {
	Source HostnameSource
	State  *ProviderHostname
	Reason error
}

// Found wraps an existing provider hostname.
func Found(state *ProviderHostname) HostnameResult {
	return HostnameResult{Source: SourceFound, State: state}
}

// Created wraps a newly created provider hostname.
func Created(state *ProviderHostname) HostnameResult {
	return HostnameResult{Source: SourceCreated, State: state}
}

// Unavailable records a provider failure that did not abort the request.
func Unavailable(reason error) HostnameResult {
	return HostnameResult{Source: SourceUnavailable, Reason: reason}
}
