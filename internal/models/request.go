// internal/models/request.go
package models

// Member identifies the covered individual a request is filed for.
type Member struct {
	ID    string `json:"memberId"`
	Name  string `json:"name"`
	DOB   string `json:"dateOfBirth"`
	State string `json:"state"`
}

// Service describes the requested service and its coding.
type Service struct {
	Description    string   `json:"description"`
	ProcedureCodes []string `json:"procedureCodes"`
	DiagnosisCodes []string `json:"diagnosisCodes"`
}

// Provider identifies the requesting/rendering provider.
type Provider struct {
	NPI       string `json:"npi"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
}

// Request is the normalized internal model of a prior-authorization
// request. It is immutable once accepted by the normalizer; downstream
// components receive it by value or as a read-only pointer and never
// write to it.
type Request struct {
	RequestID    string   `json:"requestId"`
	Member       Member   `json:"member"`
	Service      Service  `json:"service"`
	Provider     Provider `json:"provider"`
	ClinicalText string   `json:"clinicalText"`
}

// ClinicalFact is one extracted span of the attached clinical text,
// with the extraction confidence assigned by the normalizer (0-100).
type ClinicalFact struct {
	Text       string  `json:"text"`
	Negated    bool    `json:"negated"`
	Confidence float64 `json:"confidence"`
}
