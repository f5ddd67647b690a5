// internal/models/result.go
package models

import "time"

// ConnectorStatus distinguishes "reached and returned a negative
// finding" from "could not be reached at all". Gating treats the two
// very differently: NEGATIVE feeds the rubric, UNAVAILABLE on a
// mandatory connector aborts the assessment.
type ConnectorStatus string

const (
	StatusSuccess     ConnectorStatus = "SUCCESS"
	StatusNegative    ConnectorStatus = "NEGATIVE"
	StatusUnavailable ConnectorStatus = "UNAVAILABLE"
)

// Connector names, used as keys of the aggregated result set.
const (
	ConnectorProviderRegistry = "provider-registry"
	ConnectorCodeValidation   = "code-validation"
	ConnectorPolicySearch     = "policy-search"
	ConnectorFeeSchedule      = "fee-schedule"
	ConnectorLiterature       = "literature-search"
)

// ValidationResult is the outcome of one connector call. Produced
// exactly once per connector per assessment and never mutated after
// insertion into the result set.
type ValidationResult struct {
	Connector string          `json:"connector"`
	Status    ConnectorStatus `json:"status"`
	Payload   any             `json:"payload,omitempty"`
	Latency   time.Duration   `json:"latencyMs"`
	Detail    string          `json:"detail,omitempty"`
}

// ResultSet aggregates connector outcomes keyed by connector name.
// The merge that builds it is commutative, so arrival order never
// affects the final aggregate.
type ResultSet map[string]ValidationResult

// ProviderVerification is the provider-registry connector payload.
type ProviderVerification struct {
	Verified  bool   `json:"verified"`
	Name      string `json:"name,omitempty"`
	Specialty string `json:"specialty,omitempty"`
	Status    string `json:"status,omitempty"`
}

// CodeValidation is the diagnosis-code connector payload.
type CodeValidation struct {
	Results        map[string]bool   `json:"results"`
	Details        map[string]string `json:"details,omitempty"`
	DatasetLimited bool              `json:"datasetLimited,omitempty"`
}

// AllValid reports whether every submitted code validated.
func (c CodeValidation) AllValid() bool {
	for _, ok := range c.Results {
		if !ok {
			return false
		}
	}
	return len(c.Results) > 0
}

// InvalidCodes returns the failing codes. Map iteration order is not
// stable; callers needing deterministic output must sort.
func (c CodeValidation) InvalidCodes() []string {
	var invalid []string
	for code, ok := range c.Results {
		if !ok {
			invalid = append(invalid, code)
		}
	}
	return invalid
}

// PolicyCriterion is one coverage requirement listed by a matched
// policy. Ordering is policy-defined and preserved end to end.
type PolicyCriterion struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// PolicyMatch is the coverage-policy connector payload. Found=false is
// a SUCCESS result (the index was reachable and answered), not a
// NEGATIVE one; the gating rubric turns a missing policy into a PEND.
type PolicyMatch struct {
	Found          bool              `json:"found"`
	PolicyID       string            `json:"policyId,omitempty"`
	Title          string            `json:"title,omitempty"`
	Criteria       []PolicyCriterion `json:"criteria,omitempty"`
	DatasetLimited bool              `json:"datasetLimited,omitempty"`
}

// FeeScheduleLookup is the procedure-code connector payload.
type FeeScheduleLookup struct {
	Descriptions map[string]string `json:"descriptions"`
	Missing      []string          `json:"missing,omitempty"`
}

// Citation is one advisory literature reference.
type Citation struct {
	Title  string `json:"title"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
}

// LiteratureFindings is the optional literature-search payload.
type LiteratureFindings struct {
	Citations []Citation `json:"citations"`
}

// Provider returns the provider-registry payload, if present.
func (rs ResultSet) Provider() (ProviderVerification, ConnectorStatus, bool) {
	r, ok := rs[ConnectorProviderRegistry]
	if !ok {
		return ProviderVerification{}, "", false
	}
	p, _ := r.Payload.(ProviderVerification)
	return p, r.Status, true
}

// Codes returns the code-validation payload, if present.
func (rs ResultSet) Codes() (CodeValidation, ConnectorStatus, bool) {
	r, ok := rs[ConnectorCodeValidation]
	if !ok {
		return CodeValidation{}, "", false
	}
	c, _ := r.Payload.(CodeValidation)
	return c, r.Status, true
}

// Policy returns the policy-search payload, if present.
func (rs ResultSet) Policy() (PolicyMatch, ConnectorStatus, bool) {
	r, ok := rs[ConnectorPolicySearch]
	if !ok {
		return PolicyMatch{}, "", false
	}
	p, _ := r.Payload.(PolicyMatch)
	return p, r.Status, true
}

// Fees returns the fee-schedule payload, if present.
func (rs ResultSet) Fees() (FeeScheduleLookup, ConnectorStatus, bool) {
	r, ok := rs[ConnectorFeeSchedule]
	if !ok {
		return FeeScheduleLookup{}, "", false
	}
	f, _ := r.Payload.(FeeScheduleLookup)
	return f, r.Status, true
}

// Clone returns a copy of the result set so the waypoint can own its
// records by value.
func (rs ResultSet) Clone() ResultSet {
	out := make(ResultSet, len(rs))
	for k, v := range rs {
		out[k] = v
	}
	return out
}
