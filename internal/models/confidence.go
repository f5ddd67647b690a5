// internal/models/confidence.go
package models

import "fmt"

// Component names of the confidence breakdown.
const (
	ComponentProviderVerification = "provider_verification"
	ComponentCodeValidation       = "code_validation"
	ComponentCoveragePolicyMatch  = "coverage_policy_match"
	ComponentClinicalCriteria     = "clinical_criteria"
	ComponentDocumentationQuality = "documentation_quality"
)

// Weights holds the fixed component weights, expressed as percentages.
// Weights are configuration, never derived at runtime from data, and
// must sum to exactly 100.
type Weights struct {
	ProviderVerification float64 `mapstructure:"provider_verification" json:"provider_verification"`
	CodeValidation       float64 `mapstructure:"code_validation" json:"code_validation"`
	CoveragePolicyMatch  float64 `mapstructure:"coverage_policy_match" json:"coverage_policy_match"`
	ClinicalCriteria     float64 `mapstructure:"clinical_criteria" json:"clinical_criteria"`
	DocumentationQuality float64 `mapstructure:"documentation_quality" json:"documentation_quality"`
}

// DefaultWeights is the 20/15/20/35/10 split used when no override is
// configured.
func DefaultWeights() Weights {
	return Weights{
		ProviderVerification: 20,
		CodeValidation:       15,
		CoveragePolicyMatch:  20,
		ClinicalCriteria:     35,
		DocumentationQuality: 10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.ProviderVerification + w.CodeValidation + w.CoveragePolicyMatch +
		w.ClinicalCriteria + w.DocumentationQuality
}

// Validate rejects weight sets that do not sum to exactly 100.
func (w Weights) Validate() error {
	if w.Sum() != 100 {
		return fmt.Errorf("confidence weights must sum to 100, got %.2f", w.Sum())
	}
	return nil
}

// Components holds the five independently scored inputs of the
// confidence total, each in [0,100].
type Components struct {
	ProviderVerification float64 `json:"provider_verification"`
	CodeValidation       float64 `json:"code_validation"`
	CoveragePolicyMatch  float64 `json:"coverage_policy_match"`
	ClinicalCriteria     float64 `json:"clinical_criteria"`
	DocumentationQuality float64 `json:"documentation_quality"`
}

// Adjustment is an explicitly logged confidence delta applied for a
// declared dataset-limitation exception. Never silent: the rationale is
// mandatory and travels with the breakdown.
type Adjustment struct {
	Delta     float64 `json:"delta"`
	Rationale string  `json:"rationale"`
}

// ConfidenceBreakdown is the scored confidence with full provenance:
// component scores, weights, the raw weighted total, any adjustment,
// and the final total. Recomputing the weighted sum from the stored
// components must reproduce RawTotal exactly.
type ConfidenceBreakdown struct {
	Components Components  `json:"components"`
	Weights    Weights     `json:"weights"`
	RawTotal   float64     `json:"rawTotal"`
	Adjustment *Adjustment `json:"adjustment,omitempty"`
	Total      float64     `json:"total"`
}
