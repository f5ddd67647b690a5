// internal/models/recommendation.go
package models

// Decision is the gating outcome. DENY does not exist in this type on
// purpose: denial is outside this engine's authority.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionPend    Decision = "PEND"
)

// Gap is one reason an assessment fell short of approval, with the
// action required to close it.
type Gap struct {
	Description    string `json:"description"`
	Critical       bool   `json:"critical"`
	RequiredAction string `json:"requiredAction"`
}

// Recommendation is the decision record emitted by the gating rubric.
type Recommendation struct {
	Decision         Decision `json:"decision"`
	ConfidenceScore  float64  `json:"confidenceScore"`
	Rationale        string   `json:"rationale"`
	CriteriaMetRatio float64  `json:"criteriaMetRatio"`
	Borderline       bool     `json:"borderline"`
	Gaps             []Gap    `json:"gaps,omitempty"`
}

// CloneGaps deep-copies the gap list.
func CloneGaps(gaps []Gap) []Gap {
	return append([]Gap(nil), gaps...)
}
