// internal/models/criterion.go
package models

// CriterionStatus is the judgment of clinical evidence against one
// policy criterion. Ambiguous or borderline evidence always resolves to
// INSUFFICIENT, never MET.
type CriterionStatus string

const (
	CriterionMet          CriterionStatus = "MET"
	CriterionNotMet       CriterionStatus = "NOT_MET"
	CriterionInsufficient CriterionStatus = "INSUFFICIENT"
)

// Criterion is one evaluated coverage requirement. The full assessment
// holds an ordered slice mirroring the matched policy's criteria list.
type Criterion struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Status      CriterionStatus `json:"status"`
	Evidence    []string        `json:"evidence,omitempty"`
	Confidence  float64         `json:"confidence"`
}

// MetRatio returns the fraction of criteria judged MET, or 0 for an
// empty list.
func MetRatio(criteria []Criterion) float64 {
	if len(criteria) == 0 {
		return 0
	}
	met := 0
	for _, c := range criteria {
		if c.Status == CriterionMet {
			met++
		}
	}
	return float64(met) / float64(len(criteria))
}

// CloneCriteria deep-copies a criteria slice including evidence spans.
func CloneCriteria(criteria []Criterion) []Criterion {
	out := make([]Criterion, len(criteria))
	for i, c := range criteria {
		cc := c
		cc.Evidence = append([]string(nil), c.Evidence...)
		out[i] = cc
	}
	return out
}
