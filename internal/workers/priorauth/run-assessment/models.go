// internal/workers/priorauth/run-assessment/models.go
package runassessment

import "encoding/json"

type Input struct {
	// Request is the raw prior-authorization request as submitted by the
	// intake process. It is validated against the request schema before
	// anything else runs.
	Request json.RawMessage `json:"request"`
}

type Output struct {
	RequestID        string       `json:"requestId"`
	Decision         string       `json:"decision"` // "APPROVE" or "PEND"
	ConfidenceScore  float64      `json:"confidenceScore"`
	Borderline       bool         `json:"borderline"`
	CriteriaMetRatio float64      `json:"criteriaMetRatio"`
	Rationale        string       `json:"rationale"`
	Gaps             []GapSummary `json:"gaps,omitempty"`
	Warnings         []string     `json:"warnings,omitempty"`
	AssessedAt       string       `json:"assessedAt"` // ISO 8601
}

// GapSummary is the workflow-facing projection of an evidence gap: just
// enough for the BPMN process to route and display, not the full record.
type GapSummary struct {
	Description    string `json:"description"`
	RequiredAction string `json:"requiredAction,omitempty"`
	Critical       bool   `json:"critical"`
}
