// internal/waypoint/waypoint.go

// Package waypoint holds the immutable record of one completed
// assessment. A waypoint is assembled exactly once, after the decision,
// and never mutated: every constructor input is deep-copied in and
// every accessor hands out copies.
package waypoint

import (
	"encoding/json"
	"time"

	"priorauth-engine/internal/models"
)

// SchemaVersion identifies the serialized record layout.
const SchemaVersion = "1.0"

// Waypoint is the write-once assessment record. All fields are
// unexported; mutation after construction is impossible from outside
// the package and nothing inside mutates after New returns.
type Waypoint struct {
	schemaVersion  string
	requestID      string
	createdAt      time.Time
	request        models.Request
	facts          []models.ClinicalFact
	results        models.ResultSet
	criteria       []models.Criterion
	breakdown      models.ConfidenceBreakdown
	recommendation models.Recommendation
	warnings       []string
}

// New assembles a waypoint from the full assessment state, copying
// everything so later changes to the inputs cannot reach the record.
func New(
	req *models.Request,
	facts []models.ClinicalFact,
	results models.ResultSet,
	criteria []models.Criterion,
	breakdown models.ConfidenceBreakdown,
	recommendation models.Recommendation,
	warnings []string,
) *Waypoint {
	r := *req
	r.Service.ProcedureCodes = append([]string(nil), req.Service.ProcedureCodes...)
	r.Service.DiagnosisCodes = append([]string(nil), req.Service.DiagnosisCodes...)

	return &Waypoint{
		schemaVersion:  SchemaVersion,
		requestID:      req.RequestID,
		createdAt:      time.Now().UTC(),
		request:        r,
		facts:          append([]models.ClinicalFact(nil), facts...),
		results:        results.Clone(),
		criteria:       models.CloneCriteria(criteria),
		breakdown:      cloneBreakdown(breakdown),
		recommendation: cloneRecommendation(recommendation),
		warnings:       append([]string(nil), warnings...),
	}
}

func (w *Waypoint) SchemaVersion() string { return w.schemaVersion }
func (w *Waypoint) RequestID() string     { return w.requestID }
func (w *Waypoint) CreatedAt() time.Time  { return w.createdAt }

// Request returns a copy of the assessed request.
func (w *Waypoint) Request() models.Request {
	r := w.request
	r.Service.ProcedureCodes = append([]string(nil), w.request.Service.ProcedureCodes...)
	r.Service.DiagnosisCodes = append([]string(nil), w.request.Service.DiagnosisCodes...)
	return r
}

// Facts returns a copy of the extracted clinical facts.
func (w *Waypoint) Facts() []models.ClinicalFact {
	return append([]models.ClinicalFact(nil), w.facts...)
}

// Results returns a copy of the merged connector result set.
func (w *Waypoint) Results() models.ResultSet {
	return w.results.Clone()
}

// Criteria returns a copy of the judged criteria.
func (w *Waypoint) Criteria() []models.Criterion {
	return models.CloneCriteria(w.criteria)
}

// Breakdown returns a copy of the confidence breakdown.
func (w *Waypoint) Breakdown() models.ConfidenceBreakdown {
	return cloneBreakdown(w.breakdown)
}

// Recommendation returns a copy of the decision record.
func (w *Waypoint) Recommendation() models.Recommendation {
	return cloneRecommendation(w.recommendation)
}

// Warnings returns a copy of the non-fatal warnings raised during the
// assessment.
func (w *Waypoint) Warnings() []string {
	return append([]string(nil), w.warnings...)
}

// record is the serialized waypoint layout.
type record struct {
	SchemaVersion     string                     `json:"schemaVersion"`
	RequestID         string                     `json:"requestId"`
	CreatedAt         time.Time                  `json:"createdAt"`
	Request           models.Request             `json:"request"`
	ClinicalFacts     []models.ClinicalFact      `json:"clinicalFacts,omitempty"`
	ValidationResults models.ResultSet           `json:"validationResults"`
	Criteria          []models.Criterion         `json:"criteria,omitempty"`
	Confidence        models.ConfidenceBreakdown `json:"confidence"`
	Recommendation    models.Recommendation      `json:"recommendation"`
	Warnings          []string                   `json:"warnings,omitempty"`
}

// Serialize renders the full record as JSON for persistence.
func (w *Waypoint) Serialize() ([]byte, error) {
	return json.Marshal(record{
		SchemaVersion:     w.schemaVersion,
		RequestID:         w.requestID,
		CreatedAt:         w.createdAt,
		Request:           w.request,
		ClinicalFacts:     w.facts,
		ValidationResults: w.results,
		Criteria:          w.criteria,
		Confidence:        w.breakdown,
		Recommendation:    w.recommendation,
		Warnings:          w.warnings,
	})
}

func cloneBreakdown(b models.ConfidenceBreakdown) models.ConfidenceBreakdown {
	if b.Adjustment != nil {
		adj := *b.Adjustment
		b.Adjustment = &adj
	}
	return b
}

func cloneRecommendation(r models.Recommendation) models.Recommendation {
	r.Gaps = models.CloneGaps(r.Gaps)
	return r
}
