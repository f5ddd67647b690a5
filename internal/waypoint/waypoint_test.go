// internal/waypoint/waypoint_test.go
package waypoint

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/models"
)

func fixture() (*models.Request, []models.ClinicalFact, models.ResultSet, []models.Criterion, models.ConfidenceBreakdown, models.Recommendation) {
	req := &models.Request{
		RequestID: "req-1",
		Member:    models.Member{ID: "M-1001", Name: "Jane Doe", State: "CO"},
		Service: models.Service{
			Description:    "MRI lumbar spine",
			ProcedureCodes: []string{"72148"},
			DiagnosisCodes: []string{"M54.5"},
		},
		Provider: models.Provider{NPI: "1234567893", Name: "Dr. Alice Smith"},
	}
	facts := []models.ClinicalFact{{Text: "Failed conservative therapy for 8 weeks", Confidence: 85}}
	results := models.ResultSet{
		models.ConnectorProviderRegistry: {
			Connector: models.ConnectorProviderRegistry,
			Status:    models.StatusSuccess,
			Payload:   models.ProviderVerification{Verified: true},
		},
	}
	criteria := []models.Criterion{
		{ID: "C1", Status: models.CriterionMet, Evidence: []string{"Failed conservative therapy for 8 weeks"}, Confidence: 75},
	}
	breakdown := models.ConfidenceBreakdown{
		Components: models.Components{ClinicalCriteria: 100},
		Weights:    models.DefaultWeights(),
		RawTotal:   61.5,
		Adjustment: &models.Adjustment{Delta: 6.5, Rationale: "known dataset limitation declared by code-validation"},
		Total:      68,
	}
	rec := models.Recommendation{
		Decision:        models.DecisionPend,
		ConfidenceScore: 68,
		Rationale:       "Pended for review: invalid provider identifier.",
		Gaps:            []models.Gap{{Description: "invalid provider identifier", Critical: true}},
	}
	return req, facts, results, criteria, breakdown, rec
}

func TestNew_CopiesInputs(t *testing.T) {
	req, facts, results, criteria, breakdown, rec := fixture()
	w := New(req, facts, results, criteria, breakdown, rec, []string{"LOW_CONFIDENCE_WARNING"})

	// Mutate every input after construction.
	req.Service.ProcedureCodes[0] = "99999"
	facts[0].Text = "tampered"
	results[models.ConnectorProviderRegistry] = models.ValidationResult{Status: models.StatusUnavailable}
	criteria[0].Evidence[0] = "tampered"
	breakdown.Adjustment.Delta = 99
	rec.Gaps[0].Description = "tampered"

	assert.Equal(t, "72148", w.Request().Service.ProcedureCodes[0])
	assert.Equal(t, "Failed conservative therapy for 8 weeks", w.Facts()[0].Text)
	assert.Equal(t, models.StatusSuccess, w.Results()[models.ConnectorProviderRegistry].Status)
	assert.Equal(t, "Failed conservative therapy for 8 weeks", w.Criteria()[0].Evidence[0])
	assert.Equal(t, 6.5, w.Breakdown().Adjustment.Delta)
	assert.Equal(t, "invalid provider identifier", w.Recommendation().Gaps[0].Description)
}

func TestAccessors_ReturnCopies(t *testing.T) {
	req, facts, results, criteria, breakdown, rec := fixture()
	w := New(req, facts, results, criteria, breakdown, rec, nil)

	// Mutating accessor output must not reach the record.
	w.Request().Service.ProcedureCodes[0] = "99999"
	w.Facts()[0].Text = "tampered"
	w.Results()[models.ConnectorProviderRegistry] = models.ValidationResult{}
	w.Criteria()[0].Evidence[0] = "tampered"
	w.Breakdown().Adjustment.Delta = 99
	w.Recommendation().Gaps[0].Description = "tampered"

	assert.Equal(t, "72148", w.Request().Service.ProcedureCodes[0])
	assert.Equal(t, "Failed conservative therapy for 8 weeks", w.Facts()[0].Text)
	assert.Equal(t, models.StatusSuccess, w.Results()[models.ConnectorProviderRegistry].Status)
	assert.Equal(t, "Failed conservative therapy for 8 weeks", w.Criteria()[0].Evidence[0])
	assert.Equal(t, 6.5, w.Breakdown().Adjustment.Delta)
	assert.Equal(t, "invalid provider identifier", w.Recommendation().Gaps[0].Description)
}

func TestWaypoint_Metadata(t *testing.T) {
	req, facts, results, criteria, breakdown, rec := fixture()

	before := time.Now().UTC()
	w := New(req, facts, results, criteria, breakdown, rec, nil)
	after := time.Now().UTC()

	assert.Equal(t, "1.0", w.SchemaVersion())
	assert.Equal(t, "req-1", w.RequestID())
	assert.False(t, w.CreatedAt().Before(before))
	assert.False(t, w.CreatedAt().After(after))
}

func TestSerialize_RecordShape(t *testing.T) {
	req, facts, results, criteria, breakdown, rec := fixture()
	w := New(req, facts, results, criteria, breakdown, rec, []string{"LOW_CONFIDENCE_WARNING"})

	raw, err := w.Serialize()
	require.NoError(t, err)

	var record map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &record))

	for _, key := range []string{
		"schemaVersion", "requestId", "createdAt", "request",
		"clinicalFacts", "validationResults", "criteria",
		"confidence", "recommendation", "warnings",
	} {
		assert.Contains(t, record, key)
	}

	var version string
	require.NoError(t, json.Unmarshal(record["schemaVersion"], &version))
	assert.Equal(t, "1.0", version)

	var confidence models.ConfidenceBreakdown
	require.NoError(t, json.Unmarshal(record["confidence"], &confidence))
	assert.Equal(t, 61.5, confidence.RawTotal)
	require.NotNil(t, confidence.Adjustment)
	assert.Equal(t, 6.5, confidence.Adjustment.Delta)
	assert.Equal(t, 68.0, confidence.Total)
}
