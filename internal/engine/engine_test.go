// internal/engine/engine_test.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
	"priorauth-engine/internal/normalizer"
	"priorauth-engine/internal/waypoint"
)

// fakeValidator returns a canned result set in place of the connector
// fan-out.
type fakeValidator struct {
	results models.ResultSet
	err     error
}

func (f *fakeValidator) Validate(ctx context.Context, req *models.Request) (models.ResultSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeSaver struct {
	saved []*waypoint.Waypoint
	err   error
}

func (f *fakeSaver) Save(ctx context.Context, w *waypoint.Waypoint) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, w)
	return nil
}

func defaultRubric() config.RubricConfig {
	return config.RubricConfig{
		Version:                "1.0",
		Weights:                models.DefaultWeights(),
		ApproveConfidence:      70,
		CriteriaMetRatio:       0.80,
		BorderlineBand:         5,
		EvidenceFloor:          70,
		LowConfidenceWarn:      60,
		DatasetLimitationDelta: 6.5,
		MaxAdjustment:          10,
	}
}

func newEngine(t *testing.T, validator Validator, opts ...Option) *Engine {
	t.Helper()
	norm, err := normalizer.New(logger.NewTestLogger(t))
	require.NoError(t, err)
	return New(norm, validator, defaultRubric(), logger.NewTestLogger(t), opts...)
}

func rawRequest(t *testing.T) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"member": map[string]interface{}{
			"id":          "M-1001",
			"name":        "Jane Doe",
			"dateOfBirth": "1975-03-14",
			"state":       "CO",
		},
		"service": map[string]interface{}{
			"description":    "MRI lumbar spine without contrast",
			"procedureCodes": []string{"72148"},
			"diagnosisCodes": []string{"M54.5"},
		},
		"provider": map[string]interface{}{
			"npi":  "1234567893",
			"name": "Dr. Alice Smith",
		},
		"clinicalText": "Failed conservative therapy for 8 weeks. Exam documented neurological deficit in left leg.",
	})
	require.NoError(t, err)
	return raw
}

func mriPolicy(datasetLimited bool) models.PolicyMatch {
	return models.PolicyMatch{
		Found:    true,
		PolicyID: "POL-MRI-001",
		Title:    "MRI Lumbar Spine",
		Criteria: []models.PolicyCriterion{
			{ID: "C1", Description: "Six weeks of conservative therapy"},
			{ID: "C2", Description: "Neurological deficit documented on exam"},
		},
		DatasetLimited: datasetLimited,
	}
}

func cleanResults() models.ResultSet {
	return models.ResultSet{
		models.ConnectorProviderRegistry: {
			Connector: models.ConnectorProviderRegistry,
			Status:    models.StatusSuccess,
			Payload:   models.ProviderVerification{Verified: true, Status: "active"},
		},
		models.ConnectorCodeValidation: {
			Connector: models.ConnectorCodeValidation,
			Status:    models.StatusSuccess,
			Payload:   models.CodeValidation{Results: map[string]bool{"72148": true, "M54.5": true}},
		},
		models.ConnectorPolicySearch: {
			Connector: models.ConnectorPolicySearch,
			Status:    models.StatusSuccess,
			Payload:   mriPolicy(false),
		},
		models.ConnectorFeeSchedule: {
			Connector: models.ConnectorFeeSchedule,
			Status:    models.StatusSuccess,
			Payload:   models.FeeScheduleLookup{Descriptions: map[string]string{"72148": "MRI lumbar spine"}},
		},
		models.ConnectorLiterature: {
			Connector: models.ConnectorLiterature,
			Status:    models.StatusSuccess,
			Payload:   models.LiteratureFindings{Citations: []models.Citation{{Title: "Imaging appropriateness"}}},
		},
	}
}

func TestAssess_CleanRequestApproves(t *testing.T) {
	saver := &fakeSaver{}
	e := newEngine(t, &fakeValidator{results: cleanResults()}, WithWaypointSaver(saver))

	w, err := e.Assess(context.Background(), rawRequest(t))
	require.NoError(t, err)
	require.NotNil(t, w)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionApprove, rec.Decision)
	assert.Empty(t, rec.Gaps)
	assert.Equal(t, 1.0, rec.CriteriaMetRatio)
	assert.GreaterOrEqual(t, rec.ConfidenceScore, 75.0)

	assert.Equal(t, "1.0", w.SchemaVersion())
	assert.Empty(t, w.Warnings())
	require.Len(t, saver.saved, 1)
	assert.Equal(t, w.RequestID(), saver.saved[0].RequestID())

	criteria := w.Criteria()
	require.Len(t, criteria, 2)
	for _, c := range criteria {
		assert.Equal(t, models.CriterionMet, c.Status)
		assert.NotEmpty(t, c.Evidence)
	}
}

func TestAssess_UnverifiedProviderWithDatasetLimitationPends(t *testing.T) {
	results := cleanResults()
	results[models.ConnectorProviderRegistry] = models.ValidationResult{
		Connector: models.ConnectorProviderRegistry,
		Status:    models.StatusNegative,
		Payload:   models.ProviderVerification{Verified: false},
		Detail:    "invalid provider identifier: NPI checksum failed",
	}
	results[models.ConnectorCodeValidation] = models.ValidationResult{
		Connector: models.ConnectorCodeValidation,
		Status:    models.StatusNegative,
		Payload: models.CodeValidation{
			Results:        map[string]bool{"72148": true, "M54.5": false},
			DatasetLimited: true,
		},
	}
	results[models.ConnectorPolicySearch] = models.ValidationResult{
		Connector: models.ConnectorPolicySearch,
		Status:    models.StatusSuccess,
		Payload:   mriPolicy(true),
	}

	e := newEngine(t, &fakeValidator{results: results})

	w, err := e.Assess(context.Background(), rawRequest(t))
	require.NoError(t, err)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionPend, rec.Decision)
	assert.Less(t, rec.ConfidenceScore, 70.0)

	foundProviderGap := false
	for _, g := range rec.Gaps {
		if g.Critical && g.Description == "invalid provider identifier: NPI checksum failed" {
			foundProviderGap = true
		}
	}
	assert.True(t, foundProviderGap)

	breakdown := w.Breakdown()
	require.NotNil(t, breakdown.Adjustment, "declared dataset limitation must be a logged adjustment")
	assert.Equal(t, 6.5, breakdown.Adjustment.Delta)
	assert.Equal(t, breakdown.RawTotal+6.5, breakdown.Total)
}

func TestAssess_MissingPolicyWarnsLowConfidence(t *testing.T) {
	results := cleanResults()
	results[models.ConnectorPolicySearch] = models.ValidationResult{
		Connector: models.ConnectorPolicySearch,
		Status:    models.StatusSuccess,
		Payload:   models.PolicyMatch{Found: false},
	}

	e := newEngine(t, &fakeValidator{results: results})

	w, err := e.Assess(context.Background(), rawRequest(t))
	require.NoError(t, err)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionPend, rec.Decision)

	// No policy means no criteria and no policy component; confidence
	// drops under the soft threshold.
	require.NotEmpty(t, w.Warnings())
	assert.Contains(t, w.Warnings()[0], "LOW_CONFIDENCE_WARNING")
}

func TestAssess_SchemaViolationProducesNoWaypoint(t *testing.T) {
	saver := &fakeSaver{}
	e := newEngine(t, &fakeValidator{results: cleanResults()}, WithWaypointSaver(saver))

	w, err := e.Assess(context.Background(), json.RawMessage(`{"member":{}}`))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.Equal(t, errors.ErrCodeSchemaViolation, errors.CodeOf(err))
	assert.Empty(t, saver.saved)
}

func TestAssess_ValidatorFailureAborts(t *testing.T) {
	saver := &fakeSaver{}
	e := newEngine(t, &fakeValidator{
		err: errors.NewConnectorUnavailableError(models.ConnectorPolicySearch, fmt.Errorf("connection refused")),
	}, WithWaypointSaver(saver))

	w, err := e.Assess(context.Background(), rawRequest(t))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.Equal(t, errors.ErrCodeConnectorUnavailable, errors.CodeOf(err))
	assert.Empty(t, saver.saved, "aborted assessments never persist")
}

func TestAssess_SaveFailurePropagates(t *testing.T) {
	saver := &fakeSaver{err: errors.NewDuplicateWaypointError("req-1")}
	e := newEngine(t, &fakeValidator{results: cleanResults()}, WithWaypointSaver(saver))

	w, err := e.Assess(context.Background(), rawRequest(t))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.Equal(t, errors.ErrCodeDuplicateWaypoint, errors.CodeOf(err))
}

func TestAssess_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newEngine(t, &fakeValidator{results: cleanResults()})

	w, err := e.Assess(ctx, rawRequest(t))
	require.Error(t, err)
	assert.Nil(t, w)
	assert.Equal(t, errors.ErrCodeAssessmentCancelled, errors.CodeOf(err))
}
