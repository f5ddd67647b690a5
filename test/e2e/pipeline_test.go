// test/e2e/pipeline_test.go

// End-to-end pipeline tests against stub connector services: real
// normalizer, orchestrator, evidence mapper, scorer, decision engine,
// and waypoint store, with HTTP/Elasticsearch/Postgres/Redis backends
// faked at the wire level.
package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/connectors"
	"priorauth-engine/internal/engine"
	"priorauth-engine/internal/models"
	"priorauth-engine/internal/normalizer"
	"priorauth-engine/internal/orchestrator"
	"priorauth-engine/internal/store"
)

// ==========================
// Stub Backends
// ==========================

type stubBackends struct {
	providerCalls   atomic.Int32
	codeCalls       atomic.Int32
	literatureCalls atomic.Int32

	providerSrv   *httptest.Server
	codeSrv       *httptest.Server
	literatureSrv *httptest.Server
	esSrv         *httptest.Server

	invalidCodes bool
}

func newStubBackends(t *testing.T) *stubBackends {
	t.Helper()
	b := &stubBackends{}

	b.providerSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.providerCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]string{
			"npi":       "1234567893",
			"name":      "Dr. Alice Smith",
			"specialty": "orthopedics",
			"status":    "active",
		})
	}))
	t.Cleanup(b.providerSrv.Close)

	b.codeSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.codeCalls.Add(1)
		results := map[string]bool{"72148": true, "M54.5": true}
		datasetLimited := false
		if b.invalidCodes {
			results["M54.5"] = false
			datasetLimited = true
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results":        results,
			"datasetLimited": datasetLimited,
		})
	}))
	t.Cleanup(b.codeSrv.Close)

	b.literatureSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.literatureCalls.Add(1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"citations": []map[string]string{
				{"title": "Imaging appropriateness criteria for low back pain", "source": "ACR"},
			},
		})
	}))
	t.Cleanup(b.literatureSrv.Close)

	b.esSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"hits": []map[string]interface{}{
					{
						"_source": map[string]interface{}{
							"policyId":       "POL-MRI-001",
							"title":          "MRI Lumbar Spine",
							"procedureCodes": []string{"72148"},
							"criteria": []map[string]string{
								{"id": "C1", "description": "Six weeks of conservative therapy"},
								{"id": "C2", "description": "Neurological deficit documented on exam"},
							},
							"datasetLimited": false,
						},
					},
				},
			},
		})
	}))
	t.Cleanup(b.esSrv.Close)

	return b
}

func connectorConfig(baseURL string, mandatory bool) config.ConnectorConfig {
	return config.ConnectorConfig{
		Enabled:   true,
		BaseURL:   baseURL,
		Timeout:   2000,
		Mandatory: mandatory,
	}
}

func testRubric() config.RubricConfig {
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

// buildPipeline assembles the full engine over the stub backends.
func buildPipeline(t *testing.T, b *stubBackends, rdb *redis.Client) (*engine.Engine, sqlmock.Sqlmock) {
	t.Helper()
	log := logger.NewTestLogger(t)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	esClient, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{b.esSrv.URL}})
	require.NoError(t, err)

	conns := []connectors.Connector{
		connectors.NewCachedProviderRegistry(
			connectors.NewProviderRegistryConnector(connectorConfig(b.providerSrv.URL, true), log),
			rdb, time.Hour, log,
		),
		connectors.NewCachedCodeValidation(
			connectors.NewCodeValidationConnector(connectorConfig(b.codeSrv.URL, true), log),
			rdb, time.Hour, log,
		),
		connectors.NewPolicySearchConnector(esClient, "coverage-policies", connectorConfig("", true), log),
		connectors.NewFeeScheduleConnector(sqlDB, connectorConfig("", true), log),
		connectors.NewLiteratureSearchConnector(connectorConfig(b.literatureSrv.URL, false), log),
	}

	norm, err := normalizer.New(log)
	require.NoError(t, err)

	orch := orchestrator.New(conns, 500*time.Millisecond, log)
	waypoints := store.NewWaypointStore(sqlDB, log)
	return engine.New(norm, orch, testRubric(), log, engine.WithWaypointSaver(waypoints)), mock
}

func rawRequest(t *testing.T, npi string) json.RawMessage {
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
			"npi":  npi,
			"name": "Dr. Alice Smith",
		},
		"clinicalText": "Failed conservative therapy for 8 weeks. Exam documented neurological deficit in left leg.",
	})
	require.NoError(t, err)
	return raw
}

func expectFeeLookupAndInsert(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT description FROM fee_schedule").
		WithArgs("72148").
		WillReturnRows(sqlmock.NewRows([]string{"description"}).AddRow("MRI lumbar spine without contrast"))
	mock.ExpectExec("INSERT INTO assessment_waypoints").
		WillReturnResult(sqlmock.NewResult(1, 1))
}

// ==========================
// Pipeline Tests
// ==========================

func TestPipeline_CleanRequestApprovesAndPersists(t *testing.T) {
	b := newStubBackends(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	e, mock := buildPipeline(t, b, rdb)
	expectFeeLookupAndInsert(mock)

	w, err := e.Assess(context.Background(), rawRequest(t, "1234567893"))
	require.NoError(t, err)
	require.NotNil(t, w)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionApprove, rec.Decision)
	assert.Empty(t, rec.Gaps)
	assert.Equal(t, 1.0, rec.CriteriaMetRatio)
	assert.GreaterOrEqual(t, rec.ConfidenceScore, 75.0)

	results := w.Results()
	require.Len(t, results, 5)
	for name, r := range results {
		assert.Equal(t, models.StatusSuccess, r.Status, name)
	}

	criteria := w.Criteria()
	require.Len(t, criteria, 2)
	for _, c := range criteria {
		assert.Equal(t, models.CriterionMet, c.Status)
		assert.NotEmpty(t, c.Evidence)
	}

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, int32(1), b.providerCalls.Load())
	assert.Equal(t, int32(1), b.codeCalls.Load())
}

func TestPipeline_SecondAssessmentServedFromCache(t *testing.T) {
	b := newStubBackends(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	e, mock := buildPipeline(t, b, rdb)
	expectFeeLookupAndInsert(mock)
	expectFeeLookupAndInsert(mock)

	_, err := e.Assess(context.Background(), rawRequest(t, "1234567893"))
	require.NoError(t, err)

	w, err := e.Assess(context.Background(), rawRequest(t, "1234567893"))
	require.NoError(t, err)
	assert.Equal(t, models.DecisionApprove, w.Recommendation().Decision)

	// Idempotent registry and terminology lookups are served from Redis
	// the second time around.
	assert.Equal(t, int32(1), b.providerCalls.Load())
	assert.Equal(t, int32(1), b.codeCalls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipeline_BadChecksumNPIPends(t *testing.T) {
	b := newStubBackends(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	e, mock := buildPipeline(t, b, rdb)
	expectFeeLookupAndInsert(mock)

	w, err := e.Assess(context.Background(), rawRequest(t, "1234567890"))
	require.NoError(t, err)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionPend, rec.Decision)

	foundProviderGap := false
	for _, g := range rec.Gaps {
		if g.Critical && g.Description == "invalid provider identifier: NPI checksum failed" {
			foundProviderGap = true
		}
	}
	assert.True(t, foundProviderGap)

	// Checksum failures are decided locally; the registry is never
	// called.
	assert.Equal(t, int32(0), b.providerCalls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipeline_InvalidCodeWithDatasetLimitationPends(t *testing.T) {
	b := newStubBackends(t)
	b.invalidCodes = true
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	e, mock := buildPipeline(t, b, rdb)
	expectFeeLookupAndInsert(mock)

	w, err := e.Assess(context.Background(), rawRequest(t, "1234567893"))
	require.NoError(t, err)

	rec := w.Recommendation()
	assert.Equal(t, models.DecisionPend, rec.Decision)

	foundCodeGap := false
	for _, g := range rec.Gaps {
		if g.Description == "invalid codes: M54.5" {
			foundCodeGap = true
		}
	}
	assert.True(t, foundCodeGap)

	breakdown := w.Breakdown()
	require.NotNil(t, breakdown.Adjustment, "declared dataset limitation must surface as a logged adjustment")
	assert.Equal(t, 6.5, breakdown.Adjustment.Delta)
	assert.Equal(t, breakdown.RawTotal+6.5, breakdown.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPipeline_SchemaViolationShortCircuits(t *testing.T) {
	b := newStubBackends(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	e, mock := buildPipeline(t, b, rdb)

	w, err := e.Assess(context.Background(), json.RawMessage(`{"member":{"id":"M-1"}}`))
	require.Error(t, err)
	assert.Nil(t, w)

	// Nothing downstream ran: no connector calls, no persistence.
	assert.Equal(t, int32(0), b.providerCalls.Load())
	assert.Equal(t, int32(0), b.codeCalls.Load())
	assert.NoError(t, mock.ExpectationsWereMet())
}
