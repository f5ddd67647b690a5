// internal/connectors/policy_test.go
package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

func newESTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *elasticsearch.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		handler(w, r)
	}))

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return srv, es
}

func policyConnector(t *testing.T, es *elasticsearch.Client) *PolicySearchConnector {
	t.Helper()
	return NewPolicySearchConnector(es, "coverage-policies", config.ConnectorConfig{
		Enabled:   true,
		Timeout:   2000,
		Mandatory: true,
	}, logger.NewTestLogger(t))
}

func TestPolicySearch_MatchedPolicy(t *testing.T) {
	srv, es := newESTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "coverage-policies")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"hits": []interface{}{
					map[string]interface{}{
						"_source": policyDocument{
							PolicyID:       "POL-MRI-001",
							Title:          "MRI Lumbar Spine",
							ProcedureCodes: []string{"72148"},
							Criteria: []models.PolicyCriterion{
								{ID: "C1", Description: "Six weeks of conservative therapy"},
								{ID: "C2", Description: "Neurological deficit documented"},
							},
						},
					},
				},
			},
		})
	})
	defer srv.Close()

	finding, err := policyConnector(t, es).Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, finding.Status)

	match := finding.Payload.(models.PolicyMatch)
	assert.True(t, match.Found)
	assert.Equal(t, "POL-MRI-001", match.PolicyID)
	require.Len(t, match.Criteria, 2)
	assert.Equal(t, "C1", match.Criteria[0].ID)
}

func TestPolicySearch_NoMatchIsSuccessNotFound(t *testing.T) {
	srv, es := newESTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{"hits": []interface{}{}},
		})
	})
	defer srv.Close()

	finding, err := policyConnector(t, es).Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, finding.Status, "a missing policy is an answer, not an outage")

	match := finding.Payload.(models.PolicyMatch)
	assert.False(t, match.Found)
	assert.Empty(t, match.Criteria)
}

func TestPolicySearch_MissingIndex(t *testing.T) {
	srv, es := newESTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"type": "index_not_found_exception"},
		})
	})
	defer srv.Close()

	_, err := policyConnector(t, es).Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodePolicyIndexNotFound, errors.CodeOf(err))
	assert.False(t, errors.IsRetryable(err))
}

func TestPolicySearch_ServerErrorIsRetryable(t *testing.T) {
	srv, es := newESTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "search_phase_execution_exception"})
	})
	defer srv.Close()

	_, err := policyConnector(t, es).Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSearchQueryFailed, errors.CodeOf(err))
	assert.True(t, errors.IsRetryable(err))
}
