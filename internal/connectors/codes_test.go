// internal/connectors/codes_test.go
package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

func TestCodeValidation_AllValid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/codes/validate", r.URL.Path)

		var req codeValidationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"72148"}, req.ProcedureCodes)
		assert.Equal(t, []string{"M54.5"}, req.DiagnosisCodes)

		json.NewEncoder(w).Encode(models.CodeValidation{
			Results: map[string]bool{"72148": true, "M54.5": true},
		})
	}))
	defer srv.Close()

	c := NewCodeValidationConnector(providerConfig(srv.URL), logger.NewTestLogger(t))

	finding, err := c.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, finding.Status)

	payload := finding.Payload.(models.CodeValidation)
	assert.True(t, payload.AllValid())
}

func TestCodeValidation_InvalidCodeIsNegative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CodeValidation{
			Results: map[string]bool{"72148": true, "M54.5": false},
			Details: map[string]string{"M54.5": "retired code"},
		})
	}))
	defer srv.Close()

	c := NewCodeValidationConnector(providerConfig(srv.URL), logger.NewTestLogger(t))

	finding, err := c.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNegative, finding.Status)
	assert.Contains(t, finding.Detail, "M54.5")

	payload := finding.Payload.(models.CodeValidation)
	assert.Equal(t, []string{"M54.5"}, payload.InvalidCodes())
}

func TestCodeValidation_DatasetLimitedStillSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.CodeValidation{
			Results:        map[string]bool{"72148": true, "M54.5": true},
			DatasetLimited: true,
		})
	}))
	defer srv.Close()

	c := NewCodeValidationConnector(providerConfig(srv.URL), logger.NewTestLogger(t))

	finding, err := c.Fetch(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, finding.Status)
	assert.True(t, finding.Payload.(models.CodeValidation).DatasetLimited)
}

func TestCodeValidation_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewCodeValidationConnector(providerConfig(srv.URL), logger.NewTestLogger(t))

	_, err := c.Fetch(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, errors.ErrCodeCodeLookupFailed, errors.CodeOf(err))
}
