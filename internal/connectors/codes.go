// internal/connectors/codes.go
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	commonhttp "priorauth-engine/internal/common/http"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// CodeValidationConnector checks every submitted procedure and diagnosis
// code against the terminology service in a single batch call.
type CodeValidationConnector struct {
	client    *commonhttp.Client
	baseURL   string
	timeout   time.Duration
	mandatory bool
	logger    logger.Logger
}

func NewCodeValidationConnector(cfg config.ConnectorConfig, log logger.Logger) *CodeValidationConnector {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &CodeValidationConnector{
		client:    commonhttp.NewClient(timeout),
		baseURL:   cfg.BaseURL,
		timeout:   timeout,
		mandatory: cfg.Mandatory,
		logger:    log.WithFields(map[string]interface{}{"connector": models.ConnectorCodeValidation}),
	}
}

func (c *CodeValidationConnector) Name() string           { return models.ConnectorCodeValidation }
func (c *CodeValidationConnector) Mandatory() bool        { return c.mandatory }
func (c *CodeValidationConnector) Timeout() time.Duration { return c.timeout }

type codeValidationRequest struct {
	ProcedureCodes []string `json:"procedureCodes"`
	DiagnosisCodes []string `json:"diagnosisCodes"`
}

func (c *CodeValidationConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	body, err := json.Marshal(codeValidationRequest{
		ProcedureCodes: req.Service.ProcedureCodes,
		DiagnosisCodes: req.Service.DiagnosisCodes,
	})
	if err != nil {
		return nil, errors.NewCodeLookupFailedError(err)
	}

	url := c.baseURL + "/api/v1/codes/validate"
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewCodeLookupFailedError(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.DoWithContext(ctx, httpReq)
	if err != nil {
		return nil, errors.NewCodeLookupFailedError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewCodeLookupFailedError(
			fmt.Errorf("code validation service returned status %d", resp.StatusCode))
	}

	var validation models.CodeValidation
	if err := json.NewDecoder(resp.Body).Decode(&validation); err != nil {
		return nil, errors.NewCodeLookupFailedError(err)
	}

	if validation.AllValid() {
		return success(validation), nil
	}

	invalid := validation.InvalidCodes()
	sort.Strings(invalid)
	c.logger.Warn("invalid codes in request", map[string]interface{}{
		"requestId": req.RequestID,
		"invalid":   invalid,
	})
	return negative(validation, "invalid codes: "+strings.Join(invalid, ", ")), nil
}
