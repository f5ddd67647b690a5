// internal/connectors/literature.go
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	commonhttp "priorauth-engine/internal/common/http"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// LiteratureSearchConnector pulls advisory clinical-literature citations
// for the requested service. It is optional: its absence never blocks an
// assessment, and its findings only enrich the documentation picture.
type LiteratureSearchConnector struct {
	client    *commonhttp.Client
	baseURL   string
	timeout   time.Duration
	mandatory bool
	logger    logger.Logger
}

func NewLiteratureSearchConnector(cfg config.ConnectorConfig, log logger.Logger) *LiteratureSearchConnector {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &LiteratureSearchConnector{
		client:    commonhttp.NewClient(timeout),
		baseURL:   cfg.BaseURL,
		timeout:   timeout,
		mandatory: cfg.Mandatory,
		logger:    log.WithFields(map[string]interface{}{"connector": models.ConnectorLiterature}),
	}
}

func (c *LiteratureSearchConnector) Name() string           { return models.ConnectorLiterature }
func (c *LiteratureSearchConnector) Mandatory() bool        { return c.mandatory }
func (c *LiteratureSearchConnector) Timeout() time.Duration { return c.timeout }

func (c *LiteratureSearchConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	query := url.Values{}
	query.Set("q", req.Service.Description)
	query.Set("codes", strings.Join(req.Service.ProcedureCodes, ","))

	endpoint := c.baseURL + "/api/v1/literature?" + query.Encode()
	httpReq, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewConnectorUnavailableError(c.Name(), err)
	}

	resp, err := c.client.DoWithContext(ctx, httpReq)
	if err != nil {
		return nil, errors.NewConnectorUnavailableError(c.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewConnectorUnavailableError(
			c.Name(), fmt.Errorf("literature service returned status %d", resp.StatusCode))
	}

	var findings models.LiteratureFindings
	if err := json.NewDecoder(resp.Body).Decode(&findings); err != nil {
		return nil, errors.NewConnectorUnavailableError(c.Name(), err)
	}

	return success(findings), nil
}
