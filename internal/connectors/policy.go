// internal/connectors/policy.go
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// PolicySearchConnector finds the coverage policy governing the
// requested service in the policy index. No matching policy is a
// SUCCESS result with Found=false: the index answered, the answer was
// "no policy", and the gating rubric turns that into a PEND downstream.
type PolicySearchConnector struct {
	es        *elasticsearch.Client
	index     string
	timeout   time.Duration
	mandatory bool
	logger    logger.Logger
}

func NewPolicySearchConnector(
	es *elasticsearch.Client,
	index string,
	cfg config.ConnectorConfig,
	log logger.Logger,
) *PolicySearchConnector {
	return &PolicySearchConnector{
		es:        es,
		index:     index,
		timeout:   time.Duration(cfg.Timeout) * time.Millisecond,
		mandatory: cfg.Mandatory,
		logger:    log.WithFields(map[string]interface{}{"connector": models.ConnectorPolicySearch}),
	}
}

func (c *PolicySearchConnector) Name() string           { return models.ConnectorPolicySearch }
func (c *PolicySearchConnector) Mandatory() bool        { return c.mandatory }
func (c *PolicySearchConnector) Timeout() time.Duration { return c.timeout }

// policyDocument is the indexed shape of one coverage policy.
type policyDocument struct {
	PolicyID       string                   `json:"policyId"`
	Title          string                   `json:"title"`
	ProcedureCodes []string                 `json:"procedureCodes"`
	Criteria       []models.PolicyCriterion `json:"criteria"`
	DatasetLimited bool                     `json:"datasetLimited"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source policyDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *PolicySearchConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	query := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []interface{}{
					map[string]interface{}{
						"terms": map[string]interface{}{
							"procedureCodes": req.Service.ProcedureCodes,
						},
					},
					map[string]interface{}{
						"match": map[string]interface{}{
							"title": req.Service.Description,
						},
					},
				},
				"minimum_should_match": 1,
			},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
	)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewSearchTimeoutError()
		}
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		if res.StatusCode == http.StatusNotFound {
			return nil, errors.NewPolicyIndexNotFoundError(c.index)
		}
		return nil, errors.NewSearchQueryFailedError(
			stderrors.New("policy search returned " + res.Status()))
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	if len(body.Hits.Hits) == 0 {
		c.logger.Info("no coverage policy matched", map[string]interface{}{
			"requestId":      req.RequestID,
			"procedureCodes": req.Service.ProcedureCodes,
		})
		return success(models.PolicyMatch{Found: false}), nil
	}

	doc := body.Hits.Hits[0].Source
	return success(models.PolicyMatch{
		Found:          true,
		PolicyID:       doc.PolicyID,
		Title:          doc.Title,
		Criteria:       doc.Criteria,
		DatasetLimited: doc.DatasetLimited,
	}), nil
}
