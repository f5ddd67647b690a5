// internal/connectors/provider.go
package connectors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	commonhttp "priorauth-engine/internal/common/http"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// ProviderRegistryConnector verifies the requesting provider's NPI
// against the provider registry. An NPI that fails the checksum is
// rejected locally as NEGATIVE without spending a registry call.
type ProviderRegistryConnector struct {
	client    *commonhttp.Client
	baseURL   string
	timeout   time.Duration
	mandatory bool
	logger    logger.Logger
}

func NewProviderRegistryConnector(cfg config.ConnectorConfig, log logger.Logger) *ProviderRegistryConnector {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	return &ProviderRegistryConnector{
		client:    commonhttp.NewClient(timeout),
		baseURL:   cfg.BaseURL,
		timeout:   timeout,
		mandatory: cfg.Mandatory,
		logger:    log.WithFields(map[string]interface{}{"connector": models.ConnectorProviderRegistry}),
	}
}

func (c *ProviderRegistryConnector) Name() string           { return models.ConnectorProviderRegistry }
func (c *ProviderRegistryConnector) Mandatory() bool        { return c.mandatory }
func (c *ProviderRegistryConnector) Timeout() time.Duration { return c.timeout }

type registryResponse struct {
	NPI       string `json:"npi"`
	Name      string `json:"name"`
	Specialty string `json:"specialty"`
	Status    string `json:"status"`
}

func (c *ProviderRegistryConnector) Fetch(ctx context.Context, req *models.Request) (*Finding, error) {
	npi := req.Provider.NPI
	if !ValidNPI(npi) {
		c.logger.Warn("npi failed checksum", map[string]interface{}{"npi": npi})
		return negative(
			models.ProviderVerification{Verified: false},
			"invalid provider identifier: NPI checksum failed",
		), nil
	}

	url := fmt.Sprintf("%s/api/v1/providers/%s", c.baseURL, npi)
	httpReq, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NewConnectorUnavailableError(c.Name(), err)
	}

	resp, err := c.client.DoWithContext(ctx, httpReq)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.NewRegistryTimeoutError(err)
		}
		return nil, errors.NewConnectorUnavailableError(c.Name(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var body registryResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, errors.NewConnectorUnavailableError(c.Name(), err)
		}
		verification := models.ProviderVerification{
			Verified:  body.Status == "active",
			Name:      body.Name,
			Specialty: body.Specialty,
			Status:    body.Status,
		}
		if !verification.Verified {
			return negative(verification, fmt.Sprintf("provider registered but not active (status %q)", body.Status)), nil
		}
		return success(verification), nil

	case resp.StatusCode == http.StatusNotFound:
		return negative(
			models.ProviderVerification{Verified: false},
			"provider not found in registry",
		), nil

	default:
		return nil, errors.NewConnectorUnavailableError(
			c.Name(), fmt.Errorf("registry returned status %d", resp.StatusCode))
	}
}

// ValidNPI runs the Luhn check over the NPI with the standard 80840
// card-issuer prefix. It assumes the 10-digit format was already
// enforced upstream.
func ValidNPI(npi string) bool {
	if len(npi) != 10 {
		return false
	}
	digits := "80840" + npi
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if d < 0 || d > 9 {
			return false
		}
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
