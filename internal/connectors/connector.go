// internal/connectors/connector.go

// Package connectors implements the outbound validation sources the
// orchestrator fans out to: provider registry, code validation, coverage
// policy search, fee schedule, and literature search.
package connectors

import (
	"context"
	"time"

	"priorauth-engine/internal/models"
)

// Finding is the successful outcome of one connector call. A NEGATIVE
// status is still a Finding: the source was reached and answered.
// Transport failures are returned as errors instead and classified by
// the orchestrator.
type Finding struct {
	Status  models.ConnectorStatus
	Payload any
	Detail  string
}

// Connector is one validation source. Fetch must honor ctx cancellation
// and return within the connector's own timeout; retryable transport
// errors are surfaced as errors carrying Retryable=true.
type Connector interface {
	Name() string
	Mandatory() bool
	Timeout() time.Duration
	Fetch(ctx context.Context, req *models.Request) (*Finding, error)
}

func success(payload any) *Finding {
	return &Finding{Status: models.StatusSuccess, Payload: payload}
}

func negative(payload any, detail string) *Finding {
	return &Finding{Status: models.StatusNegative, Payload: payload, Detail: detail}
}
