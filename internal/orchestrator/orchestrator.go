// internal/orchestrator/orchestrator.go

// Package orchestrator fans a validated request out to every enabled
// validation connector concurrently and merges the outcomes into a
// single result set.
package orchestrator

import (
	"context"
	"time"

	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/common/metrics"
	"priorauth-engine/internal/connectors"
	"priorauth-engine/internal/models"
)

// Orchestrator coordinates the concurrent fan-out. Each connector call
// gets its own timeout and at most one retry on a transient failure.
// Mandatory connectors gate the assessment: if one cannot be reached,
// the whole assessment aborts. Optional connectors get a short grace
// window after the mandatory set completes, then are recorded as
// UNAVAILABLE and left behind.
type Orchestrator struct {
	connectors    []connectors.Connector
	optionalGrace time.Duration
	logger        logger.Logger
}

func New(conns []connectors.Connector, optionalGrace time.Duration, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		connectors:    conns,
		optionalGrace: optionalGrace,
		logger:        log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// callOutcome is one connector's contribution to the merge.
type callOutcome struct {
	connector string
	mandatory bool
	result    models.ValidationResult
	fatal     *errors.StandardError
}

// Validate runs the fan-out and returns the merged result set. The
// merge is commutative: arrival order never changes the aggregate.
// Caller cancellation discards everything and returns an
// ASSESSMENT_CANCELLED error; partial result sets are never returned.
func (o *Orchestrator) Validate(ctx context.Context, req *models.Request) (models.ResultSet, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan callOutcome, len(o.connectors))
	mandatoryCount := 0
	optionalCount := 0
	for _, conn := range o.connectors {
		if conn.Mandatory() {
			mandatoryCount++
		} else {
			optionalCount++
		}
		go o.dispatch(ctx, conn, req, outcomes)
	}

	results := make(models.ResultSet, len(o.connectors))
	mandatoryDone := 0
	optionalDone := 0

	// Phase 1: wait for every mandatory connector. A fatal outcome
	// cancels the remaining in-flight calls immediately.
	for mandatoryDone < mandatoryCount {
		select {
		case <-ctx.Done():
			return nil, errors.NewAssessmentCancelledError(ctx.Err())
		case out := <-outcomes:
			// Caller cancellation wins over any outcome that raced in;
			// cancel() is only called internally after this check.
			if ctx.Err() != nil {
				return nil, errors.NewAssessmentCancelledError(ctx.Err())
			}
			if out.fatal != nil {
				cancel()
				o.logger.Error("mandatory connector unavailable", map[string]interface{}{
					"requestId": req.RequestID,
					"connector": out.connector,
				})
				return nil, out.fatal
			}
			results[out.connector] = out.result
			if out.mandatory {
				mandatoryDone++
			} else {
				optionalDone++
			}
		}
	}

	// Phase 2: soft join. Optional connectors that miss the grace
	// window are recorded as UNAVAILABLE, never awaited further.
	if optionalDone < optionalCount {
		grace := time.NewTimer(o.optionalGrace)
		defer grace.Stop()

	graceLoop:
		for optionalDone < optionalCount {
			select {
			case <-ctx.Done():
				return nil, errors.NewAssessmentCancelledError(ctx.Err())
			case <-grace.C:
				break graceLoop
			case out := <-outcomes:
				if ctx.Err() != nil {
					return nil, errors.NewAssessmentCancelledError(ctx.Err())
				}
				results[out.connector] = out.result
				optionalDone++
			}
		}
	}

	for _, conn := range o.connectors {
		if _, ok := results[conn.Name()]; !ok {
			o.logger.Warn("optional connector missed grace window", map[string]interface{}{
				"requestId": req.RequestID,
				"connector": conn.Name(),
			})
			results[conn.Name()] = models.ValidationResult{
				Connector: conn.Name(),
				Status:    models.StatusUnavailable,
				Detail:    "no result within grace window",
			}
			metrics.ConnectorCalls.WithLabelValues(conn.Name(), string(models.StatusUnavailable)).Inc()
		}
	}

	return results, nil
}

// dispatch runs one connector with its per-call timeout and at most one
// retry on a retryable failure.
func (o *Orchestrator) dispatch(ctx context.Context, conn connectors.Connector, req *models.Request, out chan<- callOutcome) {
	start := time.Now()
	finding, err := o.fetchOnce(ctx, conn, req)

	if err != nil && errors.IsRetryable(err) && ctx.Err() == nil {
		metrics.ConnectorRetries.WithLabelValues(conn.Name()).Inc()
		o.logger.Warn("retrying connector after transient failure", map[string]interface{}{
			"requestId": req.RequestID,
			"connector": conn.Name(),
			"error":     err.Error(),
		})
		finding, err = o.fetchOnce(ctx, conn, req)
	}

	latency := time.Since(start)
	metrics.ConnectorLatency.WithLabelValues(conn.Name()).Observe(latency.Seconds())

	outcome := callOutcome{connector: conn.Name(), mandatory: conn.Mandatory()}
	switch {
	case err == nil:
		outcome.result = models.ValidationResult{
			Connector: conn.Name(),
			Status:    finding.Status,
			Payload:   finding.Payload,
			Latency:   latency,
			Detail:    finding.Detail,
		}
		metrics.ConnectorCalls.WithLabelValues(conn.Name(), string(finding.Status)).Inc()

	case conn.Mandatory():
		outcome.fatal = errors.NewConnectorUnavailableError(conn.Name(), err)
		metrics.ConnectorCalls.WithLabelValues(conn.Name(), string(models.StatusUnavailable)).Inc()

	default:
		outcome.result = models.ValidationResult{
			Connector: conn.Name(),
			Status:    models.StatusUnavailable,
			Latency:   latency,
			Detail:    err.Error(),
		}
		metrics.ConnectorCalls.WithLabelValues(conn.Name(), string(models.StatusUnavailable)).Inc()
	}

	select {
	case out <- outcome:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) fetchOnce(ctx context.Context, conn connectors.Connector, req *models.Request) (*connectors.Finding, error) {
	callCtx, cancel := context.WithTimeout(ctx, conn.Timeout())
	defer cancel()
	return conn.Fetch(callCtx, req)
}
