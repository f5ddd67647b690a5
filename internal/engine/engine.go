// internal/engine/engine.go

// Package engine runs the full assessment pipeline: normalize, fan out
// to the validation connectors, judge evidence, score confidence, gate
// the decision, and seal the waypoint.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/errors"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/common/metrics"
	"priorauth-engine/internal/common/observability"
	"priorauth-engine/internal/decision"
	"priorauth-engine/internal/evidence"
	"priorauth-engine/internal/models"
	"priorauth-engine/internal/normalizer"
	"priorauth-engine/internal/scoring"
	"priorauth-engine/internal/waypoint"
)

// Phase is the pipeline position of an in-flight assessment. Phases
// advance strictly forward; an assessment that aborts never reaches
// DECIDED and never produces a waypoint.
type Phase string

const (
	PhaseIntake     Phase = "INTAKE"
	PhaseValidating Phase = "VALIDATING"
	PhaseEvaluating Phase = "EVALUATING"
	PhaseDecided    Phase = "DECIDED"
)

// WaypointSaver persists sealed waypoints. Optional: an engine without
// one still assesses, it just doesn't persist.
type WaypointSaver interface {
	Save(ctx context.Context, w *waypoint.Waypoint) error
}

// Validator runs the connector fan-out. Satisfied by
// orchestrator.Orchestrator.
type Validator interface {
	Validate(ctx context.Context, req *models.Request) (models.ResultSet, error)
}

// Engine wires the pipeline stages together.
type Engine struct {
	normalizer *normalizer.Normalizer
	validator  Validator
	mapper     *evidence.Mapper
	scorer     *scoring.Scorer
	decider    *decision.Engine
	rubric     config.RubricConfig
	saver      WaypointSaver
	obs        *observability.Observability
	logger     logger.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

func WithWaypointSaver(s WaypointSaver) Option {
	return func(e *Engine) { e.saver = s }
}

func WithObservability(obs *observability.Observability) Option {
	return func(e *Engine) { e.obs = obs }
}

func New(
	norm *normalizer.Normalizer,
	validator Validator,
	rubric config.RubricConfig,
	log logger.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		normalizer: norm,
		validator:  validator,
		mapper:     evidence.New(rubric.EvidenceFloor, log),
		scorer:     scoring.New(rubric, log),
		decider:    decision.New(rubric, log),
		rubric:     rubric,
		logger:     log.WithFields(map[string]interface{}{"component": "assessment-engine"}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assess runs one request through the whole pipeline and returns the
// sealed waypoint. Any abort before DECIDED returns an error and no
// waypoint; partial assessments are never persisted.
func (e *Engine) Assess(ctx context.Context, raw json.RawMessage) (*waypoint.Waypoint, error) {
	start := time.Now()

	w, err := e.assess(ctx, raw)
	if err != nil {
		metrics.AssessmentsFailed.WithLabelValues(string(errors.CodeOf(err))).Inc()
		return nil, err
	}

	elapsed := time.Since(start)
	metrics.AssessmentDuration.Observe(elapsed.Seconds())
	if e.obs != nil {
		outcome := string(w.Recommendation().Decision)
		e.obs.RecordAssessment(ctx, outcome)
		e.obs.RecordAssessmentDuration(ctx, elapsed, outcome)
	}
	return w, nil
}

func (e *Engine) assess(ctx context.Context, raw json.RawMessage) (*waypoint.Waypoint, error) {
	// INTAKE
	ctx, end := e.startSpan(ctx, "assessment.intake")
	req, facts, err := e.normalizer.Normalize(raw)
	end()
	if err != nil {
		return nil, err
	}
	log := e.logger.WithFields(map[string]interface{}{"requestId": req.RequestID})
	e.advance(log, PhaseIntake, PhaseValidating)

	// VALIDATING
	ctx, end = e.startSpan(ctx, "assessment.validate")
	results, err := e.validator.Validate(ctx, req)
	end()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewAssessmentCancelledError(err)
	}
	e.advance(log, PhaseValidating, PhaseEvaluating)

	// EVALUATING
	_, end = e.startSpan(ctx, "assessment.evaluate")
	policy, _, _ := results.Policy()
	criteria := e.mapper.Map(policy.Criteria, facts)
	breakdown := e.scorer.Score(results, criteria, facts)
	rec := e.decider.Decide(results, criteria, breakdown)
	end()

	var warnings []string
	if breakdown.Total < e.rubric.LowConfidenceWarn {
		warn := errors.NewLowConfidenceWarning(breakdown.Total, e.rubric.LowConfidenceWarn)
		warnings = append(warnings, warn.Error())
		log.Warn("low confidence assessment", map[string]interface{}{
			"confidence": breakdown.Total,
			"threshold":  e.rubric.LowConfidenceWarn,
		})
	}
	e.advance(log, PhaseEvaluating, PhaseDecided)

	// DECIDED: seal and persist.
	w := waypoint.New(req, facts, results, criteria, breakdown, rec, warnings)
	if e.saver != nil {
		if err := e.saver.Save(ctx, w); err != nil {
			return nil, err
		}
	}

	log.Info("assessment decided", map[string]interface{}{
		"decision":   rec.Decision,
		"confidence": rec.ConfidenceScore,
		"borderline": rec.Borderline,
		"gaps":       len(rec.Gaps),
	})
	return w, nil
}

func (e *Engine) advance(log logger.Logger, from, to Phase) {
	log.Debug("phase transition", map[string]interface{}{
		"from": string(from),
		"to":   string(to),
	})
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if e.obs != nil {
		ctx, span := e.obs.StartSpan(ctx, name)
		return ctx, func() { span.End() }
	}
	return ctx, func() {}
}
