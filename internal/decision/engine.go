// internal/decision/engine.go

// Package decision applies the gating rubric to a scored assessment.
// The engine can APPROVE or PEND, never deny: anything short of the
// approval bar routes to a human reviewer with the gaps spelled out.
package decision

import (
	"fmt"
	"sort"
	"strings"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/common/metrics"
	"priorauth-engine/internal/models"
)

// Engine applies the injected, versioned rubric. Decisions are
// deterministic: the same inputs under the same rubric always produce
// the same recommendation, gaps included.
type Engine struct {
	rubric config.RubricConfig
	logger logger.Logger
}

func New(rubric config.RubricConfig, log logger.Logger) *Engine {
	return &Engine{
		rubric: rubric,
		logger: log.WithFields(map[string]interface{}{"component": "decision-engine"}),
	}
}

// Decide evaluates every approval condition and returns the
// recommendation. All conditions are checked even after one fails, so a
// pended case carries the complete gap list, not just the first miss.
//
// INSUFFICIENT criteria alone do not block approval: the met-ratio
// threshold already bounds how many of them an approval tolerates.
// Their gaps are attached only when the case pends, so the reviewer
// sees them.
func (e *Engine) Decide(results models.ResultSet, criteria []models.Criterion, breakdown models.ConfidenceBreakdown) models.Recommendation {
	var blocking []models.Gap

	blocking = append(blocking, e.providerGaps(results)...)
	blocking = append(blocking, e.codeGaps(results)...)
	blocking = append(blocking, e.policyGaps(results)...)
	blocking = append(blocking, e.notMetGaps(criteria)...)

	metRatio := models.MetRatio(criteria)
	if metRatio < e.rubric.CriteriaMetRatio {
		blocking = append(blocking, models.Gap{
			Description: fmt.Sprintf("%.0f%% of policy criteria met, %.0f%% required",
				metRatio*100, e.rubric.CriteriaMetRatio*100),
			Critical:       false,
			RequiredAction: "submit additional clinical documentation",
		})
	}

	confidence := breakdown.Total
	if confidence < e.rubric.ApproveConfidence {
		blocking = append(blocking, models.Gap{
			Description: fmt.Sprintf("confidence %.1f below approval threshold %.1f",
				confidence, e.rubric.ApproveConfidence),
			Critical:       false,
			RequiredAction: "route for manual review",
		})
	}

	borderline := false
	if len(blocking) == 0 && confidence < e.rubric.ApproveConfidence+e.rubric.BorderlineBand {
		// Clears every gate but lands inside the borderline band:
		// flagged and pended rather than auto-approved.
		borderline = true
		blocking = append(blocking, models.Gap{
			Description: fmt.Sprintf("confidence %.1f within borderline band [%.1f, %.1f)",
				confidence, e.rubric.ApproveConfidence, e.rubric.ApproveConfidence+e.rubric.BorderlineBand),
			Critical:       false,
			RequiredAction: "medical director review",
		})
		metrics.BorderlineFlagged.Inc()
	}

	rec := models.Recommendation{
		ConfidenceScore:  confidence,
		CriteriaMetRatio: metRatio,
		Borderline:       borderline,
	}

	if len(blocking) == 0 {
		rec.Decision = models.DecisionApprove
		rec.Rationale = fmt.Sprintf(
			"All approval conditions satisfied: provider verified, all codes valid, coverage policy matched, %.0f%% of criteria met, confidence %.1f.",
			metRatio*100, confidence)
	} else {
		rec.Decision = models.DecisionPend
		rec.Gaps = append(blocking, e.insufficientGaps(criteria)...)
		rec.Rationale = pendRationale(blocking)
	}

	e.logger.Info("decision made", map[string]interface{}{
		"decision":   rec.Decision,
		"confidence": confidence,
		"metRatio":   metRatio,
		"borderline": borderline,
		"gaps":       len(rec.Gaps),
	})
	metrics.AssessmentsCompleted.WithLabelValues(string(rec.Decision)).Inc()

	return rec
}

func (e *Engine) providerGaps(results models.ResultSet) []models.Gap {
	provider, status, ok := results.Provider()
	if ok && status == models.StatusSuccess && provider.Verified {
		return nil
	}
	description := "invalid provider identifier"
	if r, exists := results[models.ConnectorProviderRegistry]; exists && r.Detail != "" {
		description = r.Detail
	}
	return []models.Gap{{
		Description:    description,
		Critical:       true,
		RequiredAction: "correct the provider NPI and resubmit",
	}}
}

func (e *Engine) codeGaps(results models.ResultSet) []models.Gap {
	codes, status, ok := results.Codes()
	if ok && status == models.StatusSuccess && codes.AllValid() {
		return nil
	}
	invalid := codes.InvalidCodes()
	sort.Strings(invalid)
	description := "code validation did not pass"
	if len(invalid) > 0 {
		description = "invalid codes: " + strings.Join(invalid, ", ")
	}
	return []models.Gap{{
		Description:    description,
		Critical:       true,
		RequiredAction: "correct the procedure/diagnosis coding and resubmit",
	}}
}

func (e *Engine) policyGaps(results models.ResultSet) []models.Gap {
	policy, status, ok := results.Policy()
	if ok && status == models.StatusSuccess && policy.Found {
		return nil
	}
	return []models.Gap{{
		Description:    "no coverage policy matched the requested service",
		Critical:       true,
		RequiredAction: "route for manual policy determination",
	}}
}

// notMetGaps reports criteria the evidence actively contradicts. These
// always block approval regardless of the met ratio.
func (e *Engine) notMetGaps(criteria []models.Criterion) []models.Gap {
	var gaps []models.Gap
	for _, c := range criteria {
		if c.Status == models.CriterionNotMet {
			gaps = append(gaps, models.Gap{
				Description:    fmt.Sprintf("criterion %s not met: %s", c.ID, c.Description),
				Critical:       true,
				RequiredAction: "clinical evidence contradicts this criterion; manual review required",
			})
		}
	}
	return gaps
}

// insufficientGaps lists criteria that need more documentation. Advisory
// only: attached to pended recommendations for the reviewer.
func (e *Engine) insufficientGaps(criteria []models.Criterion) []models.Gap {
	var gaps []models.Gap
	for _, c := range criteria {
		if c.Status == models.CriterionInsufficient {
			gaps = append(gaps, models.Gap{
				Description:    fmt.Sprintf("insufficient evidence for criterion %s: %s", c.ID, c.Description),
				Critical:       false,
				RequiredAction: "submit documentation addressing this criterion",
			})
		}
	}
	return gaps
}

func pendRationale(gaps []models.Gap) string {
	reasons := make([]string, 0, len(gaps))
	for _, g := range gaps {
		reasons = append(reasons, g.Description)
	}
	return "Pended for review: " + strings.Join(reasons, "; ") + "."
}
