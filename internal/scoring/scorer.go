// internal/scoring/scorer.go

// Package scoring computes the weighted confidence breakdown from the
// connector results and the judged criteria.
package scoring

import (
	"fmt"
	"strings"

	"priorauth-engine/internal/common/config"
	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// Scorer turns connector outcomes, judged criteria, and extracted facts
// into a confidence breakdown. Component derivation and composition are
// split so the composition stays a pure weighted sum: recomputing it
// from a stored breakdown reproduces the raw total exactly.
type Scorer struct {
	rubric config.RubricConfig
	logger logger.Logger
}

func New(rubric config.RubricConfig, log logger.Logger) *Scorer {
	return &Scorer{
		rubric: rubric,
		logger: log.WithFields(map[string]interface{}{"component": "scorer"}),
	}
}

// Score derives the five components, detects any declared dataset
// limitation, and composes the final breakdown.
func (s *Scorer) Score(results models.ResultSet, criteria []models.Criterion, facts []models.ClinicalFact) models.ConfidenceBreakdown {
	components := s.DeriveComponents(results, criteria, facts)
	return s.Compose(components, s.datasetAdjustment(results))
}

// DeriveComponents scores each of the five inputs independently in
// [0,100]. UNAVAILABLE optional sources contribute nothing rather than
// penalizing: absence of advisory input is not negative evidence.
func (s *Scorer) DeriveComponents(results models.ResultSet, criteria []models.Criterion, facts []models.ClinicalFact) models.Components {
	return models.Components{
		ProviderVerification: providerComponent(results),
		CodeValidation:       codeComponent(results),
		CoveragePolicyMatch:  policyComponent(results),
		ClinicalCriteria:     criteriaComponent(criteria),
		DocumentationQuality: documentationComponent(facts),
	}
}

// Compose applies the weights to the components and then any bounded,
// logged adjustment. The weighted sum is monotonic in every component.
func (s *Scorer) Compose(components models.Components, adj *models.Adjustment) models.ConfidenceBreakdown {
	w := s.rubric.Weights
	raw := (components.ProviderVerification*w.ProviderVerification +
		components.CodeValidation*w.CodeValidation +
		components.CoveragePolicyMatch*w.CoveragePolicyMatch +
		components.ClinicalCriteria*w.ClinicalCriteria +
		components.DocumentationQuality*w.DocumentationQuality) / 100

	breakdown := models.ConfidenceBreakdown{
		Components: components,
		Weights:    w,
		RawTotal:   raw,
		Total:      raw,
	}

	if adj != nil {
		bounded := *adj
		bounded.Delta = clamp(adj.Delta, -s.rubric.MaxAdjustment, s.rubric.MaxAdjustment)
		breakdown.Adjustment = &bounded
		breakdown.Total = clamp(raw+bounded.Delta, 0, 100)
		s.logger.Info("confidence adjustment applied", map[string]interface{}{
			"delta":     bounded.Delta,
			"rationale": bounded.Rationale,
			"rawTotal":  raw,
			"total":     breakdown.Total,
		})
	}

	return breakdown
}

// datasetAdjustment returns the configured delta when any reference
// connector declared a known dataset limitation, nil otherwise.
func (s *Scorer) datasetAdjustment(results models.ResultSet) *models.Adjustment {
	var limited []string
	if codes, _, ok := results.Codes(); ok && codes.DatasetLimited {
		limited = append(limited, models.ConnectorCodeValidation)
	}
	if policy, _, ok := results.Policy(); ok && policy.DatasetLimited {
		limited = append(limited, models.ConnectorPolicySearch)
	}
	if len(limited) == 0 {
		return nil
	}
	return &models.Adjustment{
		Delta: s.rubric.DatasetLimitationDelta,
		Rationale: fmt.Sprintf("known dataset limitation declared by %s",
			strings.Join(limited, ", ")),
	}
}

func providerComponent(results models.ResultSet) float64 {
	provider, status, ok := results.Provider()
	if !ok || status != models.StatusSuccess || !provider.Verified {
		return 0
	}
	return 100
}

// codeComponent scores the fraction of valid codes, capped at 50 when
// the validator answered from a limited reference dataset: an all-clear
// from a partial code set is not a full-confidence validation.
func codeComponent(results models.ResultSet) float64 {
	codes, status, ok := results.Codes()
	if !ok || status == models.StatusUnavailable || len(codes.Results) == 0 {
		return 0
	}
	valid := 0
	for _, ok := range codes.Results {
		if ok {
			valid++
		}
	}
	score := float64(valid) / float64(len(codes.Results)) * 100
	if codes.DatasetLimited && score > 50 {
		score = 50
	}
	return score
}

func policyComponent(results models.ResultSet) float64 {
	policy, status, ok := results.Policy()
	if !ok || status != models.StatusSuccess || !policy.Found {
		return 0
	}
	if policy.DatasetLimited {
		return 50
	}
	return 100
}

// criteriaComponent averages per-criterion scores: MET counts in full,
// INSUFFICIENT counts half, NOT_MET counts nothing.
func criteriaComponent(criteria []models.Criterion) float64 {
	if len(criteria) == 0 {
		return 0
	}
	total := 0.0
	for _, c := range criteria {
		switch c.Status {
		case models.CriterionMet:
			total += 100
		case models.CriterionInsufficient:
			total += 50
		}
	}
	return total / float64(len(criteria))
}

// documentationComponent averages the extraction confidence of the
// facts. Literature findings stay out of the score entirely: the
// citation search is advisory payload for the reviewer, never a
// confidence input.
func documentationComponent(facts []models.ClinicalFact) float64 {
	if len(facts) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range facts {
		total += f.Confidence
	}
	return total / float64(len(facts))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
