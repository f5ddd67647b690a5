// internal/evidence/mapper.go

// Package evidence judges extracted clinical facts against the matched
// policy's criteria. The bias is conservative throughout: ambiguous or
// thin evidence resolves to INSUFFICIENT, never MET.
package evidence

import (
	"regexp"
	"strings"

	"priorauth-engine/internal/common/logger"
	"priorauth-engine/internal/models"
)

// matchThreshold is the minimum token overlap between a criterion and a
// fact for the fact to count as addressing that criterion at all.
const matchThreshold = 0.5

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"with": true, "within": true,
}

// Mapper evaluates each policy criterion against the extracted facts.
type Mapper struct {
	evidenceFloor float64
	logger        logger.Logger
}

// New creates a Mapper. evidenceFloor is the minimum extraction
// confidence (0-100) a fact needs before it can support a MET judgment.
func New(evidenceFloor float64, log logger.Logger) *Mapper {
	return &Mapper{
		evidenceFloor: evidenceFloor,
		logger:        log.WithFields(map[string]interface{}{"component": "evidence-mapper"}),
	}
}

// Map returns one judged Criterion per policy criterion, preserving the
// policy's ordering. The mapping is deterministic: the same criteria and
// facts always produce the same judgments.
func (m *Mapper) Map(criteria []models.PolicyCriterion, facts []models.ClinicalFact) []models.Criterion {
	out := make([]models.Criterion, 0, len(criteria))
	for _, pc := range criteria {
		out = append(out, m.judge(pc, facts))
	}
	return out
}

func (m *Mapper) judge(pc models.PolicyCriterion, facts []models.ClinicalFact) models.Criterion {
	criterionTokens := tokenize(pc.Description)

	var (
		support        *models.ClinicalFact
		supportOverlap float64
		refute         *models.ClinicalFact
		refuteOverlap  float64
	)

	for i := range facts {
		fact := &facts[i]
		ov := overlap(criterionTokens, tokenize(fact.Text))
		if ov < matchThreshold {
			continue
		}
		if fact.Negated {
			if ov > refuteOverlap {
				refute, refuteOverlap = fact, ov
			}
		} else {
			if ov > supportOverlap {
				support, supportOverlap = fact, ov
			}
		}
	}

	c := models.Criterion{ID: pc.ID, Description: pc.Description}

	switch {
	case support != nil && refute != nil:
		// Contradictory evidence never resolves in the member's favor
		// here; a reviewer has to look at it.
		c.Status = models.CriterionInsufficient
		c.Evidence = []string{support.Text, refute.Text}
		c.Confidence = minFloat(support.Confidence, refute.Confidence)
		m.logger.Warn("contradictory evidence for criterion", map[string]interface{}{
			"criterion": pc.ID,
		})

	case refute != nil:
		c.Status = models.CriterionNotMet
		c.Evidence = []string{refute.Text}
		c.Confidence = minFloat(refute.Confidence, refuteOverlap*100)

	case support != nil:
		c.Evidence = []string{support.Text}
		c.Confidence = minFloat(support.Confidence, supportOverlap*100)
		if support.Confidence >= m.evidenceFloor {
			c.Status = models.CriterionMet
		} else {
			// The fact addresses the criterion but was extracted with
			// too little confidence to stake an approval on.
			c.Status = models.CriterionInsufficient
		}

	default:
		c.Status = models.CriterionInsufficient
		c.Confidence = 0
	}

	return c
}

func tokenize(s string) []string {
	var tokens []string
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		if !stopwords[tok] {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// overlap is the fraction of criterion tokens present in the fact.
func overlap(criterion, fact []string) float64 {
	if len(criterion) == 0 {
		return 0
	}
	factSet := make(map[string]bool, len(fact))
	for _, tok := range fact {
		factSet[tok] = true
	}
	matched := 0
	for _, tok := range criterion {
		if factSet[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(criterion))
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
