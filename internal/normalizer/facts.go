// internal/normalizer/facts.go
package normalizer

import (
	"regexp"
	"strings"

	"priorauth-engine/internal/models"
)

var (
	sentenceSplit = regexp.MustCompile(`[.;\n]+`)
	digitPattern  = regexp.MustCompile(`[0-9]`)

	// Cues that negate the clause they open. Matching is prefix-biased
	// on purpose: "no acute distress" is negated, "cannot rule out" is
	// handled by the ambiguity cues in the evidence mapper instead.
	negationCues = []string{
		"no ",
		"not ",
		"denies ",
		"denied ",
		"without ",
		"negative for ",
		"absence of ",
		"never ",
	}

	// Markers that raise confidence in a fact: concrete clinical
	// vocabulary beats narrative prose.
	clinicalMarkers = []string{
		"diagnosis",
		"diagnosed",
		"mri",
		"ct ",
		"x-ray",
		"xray",
		"lab",
		"a1c",
		"bmi",
		"therapy",
		"treatment",
		"medication",
		"symptom",
		"failed",
		"prior",
		"weeks",
		"months",
		"conservative",
		"documented",
	}
)

// ExtractFacts splits clinical text into sentence-level facts with a
// negation flag and a heuristic confidence. Extraction is deterministic:
// the same text always yields the same facts in the same order.
func ExtractFacts(text string) []models.ClinicalFact {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var facts []models.ClinicalFact
	for _, raw := range sentenceSplit.Split(text, -1) {
		sentence := strings.TrimSpace(raw)
		if len(sentence) < 3 {
			continue
		}
		facts = append(facts, models.ClinicalFact{
			Text:       sentence,
			Negated:    isNegated(sentence),
			Confidence: factConfidence(sentence),
		})
	}
	return facts
}

func isNegated(sentence string) bool {
	lower := strings.ToLower(sentence)
	for _, cue := range negationCues {
		if strings.HasPrefix(lower, cue) || strings.Contains(lower, " "+cue) {
			return true
		}
	}
	return false
}

// factConfidence scores how much weight a single extracted sentence
// deserves as evidence. Base 60; quantified observations, moderate
// length, and clinical vocabulary each add; capped at 95 because text
// extraction alone never proves anything outright.
func factConfidence(sentence string) float64 {
	score := 60.0
	lower := strings.ToLower(sentence)

	if digitPattern.MatchString(sentence) {
		score += 15
	}
	if words := len(strings.Fields(sentence)); words >= 5 && words <= 30 {
		score += 10
	}
	for _, marker := range clinicalMarkers {
		if strings.Contains(lower, marker) {
			score += 10
			break
		}
	}
	if score > 95 {
		score = 95
	}
	return score
}
