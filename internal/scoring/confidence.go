// Package scoring turns retrieved evidence into an explainable, reproducible
// confidence assessment. Scoring is deterministic: identical evidence and
// parsed fields always produce the identical assessment.
package scoring

import (
	"math"
	"strings"

	"github.com/opstriage/triage-engine/internal/models"
)

// Fixed weight vector combining the five sub-dimensions. Sums to 1.0; the
// weighted sub-scores sum to the overall score within rounding.
const (
	weightLogs        = 0.15
	weightCases       = 0.25
	weightKB          = 0.25
	weightIdentifiers = 0.20
	weightConsistency = 0.15
)

// Interpretation band thresholds on the overall 0-100 score.
const (
	highThreshold     = 70
	moderateThreshold = 40
)

// minIdentifiers is the completeness floor below which no assessment is
// produced: fewer populated identifiers means the input was unparsable and
// any score would be misleading.
const minIdentifiers = 2

// Scorer computes ConfidenceAssessments. Stateless and safe for concurrent use.
type Scorer struct{}

// NewScorer constructs a confidence scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Assess combines the three evidence sequences and identifier completeness
// into a ConfidenceAssessment. Returns ErrInvalidAlert when fewer than two
// of {ticket id, module, channel, entity id} are populated.
func (s *Scorer) Assess(parsed models.ParsedAlert, caseEvidence, logEvidence, kbEvidence []models.EvidenceItem) (models.ConfidenceAssessment, error) {
	if parsed.IdentifierCount() < minIdentifiers {
		return models.ConfidenceAssessment{}, models.ErrInvalidAlert
	}

	assessment := models.ConfidenceAssessment{
		LogEvidence: models.SubScore{Score: scoreLogEvidence(logEvidence), Weight: weightLogs},
		CaseMatch:   models.SubScore{Score: scoreCaseMatch(caseEvidence), Weight: weightCases},
		KBCoverage:  models.SubScore{Score: scoreKBCoverage(kbEvidence), Weight: weightKB},
		Identifiers: models.SubScore{Score: scoreIdentifiers(parsed), Weight: weightIdentifiers},
		Consistency: models.SubScore{Score: scoreConsistency(parsed, caseEvidence, logEvidence, kbEvidence), Weight: weightConsistency},
	}

	overall := float64(assessment.LogEvidence.Score)*weightLogs +
		float64(assessment.CaseMatch.Score)*weightCases +
		float64(assessment.KBCoverage.Score)*weightKB +
		float64(assessment.Identifiers.Score)*weightIdentifiers +
		float64(assessment.Consistency.Score)*weightConsistency
	assessment.Overall = int(math.Round(overall))

	assessment.Band, assessment.Recommendation = interpret(assessment.Overall)
	return assessment, nil
}

func interpret(overall int) (models.ConfidenceBand, string) {
	switch {
	case overall >= highThreshold:
		return models.BandHigh, "auto-resolvable, minimal review"
	case overall >= moderateThreshold:
		return models.BandModerate, "review recommended"
	default:
		return models.BandLow, "manual investigation required, escalate"
	}
}

// scoreLogEvidence rises with the count of matched lines and the presence
// of high-severity hits, capped at 100.
func scoreLogEvidence(items []models.EvidenceItem) int {
	if len(items) == 0 {
		return 0
	}
	score := len(items) * 12
	if score > 60 {
		score = 60
	}
	for _, item := range items {
		if strings.Contains(item.Snippet, " ERROR ") {
			score += 40
			break
		}
	}
	if score > 100 {
		score = 100
	}
	// Lines matched but none at ERROR level still earn a severity floor
	// when a WARN is present.
	if score <= 60 {
		for _, item := range items {
			if strings.Contains(item.Snippet, " WARN ") {
				score += 20
				break
			}
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreCaseMatch uses the best case's relevance weight; a module-only match
// (weight present but below the moderate line) keeps a floor of 40 because
// same-module history is still actionable precedent.
func scoreCaseMatch(items []models.EvidenceItem) int {
	if len(items) == 0 {
		return 0
	}
	best := int(math.Round(items[0].Weight * 100))
	if best < 40 {
		best = 40
	}
	if best > 100 {
		best = 100
	}
	return best
}

// scoreKBCoverage uses the best article's overlap weight with a bonus when
// the article spells out a resolution or verification procedure.
func scoreKBCoverage(items []models.EvidenceItem) int {
	if len(items) == 0 {
		return 0
	}
	score := int(math.Round(items[0].Weight * 100))
	for _, item := range items {
		if strings.Contains(item.Snippet, "Resolution") || strings.Contains(item.Snippet, "Verification") {
			score += 15
			break
		}
	}
	if score > 100 {
		score = 100
	}
	return score
}

// scoreIdentifiers measures completeness over the four core identifiers.
func scoreIdentifiers(parsed models.ParsedAlert) int {
	return parsed.IdentifierCount() * 25
}

// scoreConsistency rewards agreement across sources: how many corpora
// produced evidence at all, plus module agreement between the best case
// and the parsed module.
func scoreConsistency(parsed models.ParsedAlert, caseEvidence, logEvidence, kbEvidence []models.EvidenceItem) int {
	populated := 0
	for _, items := range [][]models.EvidenceItem{caseEvidence, logEvidence, kbEvidence} {
		if len(items) > 0 {
			populated++
		}
	}

	score := 0
	switch populated {
	case 1:
		score = 40
	case 2:
		score = 70
	case 3:
		score = 90
	}

	if len(caseEvidence) > 0 && parsed.Module != "" &&
		strings.Contains(strings.ToLower(caseEvidence[0].Snippet), "module: "+strings.ToLower(parsed.Module)) {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
