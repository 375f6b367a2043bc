package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/opstriage/triage-engine/internal/models"
)

func fullParsed() models.ParsedAlert {
	return models.ParsedAlert{
		TicketID: "ALR-861600",
		Module:   "Container",
		EntityID: "CMAU0000020",
		Channel:  models.ChannelEmail,
		Symptoms: []string{"duplicate"},
	}
}

func sampleEvidence() (cases, logs, kb []models.EvidenceItem) {
	cases = []models.EvidenceItem{
		{Source: models.SourceCase, Weight: 0.9, Snippet: "Module: Container | Symptom: duplicate container | Resolution: purge advice | Outcome: Resolved"},
	}
	logs = []models.EvidenceItem{
		{Source: models.SourceLog, Weight: 0.8, Snippet: "[container_service.log:2] 2025-06-14 09:31:07 ERROR duplicate advice CMAU0000020"},
		{Source: models.SourceLog, Weight: 0.5, Snippet: "[container_service.log:3] 2025-06-14 09:31:09 WARN retry scheduled"},
	}
	kb = []models.EvidenceItem{
		{Source: models.SourceKB, Weight: 0.7, Snippet: "CNTR: Duplicate container information\nResolution: purge the stale advice"},
	}
	return cases, logs, kb
}

func TestAssessDeterministic(t *testing.T) {
	scorer := NewScorer()
	cases, logs, kb := sampleEvidence()

	first, err := scorer.Assess(fullParsed(), cases, logs, kb)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	second, err := scorer.Assess(fullParsed(), cases, logs, kb)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("assessment not reproducible (-first +second):\n%s", diff)
	}
}

func TestAssessWeightedSumInvariant(t *testing.T) {
	scorer := NewScorer()
	cases, logs, kb := sampleEvidence()

	assessment, err := scorer.Assess(fullParsed(), cases, logs, kb)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}

	weighted := float64(assessment.LogEvidence.Score)*assessment.LogEvidence.Weight +
		float64(assessment.CaseMatch.Score)*assessment.CaseMatch.Weight +
		float64(assessment.KBCoverage.Score)*assessment.KBCoverage.Weight +
		float64(assessment.Identifiers.Score)*assessment.Identifiers.Weight +
		float64(assessment.Consistency.Score)*assessment.Consistency.Weight
	if math.Abs(weighted-float64(assessment.Overall)) > 0.5 {
		t.Fatalf("weighted sub-scores %f do not sum to overall %d", weighted, assessment.Overall)
	}

	totalWeight := assessment.LogEvidence.Weight + assessment.CaseMatch.Weight +
		assessment.KBCoverage.Weight + assessment.Identifiers.Weight + assessment.Consistency.Weight
	if math.Abs(totalWeight-1.0) > 1e-9 {
		t.Fatalf("weights sum to %f, want 1.0", totalWeight)
	}
}

func TestAssessInsufficientIdentifiers(t *testing.T) {
	scorer := NewScorer()

	tests := []struct {
		name   string
		parsed models.ParsedAlert
		ok     bool
	}{
		{"none", models.ParsedAlert{}, false},
		{"one", models.ParsedAlert{Module: "Container"}, false},
		{"unknown module does not count", models.ParsedAlert{Module: "Unknown", TicketID: "ALR-1"}, false},
		{"two", models.ParsedAlert{Module: "Container", TicketID: "ALR-1"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := scorer.Assess(tc.parsed, nil, nil, nil)
			if tc.ok && err != nil {
				t.Fatalf("expected assessment, got %v", err)
			}
			if !tc.ok && !errors.Is(err, models.ErrInvalidAlert) {
				t.Fatalf("expected ErrInvalidAlert, got %v", err)
			}
		})
	}
}

func TestAssessEvidenceRaisesConfidence(t *testing.T) {
	scorer := NewScorer()
	cases, logs, kb := sampleEvidence()

	withEvidence, err := scorer.Assess(fullParsed(), cases, logs, kb)
	if err != nil {
		t.Fatalf("assess with evidence: %v", err)
	}
	withoutEvidence, err := scorer.Assess(fullParsed(), nil, nil, nil)
	if err != nil {
		t.Fatalf("assess without evidence: %v", err)
	}

	if withEvidence.Overall < withoutEvidence.Overall {
		t.Fatalf("evidence lowered confidence: %d < %d", withEvidence.Overall, withoutEvidence.Overall)
	}
}

func TestInterpretationBands(t *testing.T) {
	tests := []struct {
		overall int
		band    models.ConfidenceBand
	}{
		{85, models.BandHigh},
		{70, models.BandHigh},
		{69, models.BandModerate},
		{40, models.BandModerate},
		{39, models.BandLow},
		{0, models.BandLow},
	}
	for _, tc := range tests {
		band, rec := interpret(tc.overall)
		if band != tc.band {
			t.Errorf("interpret(%d) = %s, want %s", tc.overall, band, tc.band)
		}
		if rec == "" {
			t.Errorf("interpret(%d) returned empty recommendation", tc.overall)
		}
	}
}
