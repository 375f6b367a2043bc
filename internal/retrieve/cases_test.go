package retrieve

import (
	"strings"
	"testing"

	"github.com/opstriage/triage-engine/internal/models"
)

type fakeCases struct {
	cases []models.CaseRecord
}

func (f *fakeCases) Cases() []models.CaseRecord { return f.cases }

func testCaseRecords() []models.CaseRecord {
	return []models.CaseRecord{
		{Module: "Vessel", Channel: "SMS", Symptom: "duplicate berth application", Resolution: "requeue batch", Outcome: "Resolved"},
		{Module: "Container", Channel: "Email", Symptom: "duplicate container shown twice", Resolution: "purge stale advice", Outcome: "Resolved"},
		{Module: "Container", Channel: "Email", Symptom: "container weight mismatch", Resolution: "fix VGM", Outcome: "Resolved"},
		{Module: "EDI/API", Channel: "Email", Symptom: "duplicate message E212", Resolution: "replay message", Outcome: "Resolved"},
		{Module: "Container", Channel: "Phone", Symptom: "gate-in rejected", Resolution: "reissue pass", Outcome: "Escalated"},
	}
}

func TestCaseRetrieverModuleMatchOutranksKeywordOnly(t *testing.T) {
	retriever := NewCaseRetriever(&fakeCases{cases: testCaseRecords()})
	parsed := models.ParsedAlert{Module: "Container", Symptoms: []string{"duplicate"}}

	items := retriever.Retrieve(parsed, 0)

	if len(items) > DefaultCaseItems {
		t.Fatalf("expected at most %d items, got %d", DefaultCaseItems, len(items))
	}
	if len(items) < 2 {
		t.Fatalf("expected at least 2 matches, got %d", len(items))
	}

	// The Container case that also hits "duplicate" must be first; every
	// module match must come before keyword-only matches (Vessel, EDI/API).
	if !strings.Contains(items[0].Snippet, "duplicate container shown twice") {
		t.Errorf("expected best module+keyword case first, got %q", items[0].Snippet)
	}
	seenKeywordOnly := false
	for _, item := range items {
		moduleMatch := strings.Contains(item.Snippet, "Module: Container")
		if !moduleMatch {
			seenKeywordOnly = true
		} else if seenKeywordOnly {
			t.Errorf("module match ranked after keyword-only match: %q", item.Snippet)
		}
	}
}

func TestCaseRetrieverAlwaysAtMostThreeByDefault(t *testing.T) {
	records := testCaseRecords()
	for i := 0; i < 10; i++ {
		records = append(records, models.CaseRecord{Module: "Container", Symptom: "duplicate record"})
	}
	items := NewCaseRetriever(&fakeCases{cases: records}).Retrieve(models.ParsedAlert{Module: "Container"}, 0)
	if len(items) != 3 {
		t.Fatalf("expected exactly 3 items, got %d", len(items))
	}
}

func TestCaseRetrieverNoSignalsNoMatches(t *testing.T) {
	items := NewCaseRetriever(&fakeCases{cases: testCaseRecords()}).Retrieve(models.ParsedAlert{}, 0)
	if items != nil {
		t.Fatalf("expected no matches without module or keywords, got %d", len(items))
	}
}
