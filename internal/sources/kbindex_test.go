package sources

import (
	"os"
	"path/filepath"
	"testing"
)

const testKB = `Port Operations Knowledge Base

CNTR: Duplicate container information on portal
Symptom: customer sees two identical container rows.
Resolution: purge the stale advice record and trigger a resync.
Verification: confirm a single row remains on the portal.

VAS: Berth application stuck in submitted state
Resolution: requeue the application batch from the admin console.

EDI/API: Inbound message rejected with code E212
Check the partner mapping table before replaying the message.
`

func TestKBIndexParsesArticles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.txt")
	if err := os.WriteFile(path, []byte(testKB), 0o644); err != nil {
		t.Fatalf("write kb: %v", err)
	}

	idx, err := NewKBIndex(path, nil)
	if err != nil {
		t.Fatalf("load kb: %v", err)
	}

	articles := idx.Articles()
	if len(articles) != 3 {
		t.Fatalf("expected 3 articles, got %d", len(articles))
	}

	if articles[0].Module != "CNTR" {
		t.Errorf("expected module CNTR, got %s", articles[0].Module)
	}
	if articles[0].Order != 0 || articles[2].Order != 2 {
		t.Errorf("corpus order not preserved: %d, %d", articles[0].Order, articles[2].Order)
	}

	// Legacy VAS prefix folds onto VSL.
	if articles[1].Module != "VSL" {
		t.Errorf("expected VAS alias to map to VSL, got %s", articles[1].Module)
	}

	if articles[2].Module != "EDI/API" {
		t.Errorf("expected module EDI/API, got %s", articles[2].Module)
	}
	if articles[2].Content == "" {
		t.Error("expected article body to be captured")
	}
}

func TestKBIndexMissingFile(t *testing.T) {
	if _, err := NewKBIndex(filepath.Join(t.TempDir(), "absent.txt"), nil); err == nil {
		t.Fatal("expected error for missing knowledge base")
	}
}
