package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLogIndexLoad(t *testing.T) {
	dir := t.TempDir()
	content := "2025-06-14 09:31:07 ERROR container CMAU0000020 duplicate advice detected\n" +
		"2025-06-14 09:31:09 WARN  retry scheduled for CMAU0000020\n" +
		"not a timestamped line but still indexed\n" +
		"\n"
	if err := os.WriteFile(filepath.Join(dir, "container_service.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored\n"), 0o644); err != nil {
		t.Fatalf("write txt: %v", err)
	}

	idx, err := NewLogIndex(dir, nil)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}

	if idx.FileCount() != 1 {
		t.Fatalf("expected 1 log file, got %d", idx.FileCount())
	}
	lines := idx.Lines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 indexed lines (blank skipped), got %d", len(lines))
	}

	if lines[0].Severity != "ERROR" {
		t.Errorf("expected ERROR severity, got %s", lines[0].Severity)
	}
	want := time.Date(2025, 6, 14, 9, 31, 7, 0, time.UTC)
	if !lines[0].Timestamp.Equal(want) {
		t.Errorf("expected timestamp %v, got %v", want, lines[0].Timestamp)
	}
	if lines[1].Severity != "WARN" {
		t.Errorf("expected WARN severity, got %s", lines[1].Severity)
	}
	if lines[2].Severity != "INFO" || !lines[2].Timestamp.IsZero() {
		t.Errorf("untagged line should default to INFO with zero time, got %+v", lines[2])
	}
}

func TestLogIndexMissingDir(t *testing.T) {
	if _, err := NewLogIndex(filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Fatal("expected error for missing log dir")
	}
}
