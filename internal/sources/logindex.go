package sources

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// logTimeLayout matches the prefix emitted by the application services,
// e.g. "2025-06-14 09:31:07 ERROR container duplicate detected".
const logTimeLayout = "2006-01-02 15:04:05"

// LogLine is a single tagged line from one of the application logs.
type LogLine struct {
	File      string
	Line      int
	Severity  string
	Timestamp time.Time
	Text      string
}

// LogIndex holds every line of the configured log files, loaded once at
// startup and never mutated afterwards. Reads are lock-free.
type LogIndex struct {
	lines []LogLine
	files int
}

// EmptyLogIndex returns an index with no lines, for running without a log
// corpus.
func EmptyLogIndex() *LogIndex {
	return &LogIndex{}
}

// NewLogIndex loads all *.log files under dir. A missing or unreadable
// individual file is logged and skipped; an unreadable directory is an error.
func NewLogIndex(dir string, logger *slog.Logger) (*LogIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read log dir %s: %w", dir, err)
	}

	idx := &LogIndex{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		if err := idx.loadFile(filepath.Join(dir, entry.Name()), entry.Name()); err != nil {
			logger.Warn("skipping log file", slog.String("file", entry.Name()), slog.Any("error", err))
			continue
		}
		idx.files++
	}

	logger.Info("log index loaded",
		slog.Int("files", idx.files),
		slog.Int("lines", len(idx.lines)))
	return idx, nil
}

func (idx *LogIndex) loadFile(path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		text := strings.TrimRight(scanner.Text(), " \t")
		if text == "" {
			continue
		}
		idx.lines = append(idx.lines, LogLine{
			File:      name,
			Line:      lineNum,
			Severity:  detectSeverity(text),
			Timestamp: detectTimestamp(text),
			Text:      text,
		})
	}
	return scanner.Err()
}

// Lines exposes the loaded lines. Callers must not modify the slice.
func (idx *LogIndex) Lines() []LogLine {
	return idx.lines
}

// FileCount returns the number of log files successfully loaded.
func (idx *LogIndex) FileCount() int {
	return idx.files
}

func detectSeverity(line string) string {
	for _, sev := range []string{"ERROR", "WARN", "INFO", "DEBUG"} {
		if strings.Contains(line, " "+sev+" ") || strings.HasPrefix(line, sev+" ") {
			return sev
		}
	}
	return "INFO"
}

func detectTimestamp(line string) time.Time {
	if len(line) < len(logTimeLayout) {
		return time.Time{}
	}
	t, err := time.Parse(logTimeLayout, line[:len(logTimeLayout)])
	if err != nil {
		return time.Time{}
	}
	return t
}
