package retrieve

import (
	"fmt"
	"sort"

	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/sources"
)

// severityRank orders log lines for evidence ranking. Higher is stronger.
var severityRank = map[string]int{
	"ERROR": 3,
	"WARN":  2,
	"INFO":  1,
	"DEBUG": 0,
}

// LineSource provides the indexed log lines.
type LineSource interface {
	Lines() []sources.LogLine
}

// LogRetriever matches entity identifiers and module keywords against the
// indexed log lines.
type LogRetriever struct {
	index LineSource
}

// NewLogRetriever constructs a retriever over the loaded log index.
func NewLogRetriever(index LineSource) *LogRetriever {
	return &LogRetriever{index: index}
}

// Retrieve returns up to maxItems log lines ranked by severity then by
// keyword hit count. Matching is case-insensitive substring search.
func (r *LogRetriever) Retrieve(parsed models.ParsedAlert, maxItems int) []models.EvidenceItem {
	if maxItems <= 0 {
		maxItems = DefaultLogItems
	}
	if r.index == nil {
		return nil
	}

	terms := logSearchTerms(parsed)
	if len(terms) == 0 {
		return nil
	}

	type scored struct {
		line sources.LogLine
		hits int
	}
	var matches []scored
	for _, line := range r.index.Lines() {
		hits := 0
		for _, term := range terms {
			if containsFold(line.Text, term) {
				hits++
			}
		}
		if hits > 0 {
			matches = append(matches, scored{line: line, hits: hits})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		si, sj := severityRank[matches[i].line.Severity], severityRank[matches[j].line.Severity]
		if si != sj {
			return si > sj
		}
		return matches[i].hits > matches[j].hits
	})

	if len(matches) > maxItems {
		matches = matches[:maxItems]
	}

	items := make([]models.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		weight := 0.5*float64(severityRank[m.line.Severity])/3.0 + 0.5*float64(m.hits)/float64(len(terms))
		items = append(items, models.EvidenceItem{
			Source:  models.SourceLog,
			Weight:  clamp01(weight),
			Snippet: fmt.Sprintf("[%s:%d] %s", m.line.File, m.line.Line, m.line.Text),
		})
	}
	return items
}

func logSearchTerms(parsed models.ParsedAlert) []string {
	var terms []string
	if parsed.EntityID != "" {
		terms = append(terms, parsed.EntityID)
	}
	if parsed.ErrorCode != "" {
		terms = append(terms, parsed.ErrorCode)
	}
	if parsed.Module != "" && parsed.Module != "Unknown" {
		terms = append(terms, parsed.Module)
	}
	return terms
}
