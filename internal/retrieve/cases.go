package retrieve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opstriage/triage-engine/internal/models"
)

// Module agreement outweighs keyword overlap: a module match alone scores
// above any keyword-only match, so proven same-module history ranks first.
const (
	caseModuleWeight  = 0.6
	caseKeywordWeight = 0.4
)

// CaseSource provides the loaded historical case records.
type CaseSource interface {
	Cases() []models.CaseRecord
}

// CaseRetriever scores historical cases by symptom-keyword overlap and
// exact module match. Its results run first in the pipeline and seed the
// reasoning service's resolution suggestions.
type CaseRetriever struct {
	index CaseSource
}

// NewCaseRetriever constructs a retriever over the loaded case archive.
func NewCaseRetriever(index CaseSource) *CaseRetriever {
	return &CaseRetriever{index: index}
}

// Retrieve returns up to maxItems similar past cases, exact-module matches
// ranked ahead of keyword-only matches.
func (r *CaseRetriever) Retrieve(parsed models.ParsedAlert, maxItems int) []models.EvidenceItem {
	if maxItems <= 0 {
		maxItems = DefaultCaseItems
	}
	if r.index == nil {
		return nil
	}

	keywords := caseKeywords(parsed)

	type scored struct {
		record models.CaseRecord
		score  float64
	}
	var matches []scored
	for _, record := range r.index.Cases() {
		score := 0.0
		if parsed.Module != "" && strings.EqualFold(record.Module, parsed.Module) {
			score += caseModuleWeight
		}
		if len(keywords) > 0 {
			text := record.Symptom + " " + record.Resolution
			hits := 0
			for _, kw := range keywords {
				if containsFold(text, kw) {
					hits++
				}
			}
			score += caseKeywordWeight * float64(hits) / float64(len(keywords))
		}
		if score > 0 {
			matches = append(matches, scored{record: record, score: clamp01(score)})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].score > matches[j].score
	})

	if len(matches) > maxItems {
		matches = matches[:maxItems]
	}

	items := make([]models.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, models.EvidenceItem{
			Source: models.SourceCase,
			Weight: m.score,
			Snippet: fmt.Sprintf("Module: %s | Symptom: %s | Resolution: %s | Outcome: %s",
				m.record.Module,
				truncate(m.record.Symptom, 200),
				truncate(m.record.Resolution, 200),
				m.record.Outcome),
		})
	}
	return items
}

func caseKeywords(parsed models.ParsedAlert) []string {
	var keywords []string
	for _, s := range parsed.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			keywords = append(keywords, s)
		}
	}
	if parsed.ErrorCode != "" {
		keywords = append(keywords, parsed.ErrorCode)
	}
	return keywords
}
