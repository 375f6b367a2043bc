package retrieve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/sources"
)

// ArticleSource provides the parsed knowledge-base articles.
type ArticleSource interface {
	Articles() []sources.Article
}

// KBRetriever scores knowledge-base articles by keyword overlap with the
// parsed module and symptom keywords.
type KBRetriever struct {
	index ArticleSource
}

// NewKBRetriever constructs a retriever over the loaded knowledge base.
func NewKBRetriever(index ArticleSource) *KBRetriever {
	return &KBRetriever{index: index}
}

// Retrieve returns up to maxItems articles ranked by keyword overlap, ties
// broken by corpus order.
func (r *KBRetriever) Retrieve(parsed models.ParsedAlert, maxItems int) []models.EvidenceItem {
	if maxItems <= 0 {
		maxItems = DefaultKBItems
	}
	if r.index == nil {
		return nil
	}

	keywords := kbKeywords(parsed)
	if len(keywords) == 0 {
		return nil
	}
	module := kbModule(parsed.Module)

	type scored struct {
		article sources.Article
		score   float64
	}
	var matches []scored
	for _, article := range r.index.Articles() {
		text := article.Title + "\n" + article.Content
		hits := 0
		for _, kw := range keywords {
			if containsFold(text, kw) {
				hits++
			}
		}
		score := float64(hits) / float64(len(keywords))
		if module != "" && article.Module == module {
			score += 0.2
		}
		if score > 0 {
			matches = append(matches, scored{article: article, score: clamp01(score)})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].article.Order < matches[j].article.Order
	})

	if len(matches) > maxItems {
		matches = matches[:maxItems]
	}

	items := make([]models.EvidenceItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, models.EvidenceItem{
			Source:  models.SourceKB,
			Weight:  m.score,
			Snippet: fmt.Sprintf("%s\n%s", m.article.Title, truncate(m.article.Content, 800)),
		})
	}
	return items
}

func kbKeywords(parsed models.ParsedAlert) []string {
	var keywords []string
	for _, s := range parsed.Symptoms {
		if s = strings.TrimSpace(s); s != "" {
			keywords = append(keywords, s)
		}
	}
	if parsed.ErrorCode != "" {
		keywords = append(keywords, parsed.ErrorCode)
	}
	if parsed.Module != "" && parsed.Module != "Unknown" {
		keywords = append(keywords, parsed.Module)
	}
	return keywords
}
