package sources

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Article is one knowledge-base entry keyed by its heading line.
type Article struct {
	Title   string
	Module  string
	Content string
	Order   int
}

// KBIndex splits the flat knowledge-base corpus into discrete articles.
// Built once at startup, read-only afterwards.
type KBIndex struct {
	articles []Article
}

// Heading lines look like "CNTR: Duplicate container records" where the
// prefix is the module keyword.
var headingPattern = regexp.MustCompile(`^([A-Z][A-Z/]{1,6}):\s*(.+)$`)

// moduleAliases folds legacy prefixes onto their canonical module keyword.
var moduleAliases = map[string]string{
	"VAS": "VSL",
}

// EmptyKBIndex returns an index with no articles, for running without a
// knowledge base.
func EmptyKBIndex() *KBIndex {
	return &KBIndex{}
}

// NewKBIndex loads and parses the knowledge-base file.
func NewKBIndex(path string, logger *slog.Logger) (*KBIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base %s: %w", path, err)
	}

	idx := &KBIndex{articles: parseArticles(string(data))}
	logger.Info("knowledge base loaded", slog.Int("articles", len(idx.articles)))
	return idx, nil
}

func parseArticles(content string) []Article {
	var articles []Article
	var current *Article
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.TrimSpace(body.String())
		articles = append(articles, *current)
		body.Reset()
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			flush()
			module := m[1]
			if alias, ok := moduleAliases[module]; ok {
				module = alias
			}
			current = &Article{
				Title:  strings.TrimSpace(line),
				Module: module,
				Order:  len(articles),
			}
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()

	return articles
}

// Articles exposes the parsed articles. Callers must not modify the slice.
func (idx *KBIndex) Articles() []Article {
	return idx.articles
}
