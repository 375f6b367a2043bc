// Package retrieve ranks evidence from the read-only indexes for a parsed
// alert. Retrievers never mutate the underlying index and are safe to call
// concurrently from multiple diagnostic jobs.
package retrieve

import "strings"

const (
	// DefaultLogItems bounds log evidence per job.
	DefaultLogItems = 10
	// DefaultKBItems bounds knowledge-base evidence per job.
	DefaultKBItems = 3
	// DefaultCaseItems bounds historical-case evidence per job.
	DefaultCaseItems = 3
)

// kbModuleAliases maps parsed module names onto knowledge-base prefixes.
var kbModuleAliases = map[string]string{
	"container": "CNTR",
	"vessel":    "VSL",
	"edi":       "EDI",
	"api":       "API",
	"edi-api":   "EDI/API",
	"edi/api":   "EDI/API",
}

func kbModule(module string) string {
	if mapped, ok := kbModuleAliases[strings.ToLower(module)]; ok {
		return mapped
	}
	return strings.ToUpper(module)
}

// containsFold reports whether haystack contains needle, ignoring case.
func containsFold(haystack, needle string) bool {
	return needle != "" && strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
