package models

// ConfidenceBand classifies an overall confidence score.
type ConfidenceBand string

const (
	BandLow      ConfidenceBand = "LOW"
	BandModerate ConfidenceBand = "MODERATE"
	BandHigh     ConfidenceBand = "HIGH"
)

// SubScore is one weighted dimension of a confidence assessment.
type SubScore struct {
	Score  int     `json:"score"`
	Weight float64 `json:"weight"`
}

// ConfidenceAssessment breaks an overall 0-100 score into five weighted
// dimensions. The weighted sub-scores sum to Overall within rounding.
// Recomputed per job, never cached.
type ConfidenceAssessment struct {
	Overall        int            `json:"overall"`
	LogEvidence    SubScore       `json:"log_evidence"`
	CaseMatch      SubScore       `json:"case_match"`
	KBCoverage     SubScore       `json:"kb_coverage"`
	Identifiers    SubScore       `json:"identifiers"`
	Consistency    SubScore       `json:"consistency"`
	Band           ConfidenceBand `json:"band"`
	Recommendation string         `json:"recommendation"`
}
