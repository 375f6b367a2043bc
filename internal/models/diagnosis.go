package models

import "time"

// Alert is a raw operational alert as received, before any parsing.
type Alert struct {
	Text       string
	Channel    Channel
	ReceivedAt time.Time
}

// ParsedAlert holds the structured fields the reasoning service extracts
// from raw alert text. Owned by exactly one diagnostic job.
type ParsedAlert struct {
	TicketID  string   `json:"ticket_id"`
	Module    string   `json:"module"`
	EntityID  string   `json:"entity_id"`
	Channel   Channel  `json:"channel"`
	Priority  string   `json:"priority"`
	Symptoms  []string `json:"symptoms"`
	ErrorCode string   `json:"error_code"`
	Reporter  string   `json:"reporter"`
}

// IdentifierCount reports how many of the four core identifiers are populated.
// Fewer than two is the signal of unparsable input (see scoring).
func (p ParsedAlert) IdentifierCount() int {
	count := 0
	if p.TicketID != "" {
		count++
	}
	if p.Module != "" && p.Module != "Unknown" {
		count++
	}
	if p.Channel != "" {
		count++
	}
	if p.EntityID != "" {
		count++
	}
	return count
}

// Channel enumerates alert intake channels.
type Channel string

const (
	ChannelEmail Channel = "Email"
	ChannelSMS   Channel = "SMS"
	ChannelPhone Channel = "Phone"
)

// EvidenceSource enumerates the corpora evidence can be drawn from.
type EvidenceSource string

const (
	SourceLog  EvidenceSource = "log"
	SourceKB   EvidenceSource = "kb"
	SourceCase EvidenceSource = "case"
)

// EvidenceItem is a single retrieved fact supporting a diagnosis.
// Weight is a relevance score in [0,1]; items arrive in rank order.
type EvidenceItem struct {
	Source  EvidenceSource `json:"source"`
	Weight  float64        `json:"weight"`
	Snippet string         `json:"snippet"`
}

// CaseRecord is one historical resolved case from the packed archive.
type CaseRecord struct {
	Module     string
	Channel    string
	Symptom    string
	Resolution string
	Outcome    string
}

// RootCause is the reasoning service's root-cause analysis.
type RootCause struct {
	Cause           string   `json:"cause"`
	Explanation     string   `json:"explanation"`
	EvidenceSummary []string `json:"evidence_summary"`
}

// Resolution is the reasoning service's recommended fix.
type Resolution struct {
	Steps         []string `json:"steps"`
	EstimatedTime string   `json:"estimated_time"`
	Escalate      bool     `json:"escalate"`
	EscalateTo    string   `json:"escalate_to"`
}

// Diagnosis is the assembled output bundle for a completed job.
type Diagnosis struct {
	Parsed       ParsedAlert          `json:"parsed"`
	CaseEvidence []EvidenceItem       `json:"case_evidence"`
	LogEvidence  []EvidenceItem       `json:"log_evidence"`
	KBEvidence   []EvidenceItem       `json:"kb_evidence"`
	Confidence   ConfidenceAssessment `json:"confidence"`
	RootCause    RootCause            `json:"root_cause"`
	Resolution   Resolution           `json:"resolution"`
	Report       string               `json:"report"`
	CreatedAt    time.Time            `json:"created_at"`
}
