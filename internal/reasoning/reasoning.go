// Package reasoning drives the external reasoning service: prompt
// construction, per-call deadlines, and parsing of the structured replies.
package reasoning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opstriage/triage-engine/internal/models"
)

// PromptKind selects the prompt contract for one reasoning call.
type PromptKind string

const (
	PromptParseAlert PromptKind = "parse_alert"
	PromptRootCause  PromptKind = "root_cause"
	PromptResolution PromptKind = "resolution"
	PromptReport     PromptKind = "report"
)

// Invoker is the transport to the reasoning service: one prompt in, one
// structured-text reply out. Implementations map transport failures onto
// models.ErrRateLimited, models.ErrTimeout and models.ErrMalformedResponse.
type Invoker interface {
	Invoke(ctx context.Context, kind PromptKind, payload string) (string, error)
}

// Client wraps an Invoker with typed calls for each pipeline stage. Every
// call carries a fixed deadline.
type Client struct {
	invoker Invoker
	timeout time.Duration
}

// NewClient constructs a reasoning client.
func NewClient(invoker Invoker, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{invoker: invoker, timeout: timeout}
}

func (c *Client) invoke(ctx context.Context, kind PromptKind, payload string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.invoker.Invoke(callCtx, kind, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", models.ErrTimeout
		}
		return "", err
	}
	return reply, nil
}

// ParseAlert extracts structured fields from raw alert text.
func (c *Client) ParseAlert(ctx context.Context, alertText string) (models.ParsedAlert, error) {
	payload := fmt.Sprintf(`Parse this support alert and extract key information.

ALERT:
%s

Return JSON with this exact structure:
{
  "ticket_id": "ticket id from the alert, e.g. ALR-861600",
  "channel": "Email/SMS/Phone",
  "module": "Container/Vessel/EDI-API",
  "priority": "Low/Medium/High/Critical",
  "entity_id": "the specific container number, vessel name, or message reference",
  "symptoms": ["brief symptom keywords"],
  "error_code": "error code if mentioned, otherwise empty",
  "reporter": "who reported this"
}

Return ONLY valid JSON, no additional text.`, alertText)

	reply, err := c.invoke(ctx, PromptParseAlert, payload)
	if err != nil {
		return models.ParsedAlert{}, err
	}

	var parsed models.ParsedAlert
	if err := json.Unmarshal(jsonBody(reply), &parsed); err != nil {
		return models.ParsedAlert{}, fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	return parsed, nil
}

// AnalyzeRootCause determines the root cause from the gathered evidence.
func (c *Client) AnalyzeRootCause(ctx context.Context, alertText string, parsed models.ParsedAlert, caseEvidence, logEvidence, kbEvidence []models.EvidenceItem) (models.RootCause, error) {
	payload := fmt.Sprintf(`Determine the root cause of this support ticket.

ORIGINAL ALERT:
%s

PARSED INFO:
%s

SIMILAR PAST CASES (proven resolutions, weigh these heavily):
%s

LOG EVIDENCE:
%s

KNOWLEDGE BASE:
%s

Return JSON: {"cause": "...", "explanation": "...", "evidence_summary": ["..."]}
Return ONLY valid JSON.`,
		alertText, mustJSON(parsed),
		formatEvidence(caseEvidence), formatEvidence(logEvidence), formatEvidence(kbEvidence))

	reply, err := c.invoke(ctx, PromptRootCause, payload)
	if err != nil {
		return models.RootCause{}, err
	}

	var rootCause models.RootCause
	if err := json.Unmarshal(jsonBody(reply), &rootCause); err != nil {
		return models.RootCause{}, fmt.Errorf("%w: %v", models.ErrAnalysisFailure, err)
	}
	if rootCause.Cause == "" {
		return models.RootCause{}, fmt.Errorf("%w: empty cause", models.ErrAnalysisFailure)
	}
	return rootCause, nil
}

// RecommendResolution proposes resolution steps, seeded by past-case
// solutions and knowledge-base procedures.
func (c *Client) RecommendResolution(ctx context.Context, parsed models.ParsedAlert, rootCause models.RootCause, caseEvidence, kbEvidence []models.EvidenceItem) (models.Resolution, error) {
	payload := fmt.Sprintf(`Recommend resolution steps for this ticket.

PARSED INFO:
%s

ROOT CAUSE:
%s

PAST SOLUTIONS:
%s

KNOWLEDGE BASE PROCEDURES:
%s

Return JSON: {"steps": ["..."], "estimated_time": "...", "escalate": false, "escalate_to": ""}
Return ONLY valid JSON.`,
		mustJSON(parsed), mustJSON(rootCause),
		formatEvidence(caseEvidence), formatEvidence(kbEvidence))

	reply, err := c.invoke(ctx, PromptResolution, payload)
	if err != nil {
		return models.Resolution{}, err
	}

	var resolution models.Resolution
	if err := json.Unmarshal(jsonBody(reply), &resolution); err != nil {
		return models.Resolution{}, fmt.Errorf("%w: %v", models.ErrAnalysisFailure, err)
	}
	if len(resolution.Steps) == 0 {
		return models.Resolution{}, fmt.Errorf("%w: no resolution steps", models.ErrAnalysisFailure)
	}
	return resolution, nil
}

// RenderReport produces the final human-readable diagnostic report.
func (c *Client) RenderReport(ctx context.Context, alertText string, parsed models.ParsedAlert, rootCause models.RootCause, resolution models.Resolution, confidence models.ConfidenceAssessment) (string, error) {
	payload := fmt.Sprintf(`Write a concise diagnostic report in markdown for an L2 operations engineer.

ORIGINAL ALERT:
%s

PARSED INFO:
%s

ROOT CAUSE:
%s

RESOLUTION:
%s

CONFIDENCE: %d/100 (%s)

Sections: Summary, Root Cause, Resolution Steps, Confidence. Plain markdown, no JSON.`,
		alertText, mustJSON(parsed), mustJSON(rootCause), mustJSON(resolution),
		confidence.Overall, confidence.Band)

	reply, err := c.invoke(ctx, PromptReport, payload)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%w: empty report", models.ErrAnalysisFailure)
	}
	return reply, nil
}

// jsonBody strips markdown code fences and any prose around the outermost
// JSON object. Models routinely wrap JSON despite instructions.
func jsonBody(reply string) []byte {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return []byte(reply)
	}
	return []byte(reply[start : end+1])
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func formatEvidence(items []models.EvidenceItem) string {
	if len(items) == 0 {
		return "none found"
	}
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. (relevance %.0f%%) %s\n", i+1, item.Weight*100, item.Snippet)
	}
	return b.String()
}
