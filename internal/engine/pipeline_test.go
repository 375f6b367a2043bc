package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/retrieve"
	"github.com/opstriage/triage-engine/internal/sources"
)

type fakeLines struct{ lines []sources.LogLine }

func (f *fakeLines) Lines() []sources.LogLine { return f.lines }

type fakeArticles struct{ articles []sources.Article }

func (f *fakeArticles) Articles() []sources.Article { return f.articles }

type fakeCases struct{ cases []models.CaseRecord }

func (f *fakeCases) Cases() []models.CaseRecord { return f.cases }

// fakeReasoner scripts each stage and counts calls, with optional one-shot
// errors to exercise the retry path.
type fakeReasoner struct {
	parsed models.ParsedAlert

	parseCalls      int
	rootCauseCalls  int
	resolutionCalls int
	reportCalls     int

	parseErrs     []error
	rootCauseErrs []error
}

func (f *fakeReasoner) nextErr(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}
	err := (*errs)[0]
	*errs = (*errs)[1:]
	return err
}

func (f *fakeReasoner) ParseAlert(ctx context.Context, alertText string) (models.ParsedAlert, error) {
	f.parseCalls++
	if err := f.nextErr(&f.parseErrs); err != nil {
		return models.ParsedAlert{}, err
	}
	return f.parsed, nil
}

func (f *fakeReasoner) AnalyzeRootCause(ctx context.Context, alertText string, parsed models.ParsedAlert, caseEv, logEv, kbEv []models.EvidenceItem) (models.RootCause, error) {
	f.rootCauseCalls++
	if err := f.nextErr(&f.rootCauseErrs); err != nil {
		return models.RootCause{}, err
	}
	return models.RootCause{
		Cause:           "duplicate container advice",
		Explanation:     "a stale advice blocks the new submission",
		EvidenceSummary: []string{"log shows duplicate advice error"},
	}, nil
}

func (f *fakeReasoner) RecommendResolution(ctx context.Context, parsed models.ParsedAlert, rootCause models.RootCause, caseEv, kbEv []models.EvidenceItem) (models.Resolution, error) {
	f.resolutionCalls++
	return models.Resolution{
		Steps:         []string{"purge the stale advice", "resubmit the container advice"},
		EstimatedTime: "15 minutes",
	}, nil
}

func (f *fakeReasoner) RenderReport(ctx context.Context, alertText string, parsed models.ParsedAlert, rootCause models.RootCause, resolution models.Resolution, confidence models.ConfidenceAssessment) (string, error) {
	f.reportCalls++
	return "## Summary\nduplicate container advice for " + parsed.EntityID, nil
}

type recordingFiler struct {
	filed int
	err   error
}

func (r *recordingFiler) File(ctx context.Context, alertText string, d models.Diagnosis) (string, error) {
	r.filed++
	if r.err != nil {
		return "", r.err
	}
	return "TCK-1", nil
}

func containerParsed() models.ParsedAlert {
	return models.ParsedAlert{
		TicketID: "ALR-861600",
		Module:   "Container",
		EntityID: "CMAU0000020",
		Channel:  models.ChannelEmail,
		Priority: "High",
		Symptoms: []string{"duplicate", "advice"},
	}
}

func testPipeline(reasoner Reasoner, opts ...Option) *Pipeline {
	cases := retrieve.NewCaseRetriever(&fakeCases{cases: []models.CaseRecord{
		{Module: "Container", Channel: "Email", Symptom: "duplicate advice", Resolution: "purge stale advice", Outcome: "Resolved"},
	}})
	logs := retrieve.NewLogRetriever(&fakeLines{lines: []sources.LogLine{
		{File: "container_service.log", Line: 2, Severity: "ERROR", Text: "2025-06-14 09:31:07 ERROR duplicate advice CMAU0000020"},
	}})
	kb := retrieve.NewKBRetriever(&fakeArticles{articles: []sources.Article{
		{Title: "CNTR: Duplicate container information", Module: "CNTR", Content: "Resolution: purge the stale advice", Order: 0},
	}})
	return NewPipeline(nil, reasoner, cases, logs, kb, opts...)
}

func TestDiagnoseFullRun(t *testing.T) {
	reasoner := &fakeReasoner{parsed: containerParsed()}
	filer := &recordingFiler{}
	pipeline := testPipeline(reasoner, WithTicketFiler(filer))

	diagnosis, err := pipeline.Diagnose(context.Background(), "ALR-861600: duplicate container advice for CMAU0000020")
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}

	if diagnosis.Parsed.TicketID != "ALR-861600" {
		t.Errorf("parsed ticket id = %q", diagnosis.Parsed.TicketID)
	}
	if len(diagnosis.CaseEvidence) == 0 || len(diagnosis.LogEvidence) == 0 || len(diagnosis.KBEvidence) == 0 {
		t.Errorf("expected evidence from all three sources: %d cases, %d logs, %d kb",
			len(diagnosis.CaseEvidence), len(diagnosis.LogEvidence), len(diagnosis.KBEvidence))
	}
	if diagnosis.Confidence.Overall <= 0 {
		t.Errorf("expected positive confidence, got %d", diagnosis.Confidence.Overall)
	}
	if diagnosis.RootCause.Cause == "" || len(diagnosis.Resolution.Steps) == 0 {
		t.Error("root cause or resolution missing")
	}
	if !strings.Contains(diagnosis.Report, "CMAU0000020") {
		t.Errorf("report does not mention entity: %q", diagnosis.Report)
	}
	if diagnosis.CreatedAt.IsZero() {
		t.Error("created-at not set")
	}
	if filer.filed != 1 {
		t.Errorf("expected one filed ticket, got %d", filer.filed)
	}
}

func TestDiagnoseInsufficientIdentifiersSkipsAnalysis(t *testing.T) {
	reasoner := &fakeReasoner{parsed: models.ParsedAlert{Module: "Unknown"}}
	pipeline := testPipeline(reasoner)

	_, err := pipeline.Diagnose(context.Background(), "something is broken somewhere")
	if !errors.Is(err, models.ErrInvalidAlert) {
		t.Fatalf("expected ErrInvalidAlert, got %v", err)
	}
	if reasoner.rootCauseCalls != 0 {
		t.Errorf("root-cause analysis ran for an invalid alert (%d calls)", reasoner.rootCauseCalls)
	}
}

func TestDiagnoseRetriesOnceOnTimeout(t *testing.T) {
	reasoner := &fakeReasoner{
		parsed:    containerParsed(),
		parseErrs: []error{models.ErrTimeout},
	}
	pipeline := testPipeline(reasoner, WithRetryBackoff(time.Millisecond))

	if _, err := pipeline.Diagnose(context.Background(), "alert"); err != nil {
		t.Fatalf("expected recovery after retry, got %v", err)
	}
	if reasoner.parseCalls != 2 {
		t.Errorf("expected 2 parse attempts, got %d", reasoner.parseCalls)
	}
}

func TestDiagnoseGivesUpAfterSecondTransientFailure(t *testing.T) {
	reasoner := &fakeReasoner{
		parsed:        containerParsed(),
		rootCauseErrs: []error{models.ErrRateLimited, models.ErrRateLimited},
	}
	pipeline := testPipeline(reasoner, WithRetryBackoff(time.Millisecond))

	_, err := pipeline.Diagnose(context.Background(), "alert")
	if !errors.Is(err, models.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited after retry, got %v", err)
	}
	if reasoner.rootCauseCalls != 2 {
		t.Errorf("expected exactly 2 root-cause attempts, got %d", reasoner.rootCauseCalls)
	}
}

func TestDiagnoseNoRetryOnPermanentFailure(t *testing.T) {
	reasoner := &fakeReasoner{
		parsed:    containerParsed(),
		parseErrs: []error{models.ErrParseFailure},
	}
	pipeline := testPipeline(reasoner, WithRetryBackoff(time.Millisecond))

	_, err := pipeline.Diagnose(context.Background(), "alert")
	if !errors.Is(err, models.ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", err)
	}
	if reasoner.parseCalls != 1 {
		t.Errorf("permanent failure should not retry, got %d attempts", reasoner.parseCalls)
	}
}

func TestDiagnoseTicketFilingFailureIsNonFatal(t *testing.T) {
	reasoner := &fakeReasoner{parsed: containerParsed()}
	filer := &recordingFiler{err: errors.New("disk full")}
	pipeline := testPipeline(reasoner, WithTicketFiler(filer))

	if _, err := pipeline.Diagnose(context.Background(), "alert"); err != nil {
		t.Fatalf("ticket failure must not fail the diagnosis: %v", err)
	}
	if filer.filed != 1 {
		t.Errorf("expected filing attempt, got %d", filer.filed)
	}
}
