// Package engine orchestrates the diagnostic pipeline: parse, retrieve
// evidence, score confidence, analyze, recommend, report.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opstriage/triage-engine/internal/metrics"
	"github.com/opstriage/triage-engine/internal/models"
	"github.com/opstriage/triage-engine/internal/retrieve"
	"github.com/opstriage/triage-engine/internal/scoring"
)

// Reasoner is the set of reasoning-service calls the pipeline makes.
type Reasoner interface {
	ParseAlert(ctx context.Context, alertText string) (models.ParsedAlert, error)
	AnalyzeRootCause(ctx context.Context, alertText string, parsed models.ParsedAlert, caseEvidence, logEvidence, kbEvidence []models.EvidenceItem) (models.RootCause, error)
	RecommendResolution(ctx context.Context, parsed models.ParsedAlert, rootCause models.RootCause, caseEvidence, kbEvidence []models.EvidenceItem) (models.Resolution, error)
	RenderReport(ctx context.Context, alertText string, parsed models.ParsedAlert, rootCause models.RootCause, resolution models.Resolution, confidence models.ConfidenceAssessment) (string, error)
}

// TicketFiler persists a completed diagnosis as a support ticket.
type TicketFiler interface {
	File(ctx context.Context, alertText string, diagnosis models.Diagnosis) (string, error)
}

// Pipeline wires the retrievers, scorer and reasoning client into one
// Diagnose call per alert.
type Pipeline struct {
	logger   *slog.Logger
	reasoner Reasoner
	cases    *retrieve.CaseRetriever
	logs     *retrieve.LogRetriever
	kb       *retrieve.KBRetriever
	scorer   *scoring.Scorer
	tickets  TicketFiler

	retryBackoff time.Duration
}

// Option tunes pipeline construction.
type Option func(*Pipeline)

// WithTicketFiler enables ticket filing for completed diagnoses.
func WithTicketFiler(filer TicketFiler) Option {
	return func(p *Pipeline) { p.tickets = filer }
}

// WithRetryBackoff sets the pause before the single transient-failure retry.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(p *Pipeline) {
		if backoff > 0 {
			p.retryBackoff = backoff
		}
	}
}

// NewPipeline constructs the diagnostic pipeline.
func NewPipeline(logger *slog.Logger, reasoner Reasoner, cases *retrieve.CaseRetriever, logs *retrieve.LogRetriever, kb *retrieve.KBRetriever, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		logger:       logger,
		reasoner:     reasoner,
		cases:        cases,
		logs:         logs,
		kb:           kb,
		scorer:       scoring.NewScorer(),
		retryBackoff: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Diagnose runs the full pipeline for one alert. Evidence gaps degrade the
// confidence score but never abort the diagnosis; reasoning failures do.
func (p *Pipeline) Diagnose(ctx context.Context, alertText string) (models.Diagnosis, error) {
	started := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		metrics.ObserveDiagnosis(time.Since(started), outcome)
	}()

	var parsed models.ParsedAlert
	err := p.withRetry(ctx, "parse", func() error {
		var parseErr error
		parsed, parseErr = p.reasoner.ParseAlert(ctx, alertText)
		return parseErr
	})
	if err != nil {
		return models.Diagnosis{}, fmt.Errorf("parse alert: %w", err)
	}

	// Past cases first: proven resolutions anchor both the confidence score
	// and the root-cause prompt.
	caseEvidence := p.cases.Retrieve(parsed, retrieve.DefaultCaseItems)

	var logEvidence, kbEvidence []models.EvidenceItem
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		logEvidence = p.logs.Retrieve(parsed, retrieve.DefaultLogItems)
		return nil
	})
	group.Go(func() error {
		kbEvidence = p.kb.Retrieve(parsed, retrieve.DefaultKBItems)
		return nil
	})
	_ = group.Wait()

	confidence, err := p.scorer.Assess(parsed, caseEvidence, logEvidence, kbEvidence)
	if err != nil {
		// Too few identifiers: no analysis, the alert needs a human.
		return models.Diagnosis{}, err
	}

	p.logger.Debug("evidence gathered",
		slog.String("ticket_id", parsed.TicketID),
		slog.Int("cases", len(caseEvidence)),
		slog.Int("logs", len(logEvidence)),
		slog.Int("kb", len(kbEvidence)),
		slog.Int("confidence", confidence.Overall))

	var rootCause models.RootCause
	err = p.withRetry(ctx, "root_cause", func() error {
		var analysisErr error
		rootCause, analysisErr = p.reasoner.AnalyzeRootCause(ctx, alertText, parsed, caseEvidence, logEvidence, kbEvidence)
		return analysisErr
	})
	if err != nil {
		return models.Diagnosis{}, fmt.Errorf("root cause analysis: %w", err)
	}

	var resolution models.Resolution
	err = p.withRetry(ctx, "resolution", func() error {
		var recErr error
		resolution, recErr = p.reasoner.RecommendResolution(ctx, parsed, rootCause, caseEvidence, kbEvidence)
		return recErr
	})
	if err != nil {
		return models.Diagnosis{}, fmt.Errorf("resolution: %w", err)
	}

	var report string
	err = p.withRetry(ctx, "report", func() error {
		var reportErr error
		report, reportErr = p.reasoner.RenderReport(ctx, alertText, parsed, rootCause, resolution, confidence)
		return reportErr
	})
	if err != nil {
		return models.Diagnosis{}, fmt.Errorf("report: %w", err)
	}

	diagnosis := models.Diagnosis{
		Parsed:       parsed,
		CaseEvidence: caseEvidence,
		LogEvidence:  logEvidence,
		KBEvidence:   kbEvidence,
		Confidence:   confidence,
		RootCause:    rootCause,
		Resolution:   resolution,
		Report:       report,
		CreatedAt:    time.Now(),
	}

	if p.tickets != nil {
		if ticketID, filingErr := p.tickets.File(ctx, alertText, diagnosis); filingErr != nil {
			p.logger.Warn("ticket filing failed",
				slog.String("ticket_id", parsed.TicketID),
				slog.Any("error", filingErr))
		} else {
			p.logger.Info("ticket filed",
				slog.String("ticket_id", parsed.TicketID),
				slog.String("stored_as", ticketID))
		}
	}

	outcome = metrics.OutcomeSuccess
	return diagnosis, nil
}

// withRetry runs fn, retrying once after a pause when the failure is
// transient (rate limit or timeout). Permanent failures return immediately.
func (p *Pipeline) withRetry(ctx context.Context, stage string, fn func() error) error {
	err := fn()
	if err == nil || !models.IsTransient(err) {
		return err
	}

	p.logger.Warn("transient reasoning failure, retrying",
		slog.String("stage", stage),
		slog.Any("error", err))

	select {
	case <-ctx.Done():
		return err
	case <-time.After(p.retryBackoff):
	}
	return fn()
}
