package models

import "errors"

// Sentinel errors for the diagnostic pipeline. Transient errors (rate
// limiting, timeouts) earn one retry and then surface with a transient
// marker so the caller knows resubmission may succeed; the rest are
// permanent for the given input.
var (
	// ErrInvalidAlert signals that fewer than two core identifiers could be
	// extracted from the alert text. Not retried.
	ErrInvalidAlert = errors.New("invalid alert: insufficient parseable identifiers")

	// ErrParseFailure signals the reasoning service returned unusable
	// structure while parsing the alert.
	ErrParseFailure = errors.New("alert parsing returned malformed structure")

	// ErrAnalysisFailure signals the reasoning service returned unusable
	// structure during root-cause analysis or later stages.
	ErrAnalysisFailure = errors.New("analysis returned malformed structure")

	// ErrRateLimited signals the reasoning service rejected the call under load.
	ErrRateLimited = errors.New("reasoning service rate limited")

	// ErrTimeout signals the reasoning service exceeded its deadline.
	ErrTimeout = errors.New("reasoning service call timed out")

	// ErrMalformedResponse signals the reasoning service replied with
	// structure the caller cannot use.
	ErrMalformedResponse = errors.New("reasoning service returned malformed response")

	// ErrEvidenceUnavailable signals one evidence source failed to load or
	// query. Absorbed by the pipeline; diagnosis proceeds degraded.
	ErrEvidenceUnavailable = errors.New("evidence source unavailable")
)

// IsTransient reports whether err warrants resubmission by the caller.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrTimeout)
}
