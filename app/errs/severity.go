// Package errs centralizes pipeline error handling: severity
// classification, a bounded error history, per-component circuit breakers,
// and retry-with-backoff helpers.
package errs

import "time"

// Severity classifies how serious an error is for pipeline continuation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Record is a single error occurrence captured by a Handler.
type Record struct {
	Timestamp          time.Time
	Component          string
	ErrorType          string
	Message            string
	Severity           Severity
	RecoveryAttempted  bool
	RecoverySuccessful bool
}
