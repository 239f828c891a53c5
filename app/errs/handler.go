package errs

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RecoveryStrategy attempts to recover from an error of a specific type. It
// returns an error if recovery itself failed.
type RecoveryStrategy func(err error, context map[string]any) error

// Handler is the pipeline's centralized error sink: it classifies errors by
// severity, records them in a bounded history, drives per-component circuit
// breakers, and runs registered recovery strategies.
type Handler struct {
	mu                sync.RWMutex
	breakers          map[string]*Breaker
	recoveryByType    map[string]RecoveryStrategy
	history           *history
	onCriticalError   func(Record)
}

// NewHandler constructs a Handler with a bounded error history of the given
// capacity (0 uses a sensible default).
func NewHandler(historyCapacity int) *Handler {
	return &Handler{
		breakers:       make(map[string]*Breaker),
		recoveryByType: make(map[string]RecoveryStrategy),
		history:        newHistory(historyCapacity),
	}
}

// OnCriticalError registers a hook invoked synchronously whenever an error
// of SeverityCritical is handled. Used to surface unrecoverable failures to
// an out-of-process crash reporter.
func (h *Handler) OnCriticalError(fn func(Record)) {
	h.mu.Lock()
	h.onCriticalError = fn
	h.mu.Unlock()
}

// RegisterBreaker registers and returns a new circuit breaker for component.
func (h *Handler) RegisterBreaker(component string, cfg BreakerConfig) *Breaker {
	b := NewBreaker(component, cfg)
	h.mu.Lock()
	h.breakers[component] = b
	h.mu.Unlock()
	log.Info().Str("event", "[CIRCUIT_REGISTERED]").Str("component", component).Msg("registered circuit breaker")
	return b
}

// Breaker returns the circuit breaker registered for component, if any.
func (h *Handler) Breaker(component string) (*Breaker, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	b, ok := h.breakers[component]
	return b, ok
}

// RegisterRecoveryStrategy registers a recovery strategy keyed by error
// type name (e.g. "OCRError", "TranslationError").
func (h *Handler) RegisterRecoveryStrategy(errorType string, strategy RecoveryStrategy) {
	h.mu.Lock()
	h.recoveryByType[errorType] = strategy
	h.mu.Unlock()
}

// HandleError records err, logs it at a level matching severity, and
// attempts recovery if a strategy is registered for errorType. It returns
// true if recovery succeeded.
func (h *Handler) HandleError(component, errorType string, err error, severity Severity, context map[string]any) bool {
	rec := Record{
		Timestamp: time.Now(),
		Component: component,
		ErrorType: errorType,
		Message:   err.Error(),
		Severity:  severity,
	}

	h.mu.RLock()
	strategy, hasStrategy := h.recoveryByType[errorType]
	onCritical := h.onCriticalError
	h.mu.RUnlock()

	logEvent := log.Warn()
	switch severity {
	case SeverityLow:
		logEvent = log.Debug()
	case SeverityHigh:
		logEvent = log.Error()
	case SeverityCritical:
		logEvent = log.Error()
	}
	logEvent.Str("event", "[PIPELINE_ERROR]").
		Str("component", component).
		Str("error_type", errorType).
		Str("severity", string(severity)).
		Err(err).
		Msg("pipeline component reported an error")

	recovered := false
	if hasStrategy {
		rec.RecoveryAttempted = true
		if recErr := strategy(err, context); recErr != nil {
			log.Error().Str("event", "[RECOVERY_FAILED]").
				Str("component", component).Str("error_type", errorType).
				Err(recErr).Msg("recovery strategy failed")
		} else {
			rec.RecoverySuccessful = true
			recovered = true
			log.Info().Str("event", "[RECOVERY_SUCCEEDED]").
				Str("component", component).Str("error_type", errorType).
				Msg("recovered from error")
		}
	}

	h.history.add(rec)

	if severity == SeverityCritical && onCritical != nil {
		onCritical(rec)
	}

	return recovered
}

// Summary is a point-in-time snapshot of error-handling state.
type Summary struct {
	TotalErrors   int
	RecentErrors  int
	ErrorCounts   map[string]int
	BreakerStates map[string]string
}

// GetSummary returns aggregate error statistics, counting as "recent" any
// error recorded within the last five minutes.
func (h *Handler) GetSummary() Summary {
	recent := h.history.since(time.Now().Add(-5 * time.Minute))

	h.mu.RLock()
	states := make(map[string]string, len(h.breakers))
	for name, b := range h.breakers {
		states[name] = b.State()
	}
	h.mu.RUnlock()

	return Summary{
		TotalErrors:   h.history.total(),
		RecentErrors:  len(recent),
		ErrorCounts:   h.history.errorCounts(),
		BreakerStates: states,
	}
}

// RecentErrors returns up to limit error records, most recent first.
func (h *Handler) RecentErrors(limit int) []Record {
	return h.history.recent(limit)
}

// ClearHistory clears the error history. If olderThan is non-zero, only
// records older than that duration are dropped.
func (h *Handler) ClearHistory(olderThan time.Duration) {
	h.history.clear(olderThan, time.Now())
	log.Info().Str("event", "[ERROR_HISTORY_CLEARED]").Msg("error history cleared")
}

// ResetAllBreakers resets every registered circuit breaker to closed.
func (h *Handler) ResetAllBreakers() {
	h.mu.RLock()
	breakers := make([]*Breaker, 0, len(h.breakers))
	for _, b := range h.breakers {
		breakers = append(breakers, b)
	}
	h.mu.RUnlock()
	for _, b := range breakers {
		b.Reset()
	}
	log.Info().Str("event", "[ALL_CIRCUITS_RESET]").Msg("all circuit breakers reset")
}
