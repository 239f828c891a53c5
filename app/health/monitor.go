// Package health runs periodic checks against pipeline components and
// derives an overall health status, triggering recovery actions when a
// component degrades.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the health state of a single check or of the pipeline overall.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusCritical Status = "critical"
)

// CheckFunc reports whether a component is currently healthy.
type CheckFunc func(ctx context.Context) error

// CheckConfig configures a single named health check.
type CheckConfig struct {
	Name             string
	Fn               CheckFunc
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold  int // consecutive failures before StatusUnhealthy
	RecoveryThreshold int // consecutive successes before returning to StatusHealthy
	RecoveryFn        func(ctx context.Context) error
	RecoveryCooldown time.Duration
}

// check is the monitor's live bookkeeping for one CheckConfig.
type check struct {
	cfg CheckConfig

	mu                  sync.Mutex
	status              Status
	consecutiveFailures int
	consecutiveSuccesses int
	lastRun             time.Time
	lastError           error
	lastRecoveryAt      time.Time
}

// Report is a snapshot of a single check's state.
type Report struct {
	Name                string
	Status              Status
	ConsecutiveFailures int
	LastRun             time.Time
	LastError           error
}

// Monitor runs every registered check on its own interval, isolating slow
// checks with a per-check timeout, and derives an overall pipeline status
// as the worst status across all checks.
type Monitor struct {
	mu     sync.RWMutex
	checks map[string]*check

	stop   chan struct{}
	done   chan struct{}
	ticker time.Duration
}

// NewMonitor constructs a Monitor that polls its checks' timers every
// pollInterval (0 uses a 500ms default, matching the cadence a GUI-less
// service can comfortably sustain).
func NewMonitor(pollInterval time.Duration) *Monitor {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Monitor{
		checks: make(map[string]*check),
		ticker: pollInterval,
	}
}

// Register adds a health check. FailureThreshold defaults to 3 and
// RecoveryCooldown to 60s if unset.
func (m *Monitor) Register(cfg CheckConfig) {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = 2
	}
	if cfg.RecoveryCooldown <= 0 {
		cfg.RecoveryCooldown = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	m.mu.Lock()
	m.checks[cfg.Name] = &check{cfg: cfg, status: StatusHealthy}
	m.mu.Unlock()
	log.Info().Str("event", "[HEALTH_CHECK_REGISTERED]").Str("check", cfg.Name).Msg("registered health check")
}

// Start begins the monitor loop in a background goroutine.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop(ctx)
}

// Stop halts the monitor loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	done := m.done
	m.stop = nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.ticker)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.tick(ctx, now)
		}
	}
}

func (m *Monitor) tick(ctx context.Context, now time.Time) {
	m.mu.RLock()
	due := make([]*check, 0, len(m.checks))
	for _, c := range m.checks {
		c.mu.Lock()
		if now.Sub(c.lastRun) >= c.cfg.Interval {
			due = append(due, c)
		}
		c.mu.Unlock()
	}
	m.mu.RUnlock()

	for _, c := range due {
		m.runCheck(ctx, c)
	}
}

// runWithTimeout isolates a potentially slow/hanging check: it runs fn in
// its own goroutine and returns a timeout error if it doesn't report back
// in time, without blocking the monitor loop on a stuck check forever.
func runWithTimeout(ctx context.Context, timeout time.Duration, fn CheckFunc) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- fn(cctx)
	}()

	select {
	case err := <-resultCh:
		return err
	case <-cctx.Done():
		return cctx.Err()
	}
}

func (m *Monitor) runCheck(ctx context.Context, c *check) {
	err := runWithTimeout(ctx, c.cfg.Timeout, c.cfg.Fn)

	c.mu.Lock()
	c.lastRun = time.Now()
	c.lastError = err
	if err != nil {
		c.consecutiveFailures++
		c.consecutiveSuccesses = 0
		switch {
		case c.consecutiveFailures >= c.cfg.FailureThreshold*2:
			c.status = StatusCritical
		case c.consecutiveFailures >= c.cfg.FailureThreshold:
			c.status = StatusUnhealthy
		default:
			c.status = StatusDegraded
		}
	} else {
		c.consecutiveSuccesses++
		c.consecutiveFailures = 0
		if c.status == StatusHealthy || c.consecutiveSuccesses >= c.cfg.RecoveryThreshold {
			c.status = StatusHealthy
		}
	}
	status := c.status
	needsRecovery := err != nil && c.cfg.RecoveryFn != nil &&
		time.Since(c.lastRecoveryAt) >= c.cfg.RecoveryCooldown
	if needsRecovery {
		c.lastRecoveryAt = time.Now()
	}
	recoveryFn := c.cfg.RecoveryFn
	name := c.cfg.Name
	c.mu.Unlock()

	if err != nil {
		log.Warn().Str("event", "[HEALTH_CHECK_FAILED]").Str("check", name).
			Str("status", string(status)).Err(err).Msg("health check failed")
	}

	if needsRecovery {
		log.Info().Str("event", "[HEALTH_RECOVERY_TRIGGERED]").Str("check", name).Msg("triggering recovery")
		if recErr := recoveryFn(ctx); recErr != nil {
			log.Error().Str("event", "[HEALTH_RECOVERY_FAILED]").Str("check", name).Err(recErr).Msg("recovery failed")
		} else {
			log.Info().Str("event", "[HEALTH_RECOVERY_SUCCEEDED]").Str("check", name).Msg("recovery succeeded")
		}
	}
}

// Reports returns the current status of every registered check.
func (m *Monitor) Reports() []Report {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Report, 0, len(m.checks))
	for _, c := range m.checks {
		c.mu.Lock()
		out = append(out, Report{
			Name:                c.cfg.Name,
			Status:              c.status,
			ConsecutiveFailures: c.consecutiveFailures,
			LastRun:             c.lastRun,
			LastError:           c.lastError,
		})
		c.mu.Unlock()
	}
	return out
}

// severityRank orders statuses from best to worst for OverallStatus.
var severityRank = map[Status]int{
	StatusHealthy:   0,
	StatusDegraded:  1,
	StatusUnhealthy: 2,
	StatusCritical:  3,
}

// OverallStatus is the worst status across all registered checks.
func (m *Monitor) OverallStatus() Status {
	reports := m.Reports()
	if len(reports) == 0 {
		return StatusHealthy
	}
	worst := StatusHealthy
	for _, r := range reports {
		if severityRank[r.Status] > severityRank[worst] {
			worst = r.Status
		}
	}
	return worst
}
