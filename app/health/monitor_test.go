package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorHealthyWhenChecksPass(t *testing.T) {
	m := NewMonitor(20 * time.Millisecond)
	m.Register(CheckConfig{
		Name:     "ocr",
		Interval: 10 * time.Millisecond,
		Fn:       func(ctx context.Context) error { return nil },
	})
	m.Start(context.Background())
	defer m.Stop()

	time.Sleep(100 * time.Millisecond)
	if got := m.OverallStatus(); got != StatusHealthy {
		t.Fatalf("expected healthy, got %s", got)
	}
}

func TestMonitorDegradesAfterFailures(t *testing.T) {
	m := NewMonitor(10 * time.Millisecond)
	m.Register(CheckConfig{
		Name:             "capture",
		Interval:         10 * time.Millisecond,
		FailureThreshold: 2,
		Fn:               func(ctx context.Context) error { return errors.New("boom") },
	})
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for m.OverallStatus() != StatusUnhealthy && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := m.OverallStatus(); got != StatusUnhealthy {
		t.Fatalf("expected unhealthy after consecutive failures, got %s", got)
	}
}

func TestMonitorTimeoutIsolatesHangingCheck(t *testing.T) {
	m := NewMonitor(10 * time.Millisecond)
	m.Register(CheckConfig{
		Name:     "stuck",
		Interval: 10 * time.Millisecond,
		Timeout:  20 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	time.Sleep(150 * time.Millisecond)
	reports := m.Reports()
	if len(reports) != 1 || reports[0].LastError == nil {
		t.Fatal("expected hanging check to be reported as failed via timeout")
	}
}

func TestMonitorRecoveryRespectsCooldown(t *testing.T) {
	m := NewMonitor(10 * time.Millisecond)
	var recoveries int32
	m.Register(CheckConfig{
		Name:             "translate",
		Interval:         5 * time.Millisecond,
		FailureThreshold: 1,
		RecoveryCooldown: time.Hour,
		Fn:               func(ctx context.Context) error { return errors.New("down") },
		RecoveryFn: func(ctx context.Context) error {
			atomic.AddInt32(&recoveries, 1)
			return nil
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&recoveries); got != 1 {
		t.Fatalf("expected exactly one recovery attempt due to cooldown, got %d", got)
	}
}

func TestMonitorRecoveryRequiresConsecutiveSuccesses(t *testing.T) {
	var failing int32 = 1
	m := NewMonitor(10 * time.Millisecond)
	m.Register(CheckConfig{
		Name:              "engine",
		Interval:          10 * time.Millisecond,
		FailureThreshold:  1,
		RecoveryThreshold: 3,
		Fn: func(ctx context.Context) error {
			if atomic.LoadInt32(&failing) == 1 {
				return errors.New("down")
			}
			return nil
		},
	})
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for m.OverallStatus() != StatusUnhealthy && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := m.OverallStatus(); got != StatusUnhealthy {
		t.Fatalf("expected unhealthy before recovery, got %s", got)
	}

	atomic.StoreInt32(&failing, 0)
	time.Sleep(15 * time.Millisecond)
	if got := m.OverallStatus(); got == StatusHealthy {
		t.Fatalf("expected status to stay non-healthy after a single success (RecoveryThreshold=3), got %s", got)
	}

	deadline = time.Now().Add(time.Second)
	for m.OverallStatus() != StatusHealthy && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := m.OverallStatus(); got != StatusHealthy {
		t.Fatalf("expected healthy after enough consecutive successes, got %s", got)
	}
}

func TestOverallStatusHealthyBeforeAnyRun(t *testing.T) {
	m := NewMonitor(time.Hour)
	m.Register(CheckConfig{Name: "a", Fn: func(ctx context.Context) error { return nil }})
	m.Register(CheckConfig{Name: "b", Fn: func(ctx context.Context) error { return nil }})
	if m.OverallStatus() != StatusHealthy {
		t.Fatal("expected healthy with no runs yet")
	}
}
