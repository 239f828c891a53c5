package errs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHandlerHandleErrorRecordsHistory(t *testing.T) {
	h := NewHandler(10)
	h.HandleError("capture", "CaptureError", errors.New("boom"), SeverityMedium, nil)

	summary := h.GetSummary()
	if summary.TotalErrors != 1 {
		t.Fatalf("expected 1 recorded error, got %d", summary.TotalErrors)
	}
	if summary.ErrorCounts["CaptureError"] != 1 {
		t.Fatalf("expected error count 1, got %d", summary.ErrorCounts["CaptureError"])
	}
}

func TestHandlerRecoveryStrategySuccess(t *testing.T) {
	h := NewHandler(10)
	var recovered bool
	h.RegisterRecoveryStrategy("OCRError", func(err error, context map[string]any) error {
		recovered = true
		return nil
	})

	ok := h.HandleError("ocr", "OCRError", errors.New("engine timeout"), SeverityHigh, nil)
	if !ok {
		t.Fatal("expected recovery to report success")
	}
	if !recovered {
		t.Fatal("expected recovery strategy to run")
	}
}

func TestHandlerCriticalHook(t *testing.T) {
	h := NewHandler(10)
	var gotRecord Record
	h.OnCriticalError(func(rec Record) {
		gotRecord = rec
	})

	h.HandleError("pipeline", "FatalError", errors.New("unrecoverable"), SeverityCritical, nil)
	if gotRecord.Component != "pipeline" {
		t.Fatalf("expected critical hook to fire with component=pipeline, got %+v", gotRecord)
	}
}

func TestHistoryRingBufferBounded(t *testing.T) {
	h := newHistory(3)
	for i := 0; i < 10; i++ {
		h.add(Record{Timestamp: time.Now(), Component: "x", ErrorType: "E"})
	}
	if h.total() != 3 {
		t.Fatalf("expected bounded history of 3, got %d", h.total())
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker("test", BreakerConfig{FailureThreshold: 2, Timeout: time.Minute, SuccessThreshold: 1})
	failing := errors.New("downstream failure")

	_ = b.Call(func() error { return failing })
	_ = b.Call(func() error { return failing })

	if b.State() != "open" {
		t.Fatalf("expected breaker to be open after 2 consecutive failures, got %s", b.State())
	}

	err := b.Call(func() error { return nil })
	if err == nil {
		t.Fatal("expected call to be rejected while breaker is open")
	}
}

func TestBreakerResetReturnsToClosed(t *testing.T) {
	b := NewBreaker("test-reset", BreakerConfig{FailureThreshold: 1, Timeout: time.Hour, SuccessThreshold: 1})
	_ = b.Call(func() error { return errors.New("fail") })
	if b.State() != "open" {
		t.Fatalf("expected open, got %s", b.State())
	}
	b.Reset()
	if b.State() != "closed" {
		t.Fatalf("expected closed after reset, got %s", b.State())
	}
}

func TestBreakerConcurrentCalls(t *testing.T) {
	b := NewBreaker("concurrent", BreakerConfig{FailureThreshold: 1000, Timeout: time.Minute, SuccessThreshold: 1})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Call(func() error { return nil })
		}()
	}
	wg.Wait()
	if b.State() != "closed" {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestRetryWithBackoffSucceedsEventually(t *testing.T) {
	attempts := 0
	err := RetryWithBackoff(context.Background(), "translate", RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      10 * time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoffExhaustsAttempts(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent failure")
	err := RetryWithBackoff(context.Background(), "translate", RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      5 * time.Millisecond,
	}, func() error {
		attempts++
		return permanent
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", attempts)
	}
}
