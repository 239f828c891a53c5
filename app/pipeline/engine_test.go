package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEngineExecutesInDependencyOrder(t *testing.T) {
	e := NewEngine()
	var order []string

	e.RegisterStage(StageConfig{
		Name: "translate", Required: true, Enabled: true,
		Dependencies: []string{"ocr"},
		Process: func(ctx context.Context, in any) (any, error) {
			order = append(order, "translate")
			return in, nil
		},
	})
	e.RegisterStage(StageConfig{
		Name: "ocr", Required: true, Enabled: true,
		Dependencies: []string{"capture"},
		Process: func(ctx context.Context, in any) (any, error) {
			order = append(order, "ocr")
			return in, nil
		},
	})
	e.RegisterStage(StageConfig{
		Name: "capture", Required: true, Enabled: true,
		Process: func(ctx context.Context, in any) (any, error) {
			order = append(order, "capture")
			return in, nil
		},
	})

	e.Execute(context.Background(), nil)

	if len(order) != 3 || order[0] != "capture" || order[1] != "ocr" || order[2] != "translate" {
		t.Fatalf("expected [capture ocr translate] order, got %v", order)
	}
}

func TestEngineStopsOnRequiredStageFailure(t *testing.T) {
	e := NewEngine()
	var ran bool

	e.RegisterStage(StageConfig{
		Name: "ocr", Required: true, Enabled: true,
		Process: func(ctx context.Context, in any) (any, error) {
			return nil, errors.New("ocr failed")
		},
	})
	e.RegisterStage(StageConfig{
		Name: "translate", Required: true, Enabled: true,
		Dependencies: []string{"ocr"},
		Process: func(ctx context.Context, in any) (any, error) {
			ran = true
			return in, nil
		},
	})

	results := e.Execute(context.Background(), "x")
	if ran {
		t.Fatal("expected dependent stage not to run after required stage failure")
	}
	if results["ocr"].Success {
		t.Fatal("expected ocr stage result to be a failure")
	}
	if e.State() != EngineError {
		t.Fatalf("expected engine state error, got %s", e.State())
	}
}

func TestEngineContinuesPastOptionalStageFailure(t *testing.T) {
	e := NewEngine()
	var ran bool

	e.RegisterStage(StageConfig{
		Name: "validate", Required: false, Enabled: true,
		Process: func(ctx context.Context, in any) (any, error) {
			return nil, errors.New("validation failed")
		},
	})
	e.RegisterStage(StageConfig{
		Name: "translate", Required: true, Enabled: true,
		Process: func(ctx context.Context, in any) (any, error) {
			ran = true
			return in, nil
		},
	})

	e.Execute(context.Background(), "x")
	if !ran {
		t.Fatal("expected pipeline to continue after optional stage failure")
	}
}

func TestEngineDetectsDependencyCycle(t *testing.T) {
	e := NewEngine()
	e.RegisterStage(StageConfig{Name: "a", Dependencies: []string{"b"}, Enabled: true})
	e.RegisterStage(StageConfig{Name: "b", Dependencies: []string{"a"}, Enabled: true})

	if e.CycleError() == nil {
		t.Fatal("expected a cycle error to be recorded")
	}
}

func TestDisableStageRefusesRequired(t *testing.T) {
	e := NewEngine()
	e.RegisterStage(StageConfig{Name: "ocr", Required: true, Enabled: true,
		Process: func(ctx context.Context, in any) (any, error) { return in, nil }})
	e.DisableStage("ocr")
	stats, _ := e.StageStats("ocr")
	if !stats.Enabled {
		t.Fatal("expected required stage to remain enabled")
	}
}

func TestStageTimeoutFailsExecution(t *testing.T) {
	e := NewEngine()
	e.RegisterStage(StageConfig{
		Name: "slow", Required: true, Enabled: true, Timeout: 10 * time.Millisecond,
		Process: func(ctx context.Context, in any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	result, ok := e.ExecuteStage(context.Background(), "slow", nil)
	if !ok || result.Success {
		t.Fatal("expected timed-out stage to report failure")
	}
}
