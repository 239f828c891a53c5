// Package pipeline drives data through an ordered, dependency-resolved set
// of stages (capture, preprocess, OCR, validate, translate, overlay),
// tracking per-stage and overall execution state.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// StageState is a single stage's lifecycle state.
type StageState string

const (
	StageIdle     StageState = "idle"
	StageReady    StageState = "ready"
	StageRunning  StageState = "running"
	StagePaused   StageState = "paused"
	StageError    StageState = "error"
	StageDisabled StageState = "disabled"
)

// ProcessFunc performs a stage's work. It receives the previous stage's
// output and returns this stage's output.
type ProcessFunc func(ctx context.Context, input any) (any, error)

// StageConfig describes a registered stage.
type StageConfig struct {
	Name         string
	Enabled      bool
	Required     bool
	Timeout      time.Duration
	Dependencies []string
	Process      ProcessFunc
}

// Result is what a stage execution produced.
type Result struct {
	StageName     string
	Success       bool
	Data          any
	Err           error
	ExecutionTime time.Duration
	Timestamp     time.Time
}

// stageStats are the mutable counters kept per stage.
type stageStats struct {
	executions int64
	successes  int64
	failures   int64
	totalTime  time.Duration
}

// StageStats is a read-only snapshot of stage.stats.
type StageStats struct {
	Name           string
	State          StageState
	Enabled        bool
	Executions     int64
	Successes      int64
	Failures       int64
	SuccessRate    float64
	AverageTime    time.Duration
	TotalTime      time.Duration
}

// stage wraps a StageConfig with its live state and counters.
type stage struct {
	cfg StageConfig

	mu    sync.Mutex
	state StageState
	stats stageStats
}

func newStage(cfg StageConfig) *stage {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &stage{cfg: cfg, state: StageIdle}
}

// execute runs the stage against input_data, isolating it with a timeout.
func (s *stage) execute(ctx context.Context, input any) Result {
	s.mu.Lock()
	enabled := s.cfg.Enabled
	s.mu.Unlock()

	if !enabled {
		return Result{StageName: s.cfg.Name, Success: true, Data: input, Timestamp: time.Now()}
	}

	start := time.Now()
	s.mu.Lock()
	s.state = StageRunning
	s.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	type outcome struct {
		data any
		err  error
	}
	ch := make(chan outcome, 1)
	go func() {
		data, err := s.cfg.Process(cctx, input)
		ch <- outcome{data, err}
	}()

	var out outcome
	select {
	case out = <-ch:
	case <-cctx.Done():
		out = outcome{nil, cctx.Err()}
	}

	elapsed := time.Since(start)
	s.mu.Lock()
	s.stats.executions++
	s.stats.totalTime += elapsed
	if out.err == nil {
		s.stats.successes++
		s.state = StageReady
	} else {
		s.stats.failures++
		s.state = StageError
	}
	s.mu.Unlock()

	if out.err != nil {
		log.Error().Str("event", "[STAGE_FAILED]").Str("stage", s.cfg.Name).Err(out.err).Msg("stage execution failed")
		return Result{StageName: s.cfg.Name, Success: false, Err: out.err, ExecutionTime: elapsed, Timestamp: time.Now()}
	}
	return Result{StageName: s.cfg.Name, Success: true, Data: out.data, ExecutionTime: elapsed, Timestamp: time.Now()}
}

func (s *stage) getStats() StageStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var avg time.Duration
	var rate float64
	if s.stats.executions > 0 {
		avg = s.stats.totalTime / time.Duration(s.stats.executions)
		rate = float64(s.stats.successes) / float64(s.stats.executions) * 100
	}
	return StageStats{
		Name:        s.cfg.Name,
		State:       s.state,
		Enabled:     s.cfg.Enabled,
		Executions:  s.stats.executions,
		Successes:   s.stats.successes,
		Failures:    s.stats.failures,
		SuccessRate: rate,
		AverageTime: avg,
		TotalTime:   s.stats.totalTime,
	}
}
