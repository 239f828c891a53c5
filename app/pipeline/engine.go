package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// EngineState is the pipeline-wide lifecycle state, distinct from the
// per-stage StageState.
type EngineState string

const (
	EngineIdle     EngineState = "idle"
	EngineStarting EngineState = "starting"
	EngineRunning  EngineState = "running"
	EnginePaused   EngineState = "paused"
	EngineStopping EngineState = "stopping"
	EngineError    EngineState = "error"
)

// Callback runs before or after a stage executes.
type Callback func(data any)

// Engine registers stages, resolves their dependency order, and drives
// data through them in sequence.
type Engine struct {
	mu       sync.RWMutex
	stages   map[string]*stage
	order    []string
	state    EngineState
	cycleErr error

	preCallbacks  map[string][]Callback
	postCallbacks map[string][]Callback
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{
		stages:        make(map[string]*stage),
		preCallbacks:  make(map[string][]Callback),
		postCallbacks: make(map[string][]Callback),
		state:         EngineIdle,
	}
}

// RegisterStage adds a stage and rebuilds the dependency-resolved
// execution order. Returns false if a stage with the same name already
// exists.
func (e *Engine) RegisterStage(cfg StageConfig) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.stages[cfg.Name]; exists {
		log.Warn().Str("event", "[STAGE_DUPLICATE]").Str("stage", cfg.Name).Msg("stage already registered")
		return false
	}
	e.stages[cfg.Name] = newStage(cfg)
	e.rebuildOrderLocked()
	log.Info().Str("event", "[STAGE_REGISTERED]").Str("stage", cfg.Name).Msg("registered pipeline stage")
	return true
}

// UnregisterStage removes a stage, refusing if other stages depend on it.
func (e *Engine) UnregisterStage(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.stages[name]; !exists {
		return false
	}
	if dependents := e.dependentsLocked(name); len(dependents) > 0 {
		log.Error().Str("event", "[STAGE_REMOVE_BLOCKED]").Str("stage", name).
			Strs("dependents", dependents).Msg("cannot remove stage with dependents")
		return false
	}
	delete(e.stages, name)
	e.rebuildOrderLocked()
	return true
}

// EnableStage re-enables a disabled stage.
func (e *Engine) EnableStage(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.stages[name]; ok {
		s.mu.Lock()
		s.cfg.Enabled = true
		s.mu.Unlock()
	}
}

// DisableStage disables a non-required stage. Required stages cannot be
// disabled; the call is a no-op for them.
func (e *Engine) DisableStage(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.stages[name]
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Required {
		log.Warn().Str("event", "[STAGE_DISABLE_BLOCKED]").Str("stage", name).Msg("cannot disable required stage")
		return
	}
	s.cfg.Enabled = false
}

// RegisterPreCallback runs cb with the pipeline's current data immediately
// before the named stage executes.
func (e *Engine) RegisterPreCallback(stageName string, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preCallbacks[stageName] = append(e.preCallbacks[stageName], cb)
}

// RegisterPostCallback runs cb with the stage's Result immediately after
// the named stage executes.
func (e *Engine) RegisterPostCallback(stageName string, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.postCallbacks[stageName] = append(e.postCallbacks[stageName], cb)
}

func runCallbacks(cbs []Callback, data any) {
	for _, cb := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("event", "[CALLBACK_PANIC]").Interface("recover", r).Msg("pipeline callback panicked")
				}
			}()
			cb(data)
		}()
	}
}

// Execute runs every enabled stage in dependency order, feeding each
// stage's output to the next. It stops early if a required stage fails.
func (e *Engine) Execute(ctx context.Context, initial any) map[string]Result {
	e.mu.Lock()
	e.state = EngineRunning
	order := append([]string{}, e.order...)
	e.mu.Unlock()

	results := make(map[string]Result, len(order))
	current := initial

	for _, name := range order {
		e.mu.RLock()
		s := e.stages[name]
		pre := append([]Callback{}, e.preCallbacks[name]...)
		post := append([]Callback{}, e.postCallbacks[name]...)
		e.mu.RUnlock()
		if s == nil {
			continue
		}

		runCallbacks(pre, current)
		result := s.execute(ctx, current)
		results[name] = result
		runCallbacks(post, result)

		if !result.Success {
			s.mu.Lock()
			required := s.cfg.Required
			s.mu.Unlock()
			if required {
				log.Error().Str("event", "[PIPELINE_STOPPED]").Str("stage", name).Msg("required stage failed, stopping pipeline")
				e.mu.Lock()
				e.state = EngineError
				e.mu.Unlock()
				break
			}
			log.Warn().Str("event", "[OPTIONAL_STAGE_FAILED]").Str("stage", name).Msg("optional stage failed, continuing")
			continue
		}
		if result.Data != nil {
			current = result.Data
		}
	}

	e.mu.Lock()
	if e.state != EngineError {
		e.state = EngineIdle
	}
	e.mu.Unlock()
	return results
}

// ExecuteStage runs a single stage in isolation, bypassing order and
// callbacks. Useful for manual replays and tests.
func (e *Engine) ExecuteStage(ctx context.Context, name string, input any) (Result, bool) {
	e.mu.RLock()
	s, ok := e.stages[name]
	e.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	return s.execute(ctx, input), true
}

// State returns the engine's current pipeline-wide state.
func (e *Engine) State() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Pause/Resume/Stop transition the engine-wide state. Stages themselves
// check Engine.State() cooperatively via the owning caller; the Engine
// does not forcibly interrupt an in-flight Execute call.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.state = EnginePaused
	e.mu.Unlock()
}

func (e *Engine) Resume() {
	e.mu.Lock()
	if e.state == EnginePaused {
		e.state = EngineIdle
	}
	e.mu.Unlock()
}

func (e *Engine) Stop() {
	e.mu.Lock()
	e.state = EngineStopping
	e.mu.Unlock()
}

// CycleError returns the error from the most recent RegisterStage call if
// it introduced a dependency cycle, or nil otherwise. When a cycle is
// detected the execution order retains its last valid configuration.
func (e *Engine) CycleError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cycleErr
}

// ValidateDependencies returns, for each stage, any dependency names that
// reference stages which are not registered.
func (e *Engine) ValidateDependencies() map[string][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	issues := make(map[string][]string)
	for name, s := range e.stages {
		var missing []string
		for _, dep := range s.cfg.Dependencies {
			if _, ok := e.stages[dep]; !ok {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			issues[name] = missing
		}
	}
	return issues
}

// StageStats returns statistics for a single registered stage.
func (e *Engine) StageStats(name string) (StageStats, bool) {
	e.mu.RLock()
	s, ok := e.stages[name]
	e.mu.RUnlock()
	if !ok {
		return StageStats{}, false
	}
	return s.getStats(), true
}

// AllStats returns statistics for every registered stage.
func (e *Engine) AllStats() map[string]StageStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]StageStats, len(e.stages))
	for name, s := range e.stages {
		out[name] = s.getStats()
	}
	return out
}

// rebuildOrderLocked performs a DFS-based topological sort over stage
// dependencies, detecting cycles along the way. Callers must hold e.mu.
// A cycle leaves the previously-valid order untouched and sets cycleErr.
func (e *Engine) rebuildOrderLocked() {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	order := make([]string, 0, len(e.stages))
	var cyclePath []string

	var visit func(name string) bool
	visit = func(name string) bool {
		if visited[name] {
			return true
		}
		if visiting[name] {
			cyclePath = append(cyclePath, name)
			return false
		}
		s, ok := e.stages[name]
		if !ok {
			return true
		}
		visiting[name] = true
		for _, dep := range s.cfg.Dependencies {
			if _, ok := e.stages[dep]; ok {
				if !visit(dep) {
					cyclePath = append(cyclePath, name)
					return false
				}
			}
		}
		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return true
	}

	for name := range e.stages {
		if !visit(name) {
			log.Error().Str("event", "[STAGE_CYCLE_DETECTED]").Strs("path", cyclePath).
				Msg("dependency cycle detected, execution order not updated")
			e.cycleErr = fmt.Errorf("pipeline: dependency cycle detected involving %v", cyclePath)
			return
		}
	}
	e.cycleErr = nil
	e.order = order
}

func (e *Engine) dependentsLocked(name string) []string {
	var out []string
	for other, s := range e.stages {
		for _, dep := range s.cfg.Dependencies {
			if dep == name {
				out = append(out, other)
			}
		}
	}
	return out
}

func (e *Engine) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("Engine(stages=%d, state=%s)", len(e.stages), e.state)
}
