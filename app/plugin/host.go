package plugin

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Host runs the loaded optimizer hooks for one pipeline instance. A
// failing plugin is bypassed for the remainder of the frame rather than
// failing the frame outright, per the plugin error-handling policy.
type Host struct {
	registry *Registry

	mu       sync.Mutex
	disabled map[string]bool
}

// NewHost wraps a Registry whose optimizers have already been loaded.
func NewHost(registry *Registry) *Host {
	return &Host{registry: registry, disabled: make(map[string]bool)}
}

// RunProcess invokes Process on every loaded, non-disabled optimizer, in
// an unspecified order that can differ from call to call. A panicking or erroring optimizer is
// logged and skipped for the rest of this call; it is not disabled across
// frames by RunProcess alone (see Disable).
func (h *Host) RunProcess(payload *Payload) {
	h.run("process", payload, func(o Optimizer, p *Payload) error {
		return o.Process(p)
	})
}

// RunPostProcess invokes PostProcess on every loaded, non-disabled
// optimizer.
func (h *Host) RunPostProcess(payload *Payload) {
	h.run("post_process", payload, func(o Optimizer, p *Payload) error {
		return o.PostProcess(p)
	})
}

func (h *Host) run(hook string, payload *Payload, call func(Optimizer, *Payload) error) {
	for name, opt := range h.registry.Loaded() {
		h.mu.Lock()
		skip := h.disabled[name]
		h.mu.Unlock()
		if skip {
			continue
		}
		h.invoke(name, hook, opt, payload, call)
	}
}

func (h *Host) invoke(name, hook string, opt Optimizer, payload *Payload, call func(Optimizer, *Payload) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("event", "[PLUGIN_PANIC]").Str("plugin", name).Str("hook", hook).
				Interface("recovered", r).Msg("optimizer plugin panicked, bypassing for this frame")
		}
	}()
	if err := call(opt, payload); err != nil {
		log.Warn().Str("event", "[PLUGIN_ERROR]").Str("plugin", name).Str("hook", hook).Err(err).
			Msg("optimizer plugin hook failed, bypassing for this frame")
	}
}

// Disable prevents name from running in future RunProcess/RunPostProcess
// calls, used when a plugin has errored repeatedly within a window.
func (h *Host) Disable(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disabled[name] = true
	log.Warn().Str("event", "[PLUGIN_DISABLED]").Str("plugin", name).Msg("optimizer plugin disabled after repeated errors")
}

// Stats returns GetStats() from every loaded optimizer, keyed by name.
func (h *Host) Stats() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for name, opt := range h.registry.Loaded() {
		out[name] = opt.GetStats()
	}
	return out
}

// Cleanup calls Cleanup() on every loaded optimizer, collecting the first
// error encountered (if any) while still attempting every optimizer.
func (h *Host) Cleanup() error {
	var firstErr error
	for name, opt := range h.registry.Loaded() {
		if err := opt.Cleanup(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("plugin %s: cleanup: %w", name, err)
		}
	}
	return firstErr
}
