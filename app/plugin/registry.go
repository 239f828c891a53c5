package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// FactoryRegistry maps a recognized optimizer role name (matching
// Manifest.Name, e.g. "frame_skip") to the constructor that builds it.
// Built-in roles are registered in builtins.go's init.
type FactoryRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// DefaultFactories is the process-wide registry of built-in optimizer
// constructors, populated by builtins.go.
var DefaultFactories = &FactoryRegistry{factories: make(map[string]Factory)}

// Register adds a Factory under name. Intended to be called from package
// init functions.
func (r *FactoryRegistry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *FactoryRegistry) lookup(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Registry is an instance-owned collection of discovered plugin
// manifests and their loaded Optimizer instances. Unlike the teacher's
// registry, Registry is never a package-level singleton — the engine
// owns one Registry per running instance.
type Registry struct {
	factories *FactoryRegistry

	mu        sync.RWMutex
	manifests []Manifest
	loaded    map[string]Optimizer // manifest Name -> instance
}

// NewRegistry constructs a Registry backed by the given FactoryRegistry.
// A nil factories uses DefaultFactories.
func NewRegistry(factories *FactoryRegistry) *Registry {
	if factories == nil {
		factories = DefaultFactories
	}
	return &Registry{factories: factories, loaded: make(map[string]Optimizer)}
}

// Discover globs pluginsDir for plugin.yml manifests (one per plugin
// subdirectory, arbitrarily nested) and parses each, replacing the
// teacher's plain filepath.Join/os.Stat walk with doublestar glob-based
// discovery.
func (r *Registry) Discover(pluginsDir string) error {
	pattern := filepath.Join(pluginsDir, "**/plugin.yml")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return fmt.Errorf("plugin: globbing %s: %w", pattern, err)
	}
	sort.Strings(matches)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.manifests = r.manifests[:0]

	for _, path := range matches {
		m, err := readManifest(path)
		if err != nil {
			log.Warn().Str("event", "[PLUGIN_MANIFEST_INVALID]").Str("path", path).Err(err).Msg("skipping invalid plugin manifest")
			continue
		}
		r.manifests = append(r.manifests, *m)
	}
	return nil
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadAll constructs an Optimizer for every discovered manifest whose role
// is recognized by the Registry's FactoryRegistry, honoring essential/
// enabled semantics: essential plugins always load; optional plugins load
// only when loadAllOptional is true and the manifest itself is enabled.
func (r *Registry) LoadAll(loadAllOptional bool, overrides map[string]map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.loaded = make(map[string]Optimizer)
	var loadErrors []string

	for _, m := range r.manifests {
		if !m.Essential {
			if !loadAllOptional || !m.Enabled {
				continue
			}
		}

		factory, ok := r.factories.lookup(m.Name)
		if !ok {
			loadErrors = append(loadErrors, fmt.Sprintf("plugin %s: no registered implementation for role", m.Name))
			continue
		}

		settings := m.EffectiveSettings(overrides[m.Name])
		opt, err := factory(settings)
		if err != nil {
			loadErrors = append(loadErrors, fmt.Sprintf("plugin %s: %v", m.Name, err))
			continue
		}
		r.loaded[m.Name] = opt
		log.Info().Str("event", "[PLUGIN_LOADED]").Str("plugin", m.Name).Bool("essential", m.Essential).Msg("optimizer plugin loaded")
	}

	if len(loadErrors) > 0 {
		return fmt.Errorf("plugin loading errors:\n  - %s", strings.Join(loadErrors, "\n  - "))
	}
	return nil
}

// Loaded returns a copy of the currently loaded optimizer instances, keyed
// by manifest Name; the map carries no ordering.
func (r *Registry) Loaded() map[string]Optimizer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Optimizer, len(r.loaded))
	for k, v := range r.loaded {
		out[k] = v
	}
	return out
}

// Manifests returns the manifests discovered by the last Discover call.
func (r *Registry) Manifests() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Manifest, len(r.manifests))
	copy(out, r.manifests)
	return out
}

// ManifestNames returns the Name of every discovered manifest, essential
// ones first, for display in a settings listing.
func (r *Registry) ManifestNames() []string {
	manifests := r.Manifests()
	essential, optional := lo.FilterReject(manifests, func(m Manifest, _ int) bool {
		return m.Essential
	})
	ordered := append(essential, optional...)
	return lo.Map(ordered, func(m Manifest, _ int) string {
		return m.Name
	})
}
