// Package engine composes the capture, pipeline, error-handling, health,
// caching, dictionary, overlay tracking, validation, optimizer plugin, and
// metrics components into one running screen-translation engine.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"overlaytranslate/app/cache"
	"overlaytranslate/app/capture"
	"overlaytranslate/app/config"
	"overlaytranslate/app/dictionary"
	"overlaytranslate/app/engineclient"
	"overlaytranslate/app/errs"
	"overlaytranslate/app/health"
	"overlaytranslate/app/metrics"
	"overlaytranslate/app/overlay"
	"overlaytranslate/app/pipeline"
	"overlaytranslate/app/plugin"
	"overlaytranslate/app/quality"
	"overlaytranslate/app/types"
	"overlaytranslate/app/validate"
	"overlaytranslate/app/worker"
)

// OverlayRenderer is the out-of-process surface that actually draws
// translated text on screen; the engine never renders pixels itself.
type OverlayRenderer interface {
	ShowOverlay(overlay types.TrackedOverlay) error
	HideOverlay(overlayID string) error
}

// Engine is the running instance of the translation pipeline for one set
// of capture regions.
type Engine struct {
	cfg config.Config

	capture     *capture.Coordinator
	pipe        *pipeline.Engine
	errHandler  *errs.Handler
	health      *health.Monitor
	metrics     *metrics.Registry
	validator   *validate.Validator
	trackerByRegion map[string]*overlay.Tracker
	trackerMu   sync.Mutex
	translationCache *cache.Cache
	dictStore   *dictionary.Store
	qualityFilter *quality.Filter
	pluginRegistry *plugin.Registry
	pluginHost  *plugin.Host
	client      engineclient.Client
	renderer    OverlayRenderer

	translationWorkers *worker.Pool

	mu            sync.Mutex
	running       bool
	lastFrameByRegion map[string]*types.Frame
	cancel        context.CancelFunc
}

// Options bundles the collaborators an Engine needs beyond its own
// configuration; all fields are required except PluginsDir, Renderer and
// DictionaryDir.
type Options struct {
	Config       config.Config
	CaptureBackend capture.Backend
	Client       engineclient.Client
	Renderer     OverlayRenderer
	PluginsDir   string

	// DictionaryDir overrides the bilingual dictionary store's directory.
	// Defaults to "dictionary" in the working directory when empty.
	DictionaryDir string
}

// New constructs an Engine wired from cfg and the given collaborators. It
// does not start capturing until Start is called.
func New(opts Options) (*Engine, error) {
	regionConfig := capture.NewConfig()

	coordinator := capture.NewCoordinator(opts.CaptureBackend, regionConfig, opts.Config.Capture.FPS)

	errHandler := errs.NewHandler(500)
	for _, component := range []string{"capture", "ocr", "translation", "overlay"} {
		errHandler.RegisterBreaker(component, errs.DefaultBreakerConfig())
	}

	dictDir := opts.DictionaryDir
	if dictDir == "" {
		dictDir = "dictionary"
	}
	dictStore, err := dictionary.NewStore(dictDir, opts.Config.Translation.DictionaryAutoFlushSize)
	if err != nil {
		return nil, fmt.Errorf("engine: opening dictionary store: %w", err)
	}

	translationCache := cache.New(opts.Config.Translation.CacheMaxEntries)

	qualityMode := quality.Mode(opts.Config.Translation.QualityFilterMode)
	if !opts.Config.Translation.QualityFilterEnabled {
		qualityMode = quality.ModeDisabled
	}
	qualityFilter := quality.NewFilterForMode(qualityMode)

	validatorCfg := validate.DefaultConfig()
	validatorCfg.ConfidenceThreshold = opts.Config.OCR.ConfidenceThreshold
	validator := validate.New(validatorCfg)

	pluginRegistry := plugin.NewRegistry(nil)
	if opts.PluginsDir != "" {
		if err := pluginRegistry.Discover(opts.PluginsDir); err != nil {
			log.Warn().Str("event", "[PLUGIN_DISCOVERY_FAILED]").Err(err).Msg("continuing without discovered optimizer plugins")
		}
		// config.PluginConfig carries only enable/path today; per-plugin
		// setting overrides come solely from each manifest's own defaults.
		overrides := make(map[string]map[string]any)
		if err := pluginRegistry.LoadAll(opts.Config.Pipeline.EnableOptimizerPlugins, overrides); err != nil {
			log.Warn().Str("event", "[PLUGIN_LOAD_FAILED]").Err(err).Msg("one or more optimizer plugins failed to load")
		}
	}
	pluginHost := plugin.NewHost(pluginRegistry)

	monitor := health.NewMonitor(5 * time.Second)

	e := &Engine{
		cfg:               opts.Config,
		capture:           coordinator,
		errHandler:        errHandler,
		health:            monitor,
		metrics:           metrics.NewRegistry(256),
		validator:         validator,
		trackerByRegion:   make(map[string]*overlay.Tracker),
		translationCache:  translationCache,
		dictStore:         dictStore,
		qualityFilter:     qualityFilter,
		pluginRegistry:    pluginRegistry,
		pluginHost:        pluginHost,
		client:            opts.Client,
		renderer:          opts.Renderer,
		lastFrameByRegion: make(map[string]*types.Frame),
	}

	if opts.Config.Pipeline.ParallelTranslation.Enabled {
		poolCfg := worker.DefaultPoolConfig("translation")
		poolCfg.InitialWorkers = opts.Config.Pipeline.ParallelTranslation.Workers
		poolCfg.MinWorkers = 1
		poolCfg.MaxWorkers = opts.Config.Pipeline.ParallelTranslation.Workers * 2
		e.translationWorkers = worker.NewPool(poolCfg)
	}

	e.pipe = e.buildPipeline()
	e.registerHealthChecks()
	coordinator.OnFrameCaptured(e.handleFrame)
	coordinator.OnCaptureError(e.handleCaptureError)

	return e, nil
}

// AddRegion exposes the underlying capture coordinator's region management
// so callers can configure capture targets before or after Start.
func (e *Engine) AddRegion(region types.CaptureRegion) error {
	e.trackerMu.Lock()
	if _, ok := e.trackerByRegion[region.RegionID]; !ok {
		e.trackerByRegion[region.RegionID] = overlay.NewTracker(
			time.Duration(e.cfg.Overlay.DisappearTimeoutSec * float64(time.Second)))
	}
	e.trackerMu.Unlock()
	return e.capture.AddRegion(region)
}

// Start begins capturing and processing frames for every enabled region.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("engine: already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.mu.Unlock()

	e.health.Start(runCtx)
	if !e.capture.Start() {
		e.Stop()
		return fmt.Errorf("engine: capture coordinator failed to start, no enabled regions")
	}
	log.Info().Str("event", "[ENGINE_STARTED]").Msg("translation engine started")
	return nil
}

// Stop halts capture, the health monitor, and flushes the dictionary.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.capture.Stop()
	e.health.Stop()
	if e.translationWorkers != nil {
		e.translationWorkers.Stop(5 * time.Second)
	}

	e.trackerMu.Lock()
	trackers := make([]*overlay.Tracker, 0, len(e.trackerByRegion))
	for _, tracker := range e.trackerByRegion {
		trackers = append(trackers, tracker)
	}
	e.trackerMu.Unlock()
	for _, tracker := range trackers {
		for _, active := range tracker.Active() {
			if e.renderer != nil {
				if err := e.renderer.HideOverlay(active.ID); err != nil {
					log.Warn().Str("event", "[OVERLAY_HIDE_FAILED]").Str("overlay_id", active.ID).Err(err).Msg("renderer failed to hide overlay on shutdown")
				}
			}
		}
		tracker.Clear()
	}

	if err := e.dictStore.Flush(); err != nil {
		log.Error().Str("event", "[DICTIONARY_FLUSH_FAILED]").Err(err).Msg("failed to flush dictionary on shutdown")
	}
	if err := e.pluginHost.Cleanup(); err != nil {
		log.Warn().Str("event", "[PLUGIN_CLEANUP_FAILED]").Err(err).Msg("one or more optimizer plugins failed to clean up")
	}
	log.Info().Str("event", "[ENGINE_STOPPED]").Msg("translation engine stopped")
}

// Status returns a point-in-time summary of the engine's health and
// throughput.
func (e *Engine) Status() metrics.SystemStatus {
	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	summary := e.errHandler.GetSummary()
	lastError := ""
	if recent := e.errHandler.RecentErrors(1); len(recent) > 0 {
		lastError = recent[0].Message
	}

	return metrics.SystemStatus{
		IsRunning:      running,
		CurrentMode:    string(e.cfg.Performance.RuntimeMode),
		CurrentProfile: string(e.cfg.Performance.Profile),
		ActiveEngines:  []string{"ocr", "translation"},
		ErrorCount:     int64(summary.TotalErrors),
		LastError:      lastError,
		UptimeSeconds:  e.metrics.UptimeSeconds(),
		IsHealthy:      e.health.OverallStatus() == health.StatusHealthy,
	}
}

// Metrics returns the current performance metrics snapshot.
func (e *Engine) Metrics() metrics.PerformanceMetrics {
	return e.metrics.Snapshot()
}
