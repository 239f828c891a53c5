package capture

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"overlaytranslate/app/queue"
)

// regionRuntime is the live bookkeeping for one running capture loop.
type regionRuntime struct {
	region Region
	queue  *queue.Queue[Result]
	stop   chan struct{}
	done   chan struct{}

	mu    sync.Mutex
	stats Stats
}

// Coordinator runs one independent capture loop per enabled region,
// polling a shared Backend at each region's own frame rate.
type Coordinator struct {
	backend Backend
	fps     float64

	mu       sync.Mutex
	cfg      *Config
	running  bool
	runtimes map[string]*regionRuntime

	onFrameCaptured func(regionID string, f *Frame)
	onCaptureError  func(regionID string, err error)
}

// NewCoordinator constructs a Coordinator. fps is the rate used for
// regions that set no TargetFPS; fps <= 0 defaults to 15, matching the
// configured default capture rate.
func NewCoordinator(backend Backend, cfg *Config, fps float64) *Coordinator {
	if cfg == nil {
		cfg = NewConfig()
	}
	if fps <= 0 {
		fps = 15
	}
	return &Coordinator{
		backend:  backend,
		fps:      fps,
		cfg:      cfg,
		runtimes: make(map[string]*regionRuntime),
	}
}

// OnFrameCaptured registers a callback invoked on every successful capture.
func (c *Coordinator) OnFrameCaptured(fn func(regionID string, f *Frame)) {
	c.mu.Lock()
	c.onFrameCaptured = fn
	c.mu.Unlock()
}

// OnCaptureError registers a callback invoked whenever a region's capture
// attempt fails.
func (c *Coordinator) OnCaptureError(fn func(regionID string, err error)) {
	c.mu.Lock()
	c.onCaptureError = fn
	c.mu.Unlock()
}

// Start launches a capture loop for every currently-enabled region.
// Returns false if already running or if there are no enabled regions.
func (c *Coordinator) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		log.Warn().Str("event", "[CAPTURE_ALREADY_RUNNING]").Msg("multi-region capture already running")
		return false
	}
	enabled := c.cfg.EnabledRegions()
	if len(enabled) == 0 {
		log.Error().Str("event", "[CAPTURE_NO_REGIONS]").Msg("no enabled regions to capture")
		return false
	}
	c.running = true
	for _, r := range enabled {
		c.startRegionLocked(r)
	}
	log.Info().Str("event", "[CAPTURE_STARTED]").Int("regions", len(enabled)).Msg("started multi-region capture")
	return true
}

// Stop signals every running loop and waits (bounded) for them to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	runtimes := make([]*regionRuntime, 0, len(c.runtimes))
	for _, rt := range c.runtimes {
		runtimes = append(runtimes, rt)
	}
	c.mu.Unlock()

	for _, rt := range runtimes {
		close(rt.stop)
	}
	for _, rt := range runtimes {
		select {
		case <-rt.done:
		case <-time.After(2 * time.Second):
			log.Warn().Str("event", "[CAPTURE_STOP_TIMEOUT]").Str("region", rt.region.RegionID).Msg("capture loop did not stop in time")
		}
	}

	c.mu.Lock()
	c.runtimes = make(map[string]*regionRuntime)
	c.mu.Unlock()
	log.Info().Str("event", "[CAPTURE_STOPPED]").Msg("stopped multi-region capture")
}

// startRegionLocked must be called with c.mu held.
func (c *Coordinator) startRegionLocked(region Region) {
	rt := &regionRuntime{
		region: region,
		queue:  queue.New[Result]("capture-"+region.RegionID, 10, queue.DropNewest),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	c.runtimes[region.RegionID] = rt
	go c.captureLoop(rt)
	log.Info().Str("event", "[CAPTURE_REGION_STARTED]").Str("region", region.Name).Msg("started capture loop for region")
}

func (c *Coordinator) captureLoop(rt *regionRuntime) {
	defer close(rt.done)
	fps := c.fps
	if rt.region.TargetFPS > 0 {
		fps = rt.region.TargetFPS
	}
	interval := time.Duration(float64(time.Second) / fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stop:
			log.Info().Str("event", "[CAPTURE_REGION_STOPPED]").Str("region", rt.region.Name).Msg("capture loop stopped")
			return
		case <-ticker.C:
			c.captureOnce(rt)
		}
	}
}

func (c *Coordinator) captureOnce(rt *regionRuntime) {
	start := time.Now()
	frame, err := c.backend.CaptureFrame(rt.region)
	elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)

	rt.mu.Lock()
	if err != nil || frame == nil {
		rt.stats.FramesFailed++
		rt.mu.Unlock()
		log.Error().Str("event", "[CAPTURE_REGION_ERROR]").Str("region", rt.region.Name).Err(err).Msg("region capture failed")
		c.mu.Lock()
		cb := c.onCaptureError
		c.mu.Unlock()
		if cb != nil {
			if err == nil {
				err = ErrCaptureFailed
			}
			cb(rt.region.RegionID, err)
		}
		return
	}

	count := rt.stats.FramesCaptured + 1
	rt.stats.AverageCaptureTimeMS = (rt.stats.AverageCaptureTimeMS*float64(rt.stats.FramesCaptured) + elapsedMS) / float64(count)
	rt.stats.FramesCaptured = count
	rt.stats.LastCaptureTime = time.Now()
	rt.mu.Unlock()

	rt.queue.Put(Result{RegionID: rt.region.RegionID, Frame: frame, Success: true, CaptureTimeMS: elapsedMS})

	c.mu.Lock()
	cb := c.onFrameCaptured
	c.mu.Unlock()
	if cb != nil {
		cb(rt.region.RegionID, frame)
	}
}

// LatestFrames drains at most one pending result from every running
// region's queue, returning whichever were ready.
func (c *Coordinator) LatestFrames() []Result {
	c.mu.Lock()
	runtimes := make([]*regionRuntime, 0, len(c.runtimes))
	for _, rt := range c.runtimes {
		runtimes = append(runtimes, rt)
	}
	c.mu.Unlock()

	var out []Result
	for _, rt := range runtimes {
		if r, ok := rt.queue.TryGet(); ok {
			out = append(out, r)
		}
	}
	return out
}

// AddRegion registers a new region; if the coordinator is running and the
// region is enabled, its capture loop starts immediately. Returns an
// error if the region_id is already registered.
func (c *Coordinator) AddRegion(region Region) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.cfg.AddRegion(region); err != nil {
		return err
	}
	if c.running && region.Enabled {
		c.startRegionLocked(region)
	}
	return nil
}

// RemoveRegion stops (if running) and deletes a region.
func (c *Coordinator) RemoveRegion(regionID string) {
	c.mu.Lock()
	rt, running := c.runtimes[regionID]
	delete(c.runtimes, regionID)
	c.cfg.RemoveRegion(regionID)
	c.mu.Unlock()

	if running {
		close(rt.stop)
		select {
		case <-rt.done:
		case <-time.After(time.Second):
		}
	}
}

// EnableRegion enables a region in the config and starts its loop if the
// coordinator is currently running.
func (c *Coordinator) EnableRegion(regionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.SetEnabled(regionID, true)
	if c.running {
		if _, alreadyRunning := c.runtimes[regionID]; !alreadyRunning {
			if r, ok := c.cfg.Region(regionID); ok {
				c.startRegionLocked(*r)
			}
		}
	}
}

// DisableRegion disables a region and stops its loop.
func (c *Coordinator) DisableRegion(regionID string) {
	c.mu.Lock()
	c.cfg.SetEnabled(regionID, false)
	rt, running := c.runtimes[regionID]
	delete(c.runtimes, regionID)
	c.mu.Unlock()
	if running {
		close(rt.stop)
	}
}

// UpdateConfig replaces the active configuration, restarting capture if it
// was running.
func (c *Coordinator) UpdateConfig(cfg *Config) {
	c.mu.Lock()
	wasRunning := c.running
	c.mu.Unlock()

	if wasRunning {
		c.Stop()
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	if wasRunning {
		c.Start()
	}
}

// RegionStats returns capture statistics for a single region.
func (c *Coordinator) RegionStats(regionID string) (Stats, bool) {
	c.mu.Lock()
	rt, ok := c.runtimes[regionID]
	c.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.stats, true
}

// AllStats returns capture statistics for every running region.
func (c *Coordinator) AllStats() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stats, len(c.runtimes))
	for id, rt := range c.runtimes {
		rt.mu.Lock()
		out[id] = rt.stats
		rt.mu.Unlock()
	}
	return out
}

// ErrCaptureFailed is used when a Backend returns a nil frame with a nil
// error, a contract violation we still need to surface as a failure.
var ErrCaptureFailed = captureFailedErr{}

type captureFailedErr struct{}

func (captureFailedErr) Error() string { return "capture: backend returned no frame" }
