// Package metrics collects running counters and latency samples from every
// pipeline stage into a single registry, snapshotted on demand into
// PerformanceMetrics and SystemStatus for the engine's status surface.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// ringBucket mirrors the teacher's histogram bucket (a time-bounded count),
// narrowed here to a single latency sample slot in a fixed-size ring used
// for percentile estimation instead of a full time-series histogram.
type ringBucket struct {
	valid       bool
	durationMS  float64
}

// latencyRing is a fixed-capacity, mutex-protected ring buffer of recent
// latency samples, cheap enough to update on every frame.
type latencyRing struct {
	mu      sync.Mutex
	samples []ringBucket
	next    int
}

func newLatencyRing(capacity int) *latencyRing {
	if capacity <= 0 {
		capacity = 256
	}
	return &latencyRing{samples: make([]ringBucket, capacity)}
}

func (r *latencyRing) add(durationMS float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[r.next] = ringBucket{valid: true, durationMS: durationMS}
	r.next = (r.next + 1) % len(r.samples)
}

// percentile returns the p-th percentile (0-100) of the recorded samples,
// or 0 if no samples have been recorded yet. It copies and sorts on each
// call; callers snapshot infrequently (status reporting), not per-frame.
func (r *latencyRing) percentile(p float64) float64 {
	r.mu.Lock()
	values := make([]float64, 0, len(r.samples))
	for _, b := range r.samples {
		if b.valid {
			values = append(values, b.durationMS)
		}
	}
	r.mu.Unlock()

	if len(values) == 0 {
		return 0
	}
	insertionSort(values)
	idx := int(p / 100 * float64(len(values)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

func insertionSort(values []float64) {
	for i := 1; i < len(values); i++ {
		for j := i; j > 0 && values[j-1] > values[j]; j-- {
			values[j-1], values[j] = values[j], values[j-1]
		}
	}
}

// PerformanceMetrics is a point-in-time snapshot of the pipeline's
// throughput and latency, updated by every stage via a single Registry.
type PerformanceMetrics struct {
	FPS                   float64
	CaptureLatencyMS      float64
	OCRLatencyMS          float64
	TranslationLatencyMS  float64
	OverlayLatencyMS      float64
	EndToEndLatencyMS     float64
	FramesProcessed       int64
	FramesDropped         int64
	TranslationsCompleted int64
	CacheHits             int64
	CacheMisses           int64
	ErrorsLastMinute      int64
}

// SystemStatus is a point-in-time summary combining pipeline state, the
// health monitor's overall status, and the metrics registry's counters.
type SystemStatus struct {
	IsRunning     bool
	CurrentMode   string
	CurrentProfile string
	ActiveEngines []string
	ErrorCount    int64
	LastError     string
	UptimeSeconds float64
	IsHealthy     bool
}

// Registry accumulates counters and latency samples from every stage, read
// back as a PerformanceMetrics snapshot. Safe for concurrent use.
type Registry struct {
	startedAt time.Time

	framesProcessed       int64
	framesDropped         int64
	translationsCompleted int64
	cacheHits             int64
	cacheMisses           int64
	errorsLastMinute      int64

	captureLatency     *latencyRing
	ocrLatency         *latencyRing
	translationLatency *latencyRing
	overlayLatency     *latencyRing
	endToEndLatency    *latencyRing

	mu            sync.Mutex
	lastFrameTime time.Time
	fpsEstimate   float64
}

// NewRegistry constructs a Registry with a ring capacity of samplesPerStage
// per latency channel (<=0 uses a default of 256).
func NewRegistry(samplesPerStage int) *Registry {
	return &Registry{
		startedAt:          time.Now(),
		captureLatency:     newLatencyRing(samplesPerStage),
		ocrLatency:         newLatencyRing(samplesPerStage),
		translationLatency: newLatencyRing(samplesPerStage),
		overlayLatency:     newLatencyRing(samplesPerStage),
		endToEndLatency:    newLatencyRing(samplesPerStage),
	}
}

// RecordCapture records one capture-stage latency sample and ticks the
// frame counter + rolling FPS estimate.
func (r *Registry) RecordCapture(durationMS float64) {
	r.captureLatency.add(durationMS)
	atomic.AddInt64(&r.framesProcessed, 1)
	r.tickFPS()
}

func (r *Registry) tickFPS() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	if !r.lastFrameTime.IsZero() {
		interval := now.Sub(r.lastFrameTime).Seconds()
		if interval > 0 {
			instantaneous := 1 / interval
			if r.fpsEstimate == 0 {
				r.fpsEstimate = instantaneous
			} else {
				r.fpsEstimate = r.fpsEstimate*0.9 + instantaneous*0.1
			}
		}
	}
	r.lastFrameTime = now
}

// RecordFrameDropped increments the dropped-frame counter (queue overflow,
// backpressure).
func (r *Registry) RecordFrameDropped() {
	atomic.AddInt64(&r.framesDropped, 1)
}

// RecordOCR records one OCR-stage latency sample.
func (r *Registry) RecordOCR(durationMS float64) { r.ocrLatency.add(durationMS) }

// RecordTranslation records one translation-stage latency sample and
// increments the completed-translations counter.
func (r *Registry) RecordTranslation(durationMS float64) {
	r.translationLatency.add(durationMS)
	atomic.AddInt64(&r.translationsCompleted, 1)
}

// RecordOverlay records one overlay-render-stage latency sample.
func (r *Registry) RecordOverlay(durationMS float64) { r.overlayLatency.add(durationMS) }

// RecordEndToEnd records the total capture-to-overlay latency for one frame.
func (r *Registry) RecordEndToEnd(durationMS float64) { r.endToEndLatency.add(durationMS) }

// RecordCacheHit/RecordCacheMiss track the translation cache's hit rate.
func (r *Registry) RecordCacheHit()  { atomic.AddInt64(&r.cacheHits, 1) }
func (r *Registry) RecordCacheMiss() { atomic.AddInt64(&r.cacheMisses, 1) }

// RecordError increments the rolling error counter used for
// ErrorsLastMinute. The counter returns to zero only when ResetErrorWindow
// is called; nothing in the engine calls it on a timer.
func (r *Registry) RecordError() { atomic.AddInt64(&r.errorsLastMinute, 1) }

// ResetErrorWindow zeroes the rolling error counter, returning its value
// before the reset.
func (r *Registry) ResetErrorWindow() int64 {
	return atomic.SwapInt64(&r.errorsLastMinute, 0)
}

// Snapshot returns the current PerformanceMetrics, using the p50 latency of
// each ring for the reported per-stage figure.
func (r *Registry) Snapshot() PerformanceMetrics {
	r.mu.Lock()
	fps := r.fpsEstimate
	r.mu.Unlock()

	return PerformanceMetrics{
		FPS:                   fps,
		CaptureLatencyMS:      r.captureLatency.percentile(50),
		OCRLatencyMS:          r.ocrLatency.percentile(50),
		TranslationLatencyMS:  r.translationLatency.percentile(50),
		OverlayLatencyMS:      r.overlayLatency.percentile(50),
		EndToEndLatencyMS:     r.endToEndLatency.percentile(50),
		FramesProcessed:       atomic.LoadInt64(&r.framesProcessed),
		FramesDropped:         atomic.LoadInt64(&r.framesDropped),
		TranslationsCompleted: atomic.LoadInt64(&r.translationsCompleted),
		CacheHits:             atomic.LoadInt64(&r.cacheHits),
		CacheMisses:           atomic.LoadInt64(&r.cacheMisses),
		ErrorsLastMinute:      atomic.LoadInt64(&r.errorsLastMinute),
	}
}

// UptimeSeconds returns the time elapsed since the Registry was created.
func (r *Registry) UptimeSeconds() float64 {
	return time.Since(r.startedAt).Seconds()
}
