package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"overlaytranslate/app/capture"
	"overlaytranslate/app/errs"
	"overlaytranslate/app/health"
	"overlaytranslate/app/overlay"
	"overlaytranslate/app/pipeline"
	"overlaytranslate/app/plugin"
	"overlaytranslate/app/types"
)

// frameContext threads one captured frame through the preprocess, OCR,
// validate, translate, and overlay stages. A single *frameContext is
// passed as the pipeline's data between every stage.
type frameContext struct {
	regionID         string
	frame            *types.Frame
	prev             *types.Frame
	tracker          *overlay.Tracker
	blocks           []types.TextBlock
	translations     []types.Translation
	optimizerPayload *plugin.Payload
}

// buildPipeline registers the fixed Preprocess->OCR->Validate->Translate->
// Overlay stage chain. Capture itself runs outside the pipeline engine
// proper: the capture coordinator drives it and hands frames to
// handleFrame, which seeds the chain.
func (e *Engine) buildPipeline() *pipeline.Engine {
	pipe := pipeline.NewEngine()

	pipe.RegisterStage(pipeline.StageConfig{
		Name: "preprocess", Required: true, Enabled: true, Timeout: 2 * time.Second,
		Process: e.stagePreprocess,
	})
	pipe.RegisterStage(pipeline.StageConfig{
		Name: "ocr", Required: true, Enabled: true, Timeout: 5 * time.Second,
		Dependencies: []string{"preprocess"}, Process: e.stageOCR,
	})
	pipe.RegisterStage(pipeline.StageConfig{
		Name: "validate", Required: false, Enabled: true, Timeout: 1 * time.Second,
		Dependencies: []string{"ocr"}, Process: e.stageValidate,
	})
	pipe.RegisterStage(pipeline.StageConfig{
		Name: "translate", Required: true, Enabled: true, Timeout: 5 * time.Second,
		Dependencies: []string{"validate"}, Process: e.stageTranslate,
	})
	pipe.RegisterStage(pipeline.StageConfig{
		Name: "overlay", Required: false, Enabled: true, Timeout: 1 * time.Second,
		Dependencies: []string{"translate"}, Process: e.stageOverlay,
	})

	return pipe
}

// handleFrame is the capture coordinator's OnFrameCaptured callback: it
// masks active overlay regions out of the frame to avoid re-recognizing
// already-translated text, runs the preprocessing optimizer hooks, and
// then drives the frame through the pipeline.
func (e *Engine) handleFrame(regionID string, f *capture.Frame) {
	start := time.Now()
	frame := f

	e.trackerMu.Lock()
	tracker, ok := e.trackerByRegion[regionID]
	if !ok {
		tracker = overlay.NewTracker(time.Duration(e.cfg.Overlay.DisappearTimeoutSec * float64(time.Second)))
		e.trackerByRegion[regionID] = tracker
	}
	e.trackerMu.Unlock()

	if e.cfg.Overlay.Enabled {
		overlay.MaskFrame(frame, tracker.ActiveRectangles())
	}

	e.mu.Lock()
	prev := e.lastFrameByRegion[regionID]
	e.lastFrameByRegion[regionID] = frame
	e.mu.Unlock()

	fc := &frameContext{
		regionID: regionID,
		frame:    frame,
		prev:     prev,
		tracker:  tracker,
		optimizerPayload: &plugin.Payload{
			RegionID:      regionID,
			Frame:         frame,
			PreviousFrame: prev,
			Extra:         make(map[string]any),
		},
	}

	e.pluginHost.RunProcess(fc.optimizerPayload)
	if fc.optimizerPayload.SkipProcessing {
		tracker.RefreshActive(time.Now())
		e.metrics.RecordCapture(0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e.pipe.Execute(ctx, fc)
	e.pluginHost.RunPostProcess(fc.optimizerPayload)

	for _, dismissed := range tracker.CheckDisappeared(time.Now()) {
		if e.renderer != nil {
			if err := e.renderer.HideOverlay(dismissed.ID); err != nil {
				log.Warn().Str("event", "[OVERLAY_HIDE_FAILED]").Str("overlay_id", dismissed.ID).Err(err).Msg("renderer failed to hide overlay")
			}
		}
	}

	e.metrics.RecordEndToEnd(float64(time.Since(start).Milliseconds()))
}

func (e *Engine) handleCaptureError(regionID string, err error) {
	e.metrics.RecordError()
	if breaker, ok := e.errHandler.Breaker("capture"); ok {
		_ = breaker.Call(func() error { return err })
	}
	e.errHandler.HandleError("capture", "CaptureError", err, errs.SeverityMedium, map[string]any{"region_id": regionID})
}

func (e *Engine) registerHealthChecks() {
	e.health.Register(health.CheckConfig{
		Name:             "engine_client",
		Fn:               func(ctx context.Context) error { return e.checkEngineReady() },
		Interval:         10 * time.Second,
		Timeout:          3 * time.Second,
		FailureThreshold: 3,
		RecoveryCooldown: 60 * time.Second,
	})
	e.health.Register(health.CheckConfig{
		Name:             "translation_cache",
		Fn:               func(ctx context.Context) error { return e.checkCacheHealthy() },
		Interval:         30 * time.Second,
		Timeout:          2 * time.Second,
		FailureThreshold: 3,
		RecoveryCooldown: 60 * time.Second,
	})
}

func (e *Engine) checkEngineReady() error {
	if e.client == nil || !e.client.IsReady() {
		return fmt.Errorf("engine client not ready")
	}
	return nil
}

func (e *Engine) checkCacheHealthy() error {
	stats := e.translationCache.GetStats()
	if stats.UsagePercent >= 100 {
		log.Warn().Str("event", "[CACHE_AT_CAPACITY]").Float64("usage_percent", stats.UsagePercent).Msg("translation cache at capacity")
	}
	return nil
}
