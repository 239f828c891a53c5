package plugin

import "overlaytranslate/app/types"

// Payload is the per-frame working state optimizers read from and write
// back into, threaded through a single frame's pipeline pass.
type Payload struct {
	RegionID      string
	Frame         *types.Frame
	PreviousFrame *types.Frame

	TextBlocks   []types.TextBlock
	Translations []types.Translation

	// SkipProcessing, when set by an optimizer, causes the pipeline to
	// retain existing overlays and skip the rest of the frame's work.
	SkipProcessing bool
	// SkipOCR, when set, causes the pipeline to reuse the previous
	// frame's text blocks rather than invoking the OCR engine, shifted
	// by OverlayOffsetDX/DY.
	SkipOCR         bool
	OverlayOffsetDX int
	OverlayOffsetDY int

	// Extra carries optimizer-specific scratch data (e.g. the
	// translation_cache optimizer's cache hits and misses) that doesn't
	// warrant a dedicated field.
	Extra map[string]any
}

// Optimizer is the hook contract every plugin exposes. A hook may be a
// no-op: Process and PostProcess are allowed to return the payload
// (implicitly, by reference) unmodified.
type Optimizer interface {
	// Process runs before the stage it optimizes and may set a skip_*
	// flag on payload that short-circuits downstream work.
	Process(payload *Payload) error
	// PostProcess runs after the stage it optimizes, observing results
	// (e.g. a cache write-back).
	PostProcess(payload *Payload) error
	// GetStats returns the optimizer's running counters for the metrics
	// snapshot.
	GetStats() map[string]any
	// Cleanup releases any resources held by the optimizer.
	Cleanup() error
}

// Factory constructs an Optimizer from its manifest's effective settings.
// Built-in roles register a Factory under their manifest Name in the
// default FactoryRegistry.
type Factory func(settings map[string]any) (Optimizer, error)
