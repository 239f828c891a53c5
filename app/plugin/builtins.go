package plugin

import (
	"strings"
	"sync"
	"sync/atomic"

	"overlaytranslate/app/cache"
	"overlaytranslate/app/dictionary"
	"overlaytranslate/app/types"
)

func init() {
	DefaultFactories.Register("frame_skip", newFrameSkipOptimizer)
	DefaultFactories.Register("motion_tracker", newMotionTrackerOptimizer)
	DefaultFactories.Register("translation_cache", newTranslationCacheOptimizer)
	DefaultFactories.Register("text_block_merger", newTextBlockMergerOptimizer)
	DefaultFactories.Register("spell_corrector", newSpellCorrectorOptimizer)
	DefaultFactories.Register("async_pipeline", newAsyncPipelineOptimizer)
	DefaultFactories.Register("parallel_translation", newParallelTranslationOptimizer)
}

func settingFloat(settings map[string]any, key string, def float64) float64 {
	v, ok := settings[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return def
}

func settingInt(settings map[string]any, key string, def int) int {
	v, ok := settings[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return def
}

func settingString(settings map[string]any, key, def string) string {
	v, ok := settings[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

// --- frame_skip -------------------------------------------------------

// frameSkipOptimizer compares the current frame to the previous one via
// perceptual similarity; above threshold it marks the frame as
// short-circuitable so the pipeline retains existing overlays.
type frameSkipOptimizer struct {
	threshold float64
	skipped   int64
	compared  int64
}

func newFrameSkipOptimizer(settings map[string]any) (Optimizer, error) {
	return &frameSkipOptimizer{threshold: settingFloat(settings, "threshold", 0.98)}, nil
}

func (o *frameSkipOptimizer) Process(p *Payload) error {
	if p.Frame == nil || p.PreviousFrame == nil {
		return nil
	}
	atomic.AddInt64(&o.compared, 1)
	similarity := perceptualSimilarity(p.PreviousFrame, p.Frame)
	if similarity >= o.threshold {
		p.SkipProcessing = true
		atomic.AddInt64(&o.skipped, 1)
	}
	return nil
}

func (o *frameSkipOptimizer) PostProcess(p *Payload) error { return nil }

func (o *frameSkipOptimizer) GetStats() map[string]any {
	return map[string]any{
		"threshold":      o.threshold,
		"frames_compared": atomic.LoadInt64(&o.compared),
		"frames_skipped":  atomic.LoadInt64(&o.skipped),
	}
}

func (o *frameSkipOptimizer) Cleanup() error { return nil }

// --- motion_tracker -----------------------------------------------------

// motionTrackerOptimizer estimates a coarse translation vector between
// frames via block matching on a downsampled thumbnail. When motion is
// small but nonzero it assumes OCR output is unlikely to have changed and
// asks the pipeline to shift existing overlays instead of re-running OCR.
type motionTrackerOptimizer struct {
	maxShiftPx    int
	motionThresholdPx int
	estimates     int64
}

func newMotionTrackerOptimizer(settings map[string]any) (Optimizer, error) {
	return &motionTrackerOptimizer{
		maxShiftPx:        settingInt(settings, "max_shift_px", 16),
		motionThresholdPx: settingInt(settings, "motion_threshold_px", 1),
	}, nil
}

func (o *motionTrackerOptimizer) Process(p *Payload) error {
	if p.Frame == nil || p.PreviousFrame == nil {
		return nil
	}
	dx, dy := estimateMotion(p.PreviousFrame, p.Frame, o.maxShiftPx)
	atomic.AddInt64(&o.estimates, 1)
	if dx == 0 && dy == 0 {
		return nil
	}
	if abs(dx) <= o.maxShiftPx && abs(dy) <= o.maxShiftPx {
		p.SkipOCR = true
		p.OverlayOffsetDX = dx
		p.OverlayOffsetDY = dy
	}
	return nil
}

func (o *motionTrackerOptimizer) PostProcess(p *Payload) error { return nil }

func (o *motionTrackerOptimizer) GetStats() map[string]any {
	return map[string]any{"estimates": atomic.LoadInt64(&o.estimates)}
}

func (o *motionTrackerOptimizer) Cleanup() error { return nil }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// --- translation_cache --------------------------------------------------

// translationCacheOptimizer wraps the in-memory translation cache around
// the translation stage: Process fills in cached translations and marks
// which blocks still need the engine; PostProcess writes novel
// translations back.
type translationCacheOptimizer struct {
	c          *cache.Cache
	sourceLang string
	targetLang string
}

func newTranslationCacheOptimizer(settings map[string]any) (Optimizer, error) {
	maxEntries := settingInt(settings, "max_entries", cache.DefaultMaxEntries)
	return &translationCacheOptimizer{
		c:          cache.New(maxEntries),
		sourceLang: settingString(settings, "source_language", "en"),
		targetLang: settingString(settings, "target_language", "de"),
	}, nil
}

func (o *translationCacheOptimizer) Process(p *Payload) error {
	if len(p.Extra) == 0 {
		p.Extra = make(map[string]any)
	}
	var uncached []types.TextBlock
	hits := make([]types.Translation, 0, len(p.TextBlocks))

	for _, block := range p.TextBlocks {
		key := cache.Key(normalize(block.Text), o.sourceLang, o.targetLang)
		entry, ok := o.c.Get(key)
		if !ok {
			uncached = append(uncached, block)
			continue
		}
		hits = append(hits, types.Translation{
			OriginalText:   block.Text,
			TranslatedText: entry.TranslatedText,
			SourceLang:     o.sourceLang,
			TargetLang:     o.targetLang,
			Position:       block.Position,
			Confidence:     entry.Confidence,
			Engine:         entry.EngineID,
		})
	}

	p.Extra["translation_cache_hits"] = hits
	p.Extra["translation_cache_misses"] = uncached
	return nil
}

// PostProcess writes every novel translation the stage produced back
// into the cache, keyed the same way Process looked them up.
func (o *translationCacheOptimizer) PostProcess(p *Payload) error {
	for _, tr := range p.Translations {
		key := cache.Key(normalize(tr.OriginalText), tr.SourceLang, tr.TargetLang)
		o.c.Put(key, &cache.Entry{
			SourceText:     tr.OriginalText,
			TranslatedText: tr.TranslatedText,
			SourceLang:     tr.SourceLang,
			TargetLang:     tr.TargetLang,
			Confidence:     tr.Confidence,
			EngineID:       tr.Engine,
		})
	}
	return nil
}

func (o *translationCacheOptimizer) GetStats() map[string]any {
	stats := o.c.GetStats()
	return map[string]any{
		"entries":   stats.TotalEntries,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"hit_rate":  stats.HitRate,
	}
}

func (o *translationCacheOptimizer) Cleanup() error { return nil }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// --- text_block_merger ---------------------------------------------------

// textBlockMergerOptimizer coalesces adjacent OCR blocks whose bounding
// boxes fall within horizontal/vertical thresholds into one block.
type textBlockMergerOptimizer struct {
	maxHGapPx int
	maxVGapPx int
	merges    int64
}

func newTextBlockMergerOptimizer(settings map[string]any) (Optimizer, error) {
	return &textBlockMergerOptimizer{
		maxHGapPx: settingInt(settings, "max_horizontal_gap_px", 15),
		maxVGapPx: settingInt(settings, "max_vertical_gap_px", 5),
	}, nil
}

func (o *textBlockMergerOptimizer) Process(p *Payload) error {
	if len(p.TextBlocks) < 2 {
		return nil
	}
	merged := make([]types.TextBlock, 0, len(p.TextBlocks))
	used := make([]bool, len(p.TextBlocks))

	for i := range p.TextBlocks {
		if used[i] {
			continue
		}
		current := p.TextBlocks[i]
		for j := i + 1; j < len(p.TextBlocks); j++ {
			if used[j] {
				continue
			}
			if o.adjacent(current.Position, p.TextBlocks[j].Position) {
				current = mergeBlocks(current, p.TextBlocks[j])
				used[j] = true
				atomic.AddInt64(&o.merges, 1)
			}
		}
		merged = append(merged, current)
	}
	p.TextBlocks = merged
	return nil
}

func (o *textBlockMergerOptimizer) adjacent(a, b types.Rectangle) bool {
	vGap := b.Y - (a.Y + a.Height)
	if vGap < 0 {
		vGap = a.Y - (b.Y + b.Height)
	}
	hGap := b.X - (a.X + a.Width)
	if hGap < 0 {
		hGap = a.X - (b.X + b.Width)
	}
	sameRow := abs(a.Y-b.Y) <= o.maxVGapPx
	return sameRow && hGap <= o.maxHGapPx
}

func mergeBlocks(a, b types.TextBlock) types.TextBlock {
	x1 := min(a.Position.X, b.Position.X)
	y1 := min(a.Position.Y, b.Position.Y)
	x2 := max(a.Position.X+a.Position.Width, b.Position.X+b.Position.Width)
	y2 := max(a.Position.Y+a.Position.Height, b.Position.Y+b.Position.Height)

	confidence := a.Confidence
	if b.Confidence < confidence {
		confidence = b.Confidence
	}
	return types.TextBlock{
		Text:       a.Text + " " + b.Text,
		Position:   types.Rectangle{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1},
		Confidence: confidence,
		Language:   a.Language,
	}
}

func (o *textBlockMergerOptimizer) PostProcess(p *Payload) error { return nil }

func (o *textBlockMergerOptimizer) GetStats() map[string]any {
	return map[string]any{"merges": atomic.LoadInt64(&o.merges)}
}

func (o *textBlockMergerOptimizer) Cleanup() error { return nil }

// --- spell_corrector ------------------------------------------------------

// spellCorrectorOptimizer normalizes post-OCR text against the persistent
// dictionary's domain vocabulary: when a block's normalized text exactly
// matches a known entry's normalized original, the block is rewritten to
// the entry's canonical original spelling.
type spellCorrectorOptimizer struct {
	store      *dictionary.Store
	sourceLang string
	targetLang string
	corrections int64
}

func newSpellCorrectorOptimizer(settings map[string]any) (Optimizer, error) {
	dir := settingString(settings, "dictionary_dir", "")
	if dir == "" {
		return &spellCorrectorOptimizer{}, nil
	}
	store, err := dictionary.NewStore(dir, settingInt(settings, "auto_flush_size", 20))
	if err != nil {
		return nil, err
	}
	return &spellCorrectorOptimizer{
		store:      store,
		sourceLang: settingString(settings, "source_language", "en"),
		targetLang: settingString(settings, "target_language", "de"),
	}, nil
}

func (o *spellCorrectorOptimizer) Process(p *Payload) error {
	if o.store == nil {
		return nil
	}
	for i, block := range p.TextBlocks {
		entry, ok := o.store.Lookup(normalize(block.Text), o.sourceLang, o.targetLang)
		if !ok || entry.Original == block.Text {
			continue
		}
		p.TextBlocks[i].Text = entry.Original
		atomic.AddInt64(&o.corrections, 1)
	}
	return nil
}

func (o *spellCorrectorOptimizer) PostProcess(p *Payload) error { return nil }

func (o *spellCorrectorOptimizer) GetStats() map[string]any {
	return map[string]any{"corrections": atomic.LoadInt64(&o.corrections)}
}

func (o *spellCorrectorOptimizer) Cleanup() error { return nil }

// --- async_pipeline / parallel_translation --------------------------------

// asyncPipelineOptimizer has no per-frame payload transform; it only
// reports its workers_per_stage setting through GetStats. Loading it does
// not change how the engine runs its stages.
type asyncPipelineOptimizer struct {
	workers int
}

func newAsyncPipelineOptimizer(settings map[string]any) (Optimizer, error) {
	return &asyncPipelineOptimizer{workers: settingInt(settings, "workers_per_stage", 1)}, nil
}

func (o *asyncPipelineOptimizer) Process(p *Payload) error     { return nil }
func (o *asyncPipelineOptimizer) PostProcess(p *Payload) error { return nil }
func (o *asyncPipelineOptimizer) GetStats() map[string]any {
	return map[string]any{"workers_per_stage": o.workers}
}
func (o *asyncPipelineOptimizer) Cleanup() error { return nil }

// parallelTranslationOptimizer counts frames with more than one text block
// and reports its workers setting through GetStats; it does not dispatch
// translation work itself, and the engine's translation worker pool is
// sized from the configuration, not from this optimizer.
type parallelTranslationOptimizer struct {
	mu      sync.Mutex
	workers int
	fanned  int64
}

func newParallelTranslationOptimizer(settings map[string]any) (Optimizer, error) {
	return &parallelTranslationOptimizer{workers: settingInt(settings, "workers", 4)}, nil
}

func (o *parallelTranslationOptimizer) Process(p *Payload) error {
	if len(p.TextBlocks) > 1 {
		atomic.AddInt64(&o.fanned, 1)
	}
	return nil
}
func (o *parallelTranslationOptimizer) PostProcess(p *Payload) error { return nil }
func (o *parallelTranslationOptimizer) GetStats() map[string]any {
	o.mu.Lock()
	defer o.mu.Unlock()
	return map[string]any{"workers": o.workers, "frames_fanned_out": atomic.LoadInt64(&o.fanned)}
}
func (o *parallelTranslationOptimizer) Cleanup() error { return nil }
