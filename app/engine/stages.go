package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"overlaytranslate/app/cache"
	"overlaytranslate/app/errs"
	"overlaytranslate/app/types"
)

func asFrameContext(input any) (*frameContext, error) {
	fc, ok := input.(*frameContext)
	if !ok {
		return nil, fmt.Errorf("engine: unexpected pipeline input type %T", input)
	}
	return fc, nil
}

// stagePreprocess is a pass-through today; it exists as the named seam the
// preprocessing optimizer hooks (frame_skip, motion_tracker) attach to via
// the plugin host, which runs outside the pipeline engine proper.
func (e *Engine) stagePreprocess(ctx context.Context, input any) (any, error) {
	fc, err := asFrameContext(input)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// stageOCR extracts text blocks from the frame, unless a prior optimizer
// (motion_tracker) determined the frame hasn't moved enough to warrant
// re-running OCR, in which case the previous frame's blocks are reused
// shifted by the estimated offset.
func (e *Engine) stageOCR(ctx context.Context, input any) (any, error) {
	fc, err := asFrameContext(input)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if fc.optimizerPayload.SkipOCR && len(fc.optimizerPayload.TextBlocks) > 0 {
		fc.blocks = shiftBlocks(fc.optimizerPayload.TextBlocks, fc.optimizerPayload.OverlayOffsetDX, fc.optimizerPayload.OverlayOffsetDY)
		return fc, nil
	}

	breaker, hasBreaker := e.errHandler.Breaker("ocr")
	var blocks []types.TextBlock
	call := func() error {
		var callErr error
		blocks, callErr = e.client.ExtractText(ctx, fc.frame)
		return callErr
	}
	attempt := call
	if hasBreaker {
		attempt = func() error { return breaker.Call(call) }
	}
	err = errs.RetryWithBackoff(ctx, "ocr", errs.DefaultRetryConfig(), attempt)
	e.metrics.RecordOCR(float64(time.Since(start).Milliseconds()))

	if err != nil {
		e.errHandler.HandleError("ocr", "OCRError", err, errs.SeverityHigh, map[string]any{"region_id": fc.regionID})
		return fc, err
	}

	fc.blocks = blocks
	fc.optimizerPayload.TextBlocks = blocks
	return fc, nil
}

func shiftBlocks(blocks []types.TextBlock, dx, dy int) []types.TextBlock {
	out := make([]types.TextBlock, len(blocks))
	for i, b := range blocks {
		b.Position = b.Position.Translate(dx, dy)
		out[i] = b
	}
	return out
}

// stageValidate drops low-confidence, empty, wrong-script, or UI-junk text
// blocks before they reach translation.
func (e *Engine) stageValidate(ctx context.Context, input any) (any, error) {
	fc, err := asFrameContext(input)
	if err != nil {
		return nil, err
	}
	if e.validator == nil {
		return fc, nil
	}
	accepted := make([]types.TextBlock, 0, len(fc.blocks))
	for _, b := range fc.blocks {
		if ok, reason := e.validator.Accept(b); ok {
			accepted = append(accepted, b)
		} else {
			log.Debug().Str("event", "[BLOCK_REJECTED]").Str("reason", reason).Str("text", b.Text).Msg("validator rejected text block")
		}
	}
	fc.blocks = accepted
	fc.optimizerPayload.TextBlocks = accepted
	return fc, nil
}

// stageTranslate resolves each accepted text block to a translation,
// consulting the in-memory cache before invoking the translation engine,
// and persists novel high-quality translations to the bilingual
// dictionary.
func (e *Engine) stageTranslate(ctx context.Context, input any) (any, error) {
	fc, err := asFrameContext(input)
	if err != nil {
		return nil, err
	}
	if len(fc.blocks) == 0 {
		return fc, nil
	}

	srcLang := e.cfg.Translation.SourceLanguage
	tgtLang := e.cfg.Translation.TargetLanguage

	translateOne := func(block types.TextBlock) (types.Translation, error) {
		key := cache.Key(normalizeText(block.Text), srcLang, tgtLang)
		if entry, ok := e.translationCache.Get(key); ok {
			e.metrics.RecordCacheHit()
			return types.Translation{
				OriginalText: block.Text, TranslatedText: entry.TranslatedText,
				SourceLang: srcLang, TargetLang: tgtLang, Position: block.Position,
				Confidence: entry.Confidence, Engine: entry.EngineID, RegionID: fc.regionID,
				Timestamp: time.Now(),
			}, nil
		}
		e.metrics.RecordCacheMiss()

		start := time.Now()
		breaker, hasBreaker := e.errHandler.Breaker("translation")
		var translated string
		call := func() error {
			var callErr error
			translated, callErr = e.client.Translate(ctx, block.Text, srcLang, tgtLang)
			return callErr
		}
		attempt := call
		if hasBreaker {
			attempt = func() error { return breaker.Call(call) }
		}
		callErr := errs.RetryWithBackoff(ctx, "translation", errs.DefaultRetryConfig(), attempt)
		e.metrics.RecordTranslation(float64(time.Since(start).Milliseconds()))
		if callErr != nil {
			return types.Translation{}, callErr
		}
		if translated == "" {
			return types.Translation{}, fmt.Errorf("engine: empty translation result")
		}

		tr := types.Translation{
			OriginalText: block.Text, TranslatedText: translated,
			SourceLang: srcLang, TargetLang: tgtLang, Position: block.Position,
			Confidence: block.Confidence, Engine: "engine_client", RegionID: fc.regionID,
			Timestamp: time.Now(),
		}
		if ok, _ := e.qualityFilter.ShouldSave(block.Text, translated, block.Confidence); ok {
			e.translationCache.Put(key, &cache.Entry{
				SourceText: block.Text, TranslatedText: translated,
				SourceLang: srcLang, TargetLang: tgtLang, Confidence: block.Confidence, EngineID: tr.Engine,
			})
			if err := e.dictStore.Upsert(normalizeText(block.Text), block.Text, translated, srcLang, tgtLang, tr.Engine, block.Confidence); err != nil {
				log.Warn().Str("event", "[DICTIONARY_UPSERT_FAILED]").Err(err).Msg("failed to persist translation to dictionary")
			}
		}
		return tr, nil
	}

	var translations []types.Translation
	if e.translationWorkers != nil && len(fc.blocks) > 1 {
		translations = e.translateParallel(fc, translateOne)
	} else {
		translations = make([]types.Translation, 0, len(fc.blocks))
		for _, block := range fc.blocks {
			tr, err := translateOne(block)
			if err != nil {
				e.errHandler.HandleError("translation", "TranslationError", err, errs.SeverityHigh, map[string]any{"region_id": fc.regionID})
				continue
			}
			translations = append(translations, tr)
		}
	}

	fc.translations = translations
	fc.optimizerPayload.Translations = translations
	return fc, nil
}

// translateParallel fans block translation across the translation worker
// pool when more than one block needs resolving this frame; the pool exists
// only when pipeline.parallel_translation is enabled in the configuration.
func (e *Engine) translateParallel(fc *frameContext, translateOne func(types.TextBlock) (types.Translation, error)) []types.Translation {
	results := make([]types.Translation, len(fc.blocks))
	ok := make([]bool, len(fc.blocks))
	var wg sync.WaitGroup

	for i, block := range fc.blocks {
		i, block := i, block
		wg.Add(1)
		submitted := e.translationWorkers.Submit(func() error {
			defer wg.Done()
			tr, err := translateOne(block)
			if err != nil {
				e.errHandler.HandleError("translation", "TranslationError", err, errs.SeverityHigh, map[string]any{"region_id": fc.regionID})
				return err
			}
			results[i] = tr
			ok[i] = true
			return nil
		})
		if !submitted {
			wg.Done()
			e.metrics.RecordFrameDropped()
		}
	}
	wg.Wait()

	out := make([]types.Translation, 0, len(fc.blocks))
	for i, good := range ok {
		if good {
			out = append(out, results[i])
		}
	}
	return out
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stageOverlay updates the region's overlay tracker with this frame's
// translations and asks the renderer to show every overlay tracked this
// frame, new or already on screen.
func (e *Engine) stageOverlay(ctx context.Context, input any) (any, error) {
	fc, err := asFrameContext(input)
	if err != nil {
		return nil, err
	}
	if !e.cfg.Overlay.Enabled || fc.tracker == nil {
		return fc, nil
	}

	start := time.Now()
	tracked := fc.tracker.Track(time.Now(), fc.translations, fc.regionID, fc.frame.Region.Bounds)
	e.metrics.RecordOverlay(float64(time.Since(start).Milliseconds()))

	if e.renderer == nil {
		return fc, nil
	}
	for _, ov := range tracked {
		if err := e.renderer.ShowOverlay(ov); err != nil {
			log.Warn().Str("event", "[OVERLAY_SHOW_FAILED]").Str("overlay_id", ov.ID).Err(err).Msg("renderer failed to show overlay")
		}
	}
	return fc, nil
}
