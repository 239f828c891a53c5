// Package overlay tracks the set of currently displayed translation
// overlays: it assigns stable ids, ages overlays out once their source
// text stops being observed, and publishes the active screen-absolute
// rectangles so the capture stage can mask them out of the next OCR pass.
package overlay

import (
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/minio/highwayhash"
	"github.com/rs/zerolog/log"

	"overlaytranslate/app/types"
)

// hashKey is a fixed 32-byte seed for the non-cryptographic id hash. It
// only needs to disambiguate within a single run, not across runs.
var hashKey = []byte("overlaytranslate-overlay-ids-key")

// DefaultDisappearThreshold mirrors overlay.disappear_timeout's default.
const DefaultDisappearThreshold = 3 * time.Second

// Tracker holds the live set of TrackedOverlay records, keyed by id, from
// which the rectangle set for capture-stage masking is derived.
type Tracker struct {
	mu                 sync.Mutex
	overlays           map[string]*types.TrackedOverlay
	dismissed          map[string]bool
	disappearThreshold time.Duration
}

// NewTracker constructs a Tracker. threshold <= 0 uses DefaultDisappearThreshold.
func NewTracker(threshold time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultDisappearThreshold
	}
	return &Tracker{
		overlays:           make(map[string]*types.TrackedOverlay),
		dismissed:          make(map[string]bool),
		disappearThreshold: threshold,
	}
}

// stableID truncates a HighwayHash of the translated text to a short tag,
// suffixed by ordinal when two blocks produce the same text in one frame.
func stableID(text string, ordinal int) string {
	h, err := highwayhash.New(hashKey)
	if err != nil {
		// hashKey length is fixed and valid; this cannot happen outside a
		// programming error.
		panic(fmt.Sprintf("overlay: invalid hash key: %v", err))
	}
	h.Write([]byte(text))
	tag := hex.EncodeToString(h.Sum(nil))[:10]
	if ordinal == 0 {
		return tag
	}
	return fmt.Sprintf("%s-%d", tag, ordinal)
}

// Track records a single frame's worth of translations, creating new
// overlays or refreshing last_seen on existing ones, and returns the
// TrackedOverlay for each (in the same order as the input).
func (t *Tracker) Track(now time.Time, translations []types.Translation, regionID string, regionBounds types.Rectangle) []types.TrackedOverlay {
	t.mu.Lock()
	defer t.mu.Unlock()

	seenThisFrame := make(map[string]int)
	out := make([]types.TrackedOverlay, 0, len(translations))

	for _, tr := range translations {
		ordinal := seenThisFrame[tr.TranslatedText]
		seenThisFrame[tr.TranslatedText]++
		id := stableID(tr.TranslatedText, ordinal)

		absPos := tr.Position.Translate(regionBounds.X, regionBounds.Y)

		existing, had := t.overlays[id]
		if had {
			existing.LastSeen = now
			existing.Position = absPos
			existing.Confidence = tr.Confidence
			out = append(out, *existing)
			continue
		}

		ov := &types.TrackedOverlay{
			ID:           id,
			Text:         tr.TranslatedText,
			Position:     absPos,
			SourceRegion: regionBounds,
			RegionID:     regionID,
			LastSeen:     now,
			Confidence:   tr.Confidence,
		}
		t.overlays[id] = ov
		delete(t.dismissed, id)
		out = append(out, *ov)
		log.Debug().Str("event", "[OVERLAY_CREATED]").Str("id", id).Str("text", tr.TranslatedText).Msg("new overlay tracked")
	}

	return out
}

// CheckDisappeared returns overlays whose last_seen exceeds the disappear
// threshold and have not yet been reported dismissed, removes them from the
// live set, and marks them dismissed so they are never reported twice.
func (t *Tracker) CheckDisappeared(now time.Time) []types.TrackedOverlay {
	t.mu.Lock()
	defer t.mu.Unlock()

	var dismissed []types.TrackedOverlay
	for id, ov := range t.overlays {
		if now.Sub(ov.LastSeen) <= t.disappearThreshold {
			continue
		}
		if t.dismissed[id] {
			continue
		}
		t.dismissed[id] = true
		dismissed = append(dismissed, *ov)
		delete(t.overlays, id)
		log.Debug().Str("event", "[OVERLAY_DISMISSED]").Str("id", id).Msg("overlay exceeded disappear threshold")
	}
	return dismissed
}

// ActiveRectangles returns the screen-absolute positions of every
// currently tracked overlay, for capture-stage masking.
func (t *Tracker) ActiveRectangles() []types.Rectangle {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.Rectangle, 0, len(t.overlays))
	for _, ov := range t.overlays {
		out = append(out, ov.Position)
	}
	return out
}

// RefreshActive advances last_seen to now for every currently tracked
// overlay without otherwise touching their data, and returns the
// refreshed snapshot. Used when a frame was skipped entirely (the
// frame_skip optimizer fired) so overlays whose source text is still
// on-screen don't have their disappear-timeout clock keep running during
// skipped frames.
func (t *Tracker) RefreshActive(now time.Time) []types.TrackedOverlay {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.TrackedOverlay, 0, len(t.overlays))
	for _, ov := range t.overlays {
		ov.LastSeen = now
		out = append(out, *ov)
	}
	return out
}

// Active returns a snapshot of every currently tracked overlay.
func (t *Tracker) Active() []types.TrackedOverlay {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.TrackedOverlay, 0, len(t.overlays))
	for _, ov := range t.overlays {
		out = append(out, *ov)
	}
	return out
}

// Clear removes every tracked overlay without emitting dismiss events —
// used when the pipeline stops and must clear overlays unconditionally.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.overlays = make(map[string]*types.TrackedOverlay)
	t.dismissed = make(map[string]bool)
}
