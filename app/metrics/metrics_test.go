package metrics

import "testing"

func TestRegistrySnapshotReflectsCounters(t *testing.T) {
	r := NewRegistry(16)
	r.RecordCapture(10)
	r.RecordCapture(12)
	r.RecordOCR(30)
	r.RecordTranslation(5)
	r.RecordOverlay(2)
	r.RecordEndToEnd(50)
	r.RecordCacheHit()
	r.RecordCacheHit()
	r.RecordCacheMiss()
	r.RecordFrameDropped()

	snap := r.Snapshot()
	if snap.FramesProcessed != 2 {
		t.Fatalf("expected 2 frames processed, got %d", snap.FramesProcessed)
	}
	if snap.FramesDropped != 1 {
		t.Fatalf("expected 1 frame dropped, got %d", snap.FramesDropped)
	}
	if snap.TranslationsCompleted != 1 {
		t.Fatalf("expected 1 translation completed, got %d", snap.TranslationsCompleted)
	}
	if snap.CacheHits != 2 || snap.CacheMisses != 1 {
		t.Fatalf("unexpected cache counters: hits=%d misses=%d", snap.CacheHits, snap.CacheMisses)
	}
	if snap.OCRLatencyMS != 30 {
		t.Fatalf("expected OCR p50 latency 30, got %v", snap.OCRLatencyMS)
	}
}

func TestLatencyRingPercentileOfEmptyRingIsZero(t *testing.T) {
	ring := newLatencyRing(8)
	if p := ring.percentile(50); p != 0 {
		t.Fatalf("expected 0 percentile on empty ring, got %v", p)
	}
}

func TestLatencyRingPercentileOrdersSamples(t *testing.T) {
	ring := newLatencyRing(8)
	for _, v := range []float64{5, 1, 9, 3, 7} {
		ring.add(v)
	}
	if p := ring.percentile(0); p != 1 {
		t.Fatalf("expected min 1 at p0, got %v", p)
	}
	if p := ring.percentile(100); p != 9 {
		t.Fatalf("expected max 9 at p100, got %v", p)
	}
}

func TestResetErrorWindowReturnsPriorCountAndResets(t *testing.T) {
	r := NewRegistry(8)
	r.RecordError()
	r.RecordError()
	if got := r.ResetErrorWindow(); got != 2 {
		t.Fatalf("expected 2 errors before reset, got %d", got)
	}
	if got := r.ResetErrorWindow(); got != 0 {
		t.Fatalf("expected 0 errors after reset, got %d", got)
	}
}
