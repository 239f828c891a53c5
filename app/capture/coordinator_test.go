package capture

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeBackend struct {
	calls int64
	fail  bool
}

func (b *fakeBackend) CaptureFrame(region Region) (*Frame, error) {
	atomic.AddInt64(&b.calls, 1)
	if b.fail {
		return nil, errors.New("backend unavailable")
	}
	return &Frame{Width: 10, Height: 10, Channels: 3, Data: make([]byte, 300), Timestamp: time.Now(), Region: region}, nil
}

func newTestConfig() *Config {
	cfg := NewConfig()
	cfg.AddRegion(Region{RegionID: "r1", Name: "Region 1", Bounds: Rectangle{0, 0, 100, 100}, Enabled: true})
	return cfg
}

func TestCoordinatorStartCapturesFrames(t *testing.T) {
	backend := &fakeBackend{}
	c := NewCoordinator(backend, newTestConfig(), 100)

	var captured int32
	c.OnFrameCaptured(func(regionID string, f *Frame) {
		atomic.StoreInt32(&captured, 1)
	})

	if !c.Start() {
		t.Fatal("expected start to succeed")
	}
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&captured) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if atomic.LoadInt32(&captured) == 0 {
		t.Fatal("expected at least one frame to be captured")
	}
}

func TestCoordinatorStartFailsWithNoEnabledRegions(t *testing.T) {
	c := NewCoordinator(&fakeBackend{}, NewConfig(), 15)
	if c.Start() {
		t.Fatal("expected start to fail with no enabled regions")
	}
}

func TestCoordinatorCaptureErrorCallback(t *testing.T) {
	backend := &fakeBackend{fail: true}
	c := NewCoordinator(backend, newTestConfig(), 100)

	errCh := make(chan error, 1)
	c.OnCaptureError(func(regionID string, err error) {
		select {
		case errCh <- err:
		default:
		}
	})
	c.Start()
	defer c.Stop()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("expected non-nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("expected capture error callback to fire")
	}
}

func TestCoordinatorAddRemoveRegionWhileRunning(t *testing.T) {
	backend := &fakeBackend{}
	c := NewCoordinator(backend, newTestConfig(), 100)
	c.Start()
	defer c.Stop()

	c.AddRegion(Region{RegionID: "r2", Name: "Region 2", Bounds: Rectangle{10, 10, 50, 50}, Enabled: true})
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.RegionStats("r2"); !ok {
		t.Fatal("expected region r2 to be running after AddRegion")
	}

	c.RemoveRegion("r2")
	if _, ok := c.RegionStats("r2"); ok {
		t.Fatal("expected region r2 to be removed")
	}
}

func TestCoordinatorDisableStopsLoop(t *testing.T) {
	backend := &fakeBackend{}
	c := NewCoordinator(backend, newTestConfig(), 100)
	c.Start()
	defer c.Stop()

	c.DisableRegion("r1")
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.RegionStats("r1"); ok {
		t.Fatal("expected disabled region's loop to be stopped")
	}
}

func TestConfigEnabledRegionsPreservesOrder(t *testing.T) {
	cfg := NewConfig()
	cfg.AddRegion(Region{RegionID: "a", Enabled: true})
	cfg.AddRegion(Region{RegionID: "b", Enabled: false})
	cfg.AddRegion(Region{RegionID: "c", Enabled: true})

	enabled := cfg.EnabledRegions()
	if len(enabled) != 2 || enabled[0].RegionID != "a" || enabled[1].RegionID != "c" {
		t.Fatalf("unexpected enabled region order: %+v", enabled)
	}
}
