package overlay

import (
	"testing"
	"time"

	"overlaytranslate/app/types"
)

func TestMaskFrameZeroesIntersectingRegion(t *testing.T) {
	region := types.CaptureRegion{RegionID: "r1", Bounds: types.Rectangle{X: 100, Y: 100, Width: 50, Height: 50}}
	frame := &types.Frame{
		Width: 50, Height: 50, Channels: 1,
		Data:      make([]byte, 50*50),
		Timestamp: time.Now(),
		Region:    region,
	}
	for i := range frame.Data {
		frame.Data[i] = 0xFF
	}

	// overlay at screen-absolute (110,110) sized 10x10 falls inside the region
	active := []types.Rectangle{{X: 110, Y: 110, Width: 10, Height: 10}}
	MaskFrame(frame, active)

	// (110,110) screen-absolute -> (10,10) frame-local
	idx := 10*50 + 10
	if frame.Data[idx] != 0 {
		t.Fatalf("expected masked pixel to be zero, got %d", frame.Data[idx])
	}
	// a pixel outside the masked rect should be untouched
	if frame.Data[0] != 0xFF {
		t.Fatal("expected pixel outside the masked rectangle to be untouched")
	}
}

func TestMaskFrameIgnoresNonIntersectingRect(t *testing.T) {
	region := types.CaptureRegion{RegionID: "r1", Bounds: types.Rectangle{X: 0, Y: 0, Width: 20, Height: 20}}
	frame := &types.Frame{Width: 20, Height: 20, Channels: 1, Data: make([]byte, 400), Timestamp: time.Now(), Region: region}
	for i := range frame.Data {
		frame.Data[i] = 0xAB
	}

	MaskFrame(frame, []types.Rectangle{{X: 1000, Y: 1000, Width: 10, Height: 10}})

	for i, b := range frame.Data {
		if b != 0xAB {
			t.Fatalf("expected no pixels touched, byte %d changed to %d", i, b)
		}
	}
}
