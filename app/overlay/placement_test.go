package overlay

import (
	"testing"

	"overlaytranslate/app/types"
)

func TestPlaceAvoidsCollision(t *testing.T) {
	p := NewPlacer(types.Rectangle{X: 0, Y: 0, Width: 1920, Height: 1080})
	overlays := []types.TrackedOverlay{
		{ID: "a", Position: types.Rectangle{X: 100, Y: 100, Width: 50, Height: 20}},
		{ID: "b", Position: types.Rectangle{X: 100, Y: 100, Width: 50, Height: 20}},
	}
	placed := p.Place(overlays)
	if placed[0].Position.Intersects(placed[1].Position) {
		t.Fatal("expected placement pass to resolve the collision")
	}
}

func TestPlaceClampsToScreenBounds(t *testing.T) {
	p := NewPlacer(types.Rectangle{X: 0, Y: 0, Width: 200, Height: 200})
	overlays := []types.TrackedOverlay{
		{ID: "a", Position: types.Rectangle{X: 190, Y: 190, Width: 50, Height: 50}},
	}
	placed := p.Place(overlays)
	if placed[0].Position.X+placed[0].Position.Width > 200 {
		t.Fatal("expected overlay clamped within screen width")
	}
	if placed[0].Position.Y+placed[0].Position.Height > 200 {
		t.Fatal("expected overlay clamped within screen height")
	}
}

func TestPlaceNilPlacerReturnsOriginal(t *testing.T) {
	var p *Placer
	overlays := []types.TrackedOverlay{{ID: "a", Position: types.Rectangle{X: 5, Y: 5, Width: 10, Height: 10}}}
	out := p.Place(overlays)
	if out[0].Position != overlays[0].Position {
		t.Fatal("expected nil placer to return positions unchanged")
	}
}
