package overlay

import "overlaytranslate/app/types"

// Placer displaces overlay positions to avoid mutual collision and to stay
// within screen bounds, without altering the underlying translation text.
// It is side-effect-free: the caller decides whether to apply the result.
type Placer struct {
	screenBounds types.Rectangle
}

// NewPlacer constructs a Placer bounded to the given screen rectangle.
func NewPlacer(screenBounds types.Rectangle) *Placer {
	return &Placer{screenBounds: screenBounds}
}

// Place rewrites the Position of every overlay to avoid collisions with
// earlier overlays in the slice and to stay within screen bounds. Overlays
// are processed in input order — earlier entries win contested space.
// When p is nil, positions are returned unchanged (original OCR positions
// used verbatim, per the no-placement-subsystem fallback).
func (p *Placer) Place(overlays []types.TrackedOverlay) []types.TrackedOverlay {
	if p == nil {
		return overlays
	}
	out := make([]types.TrackedOverlay, len(overlays))
	var placed []types.Rectangle

	for i, ov := range overlays {
		out[i] = ov
		out[i].Position = p.clampToScreen(ov.Position)
		for collides(out[i].Position, placed) {
			out[i].Position = out[i].Position.Translate(0, out[i].Position.Height)
			out[i].Position = p.clampToScreen(out[i].Position)
		}
		placed = append(placed, out[i].Position)
	}
	return out
}

func (p *Placer) clampToScreen(r types.Rectangle) types.Rectangle {
	x, y := r.X, r.Y
	if x < p.screenBounds.X {
		x = p.screenBounds.X
	}
	if y < p.screenBounds.Y {
		y = p.screenBounds.Y
	}
	maxX := p.screenBounds.X + p.screenBounds.Width - r.Width
	maxY := p.screenBounds.Y + p.screenBounds.Height - r.Height
	if maxX > p.screenBounds.X && x > maxX {
		x = maxX
	}
	if maxY > p.screenBounds.Y && y > maxY {
		y = maxY
	}
	return types.Rectangle{X: x, Y: y, Width: r.Width, Height: r.Height}
}

func collides(r types.Rectangle, placed []types.Rectangle) bool {
	for _, other := range placed {
		if r.Intersects(other) {
			return true
		}
	}
	return false
}
