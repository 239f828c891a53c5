package overlay

import "overlaytranslate/app/types"

// MaskFrame zero-fills the pixel area of every rectangle that intersects
// the frame's region, translated into frame-local coordinates. This is the
// mechanism that prevents a rendered overlay from being re-read as source
// text on the next OCR pass.
func MaskFrame(frame *types.Frame, activeRects []types.Rectangle) {
	if frame == nil || len(frame.Data) == 0 {
		return
	}
	bounds := frame.Region.Bounds
	frameRect := types.Rectangle{X: 0, Y: 0, Width: frame.Width, Height: frame.Height}

	for _, rect := range activeRects {
		local := rect.Translate(-bounds.X, -bounds.Y)
		clipped, ok := local.Intersection(frameRect)
		if !ok {
			continue
		}
		zeroRect(frame, clipped)
	}
}

func zeroRect(frame *types.Frame, r types.Rectangle) {
	stride := frame.Width * frame.Channels
	for y := r.Y; y < r.Y+r.Height; y++ {
		rowStart := y*stride + r.X*frame.Channels
		rowEnd := rowStart + r.Width*frame.Channels
		if rowStart < 0 || rowEnd > len(frame.Data) {
			continue
		}
		for i := rowStart; i < rowEnd; i++ {
			frame.Data[i] = 0
		}
	}
}
