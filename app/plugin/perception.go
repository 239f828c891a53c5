package plugin

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"overlaytranslate/app/types"
)

const thumbnailSide = 8

// frameImage adapts a raw Frame buffer to image.Image so the standard
// resampling package can downsample it; it supports the 1 (gray), 3 (RGB)
// and 4 (RGBA) channel layouts the capture backends produce.
type frameImage struct {
	frame *types.Frame
}

func (f frameImage) ColorModel() color.Model { return color.RGBAModel }

func (f frameImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, f.frame.Width, f.frame.Height)
}

func (f frameImage) At(x, y int) color.Color {
	stride := f.frame.Width * f.frame.Channels
	offset := y*stride + x*f.frame.Channels
	if offset < 0 || offset+f.frame.Channels > len(f.frame.Data) {
		return color.RGBA{}
	}
	switch f.frame.Channels {
	case 1:
		v := f.frame.Data[offset]
		return color.RGBA{R: v, G: v, B: v, A: 255}
	case 4:
		return color.RGBA{R: f.frame.Data[offset], G: f.frame.Data[offset+1], B: f.frame.Data[offset+2], A: f.frame.Data[offset+3]}
	default: // 3 channels, treated as RGB
		return color.RGBA{R: f.frame.Data[offset], G: f.frame.Data[offset+1], B: f.frame.Data[offset+2], A: 255}
	}
}

// thumbnail downsamples a frame to a small fixed-size RGBA image for
// cheap perceptual comparison.
func thumbnail(frame *types.Frame) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, thumbnailSide, thumbnailSide))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), frameImage{frame: frame}, frameImage{frame: frame}.Bounds(), draw.Over, nil)
	return dst
}

// perceptualSimilarity returns a score in [0,1], 1 meaning identical
// thumbnails, derived from mean absolute pixel difference.
func perceptualSimilarity(a, b *types.Frame) float64 {
	if a.Width == 0 || a.Height == 0 || b.Width == 0 || b.Height == 0 {
		return 0
	}
	ta, tb := thumbnail(a), thumbnail(b)
	var totalDiff, samples int64
	for i := range ta.Pix {
		d := int64(ta.Pix[i]) - int64(tb.Pix[i])
		if d < 0 {
			d = -d
		}
		totalDiff += d
		samples++
	}
	if samples == 0 {
		return 0
	}
	meanDiff := float64(totalDiff) / float64(samples)
	similarity := 1 - meanDiff/255
	if similarity < 0 {
		similarity = 0
	}
	return similarity
}

// estimateMotion performs a small block-matching search over shifted
// thumbnails to estimate a coarse (dx, dy) translation between frames, in
// source-frame pixel units, clamped to maxShiftPx.
func estimateMotion(prev, cur *types.Frame, maxShiftPx int) (dx, dy int) {
	if prev.Width == 0 || prev.Height == 0 || cur.Width == 0 || cur.Height == 0 {
		return 0, 0
	}
	tp, tc := thumbnail(prev), thumbnail(cur)
	bestDiff := int64(-1)
	bestDX, bestDY := 0, 0
	searchRadius := 2 // thumbnail pixels; scaled back up below

	for oy := -searchRadius; oy <= searchRadius; oy++ {
		for ox := -searchRadius; ox <= searchRadius; ox++ {
			diff := shiftedDiff(tp, tc, ox, oy)
			if bestDiff < 0 || diff < bestDiff {
				bestDiff = diff
				bestDX, bestDY = ox, oy
			}
		}
	}

	scaleX := prev.Width / thumbnailSide
	scaleY := prev.Height / thumbnailSide
	if scaleX == 0 {
		scaleX = 1
	}
	if scaleY == 0 {
		scaleY = 1
	}
	dx = clampShift(bestDX*scaleX, maxShiftPx)
	dy = clampShift(bestDY*scaleY, maxShiftPx)
	return dx, dy
}

func shiftedDiff(a, b *image.RGBA, ox, oy int) int64 {
	var total int64
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		sy := y + oy
		if sy < bounds.Min.Y || sy >= bounds.Max.Y {
			continue
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sx := x + ox
			if sx < bounds.Min.X || sx >= bounds.Max.X {
				continue
			}
			ar, ag, ab, _ := a.At(x, y).RGBA()
			br, bg, bb, _ := b.At(sx, sy).RGBA()
			total += absInt64(int64(ar)-int64(br)) + absInt64(int64(ag)-int64(bg)) + absInt64(int64(ab)-int64(bb))
		}
	}
	return total
}

func absInt64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func clampShift(v, limit int) int {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}
