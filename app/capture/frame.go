package capture

import (
	"time"

	"overlaytranslate/app/types"
)

// Frame aliases the shared frame type.
type Frame = types.Frame

// Backend captures a single frame for a region. Concrete implementations
// (platform screen-capture APIs) live outside this module; Backend is the
// seam this package depends on.
type Backend interface {
	CaptureFrame(region Region) (*Frame, error)
}

// Result is what a single capture attempt produced for a region.
type Result struct {
	RegionID      string
	Frame         *Frame
	Success       bool
	Err           error
	CaptureTimeMS float64
}

// Stats are the running per-region capture counters.
type Stats struct {
	FramesCaptured       int64
	FramesFailed         int64
	AverageCaptureTimeMS float64
	LastCaptureTime      time.Time
}
