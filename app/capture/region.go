// Package capture coordinates independent per-region capture loops,
// each polling a pluggable backend at its own frame rate and feeding
// frames into bounded per-region result queues.
package capture

import "overlaytranslate/app/types"

// Region and Config are aliases onto the shared data model so every
// pipeline component agrees on what a capture region is.
type (
	Region = types.CaptureRegion
	Config = types.MultiRegionConfig
)

// NewConfig constructs an empty Config.
func NewConfig() *Config {
	return types.NewMultiRegionConfig()
}
