package capture

import "time"

// Stats summarises capture behaviour for instrumentation.
type Stats struct {
	Captures       uint64
	StillCaptures  uint64
	VideoSamples   uint64
	Fallbacks      uint64
	Failures       uint64
	RenderTicks    uint64
	AvgCapture     time.Duration
	LastCapture    time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
}
