package capture

import (
	"context"
	"image"
	"time"

	"github.com/soocke/pixel-scan-go/device"
)

// Method records how a still was obtained.
type Method int

const (
	MethodNone Method = iota
	// MethodStillCapture is the track's dedicated photo primitive.
	MethodStillCapture
	// MethodVideoSample is a copy of the current video frame.
	MethodVideoSample
)

func (m Method) String() string {
	switch m {
	case MethodStillCapture:
		return "still_capture"
	case MethodVideoSample:
		return "video_sample"
	default:
		return "none"
	}
}

// StillFrame is an immutable capture. Image is owned by the frame; callers
// deriving new images must not write into it.
type StillFrame struct {
	Image      *image.NRGBA
	Width      int
	Height     int
	Method     Method
	CapturedAt time.Time
	Sequence   uint64
}

// Empty reports whether the frame carries no pixels.
func (f StillFrame) Empty() bool { return f.Image == nil || f.Width == 0 || f.Height == 0 }

// TrackSource yields the video track to capture from. guardian.Handle
// satisfies it.
type TrackSource interface {
	Track() device.Track
}

// Capturer is the contract the scan orchestrator depends on.
type Capturer interface {
	CaptureStill(ctx context.Context, src TrackSource) (StillFrame, error)
}
