// Package device describes the platform camera API consumed by the scan
// pipeline: stream negotiation, track capability introspection, video frame
// sampling and an optional high-quality still-capture primitive.
//
// Backends live in sub-packages (screen, dircam, gstcam); devicetest holds a
// programmable fake for tests.
package device

import (
	"context"
	"errors"
	"fmt"
	"image"
)

var (
	// ErrPermissionDenied reports that access to the camera was refused.
	ErrPermissionDenied = errors.New("device: permission denied")
	// ErrDeviceUnavailable reports that no stream could be negotiated.
	ErrDeviceUnavailable = errors.New("device: unavailable")
	// ErrOverconstrained reports that the requested constraints cannot be met.
	// Callers may retry with relaxed constraints.
	ErrOverconstrained = errors.New("device: constraints not satisfiable")
	// ErrStopped reports use of a track or stream after Stop.
	ErrStopped = errors.New("device: track stopped")
)

// Facing selects which physical camera a stream should come from.
type Facing int

const (
	FacingAny Facing = iota
	FacingEnvironment
	FacingUser
)

func (f Facing) String() string {
	switch f {
	case FacingEnvironment:
		return "environment"
	case FacingUser:
		return "user"
	default:
		return "any"
	}
}

// ParseFacing maps a config value to a Facing; unknown values yield FacingAny.
func ParseFacing(s string) Facing {
	switch s {
	case "environment", "rear", "back":
		return FacingEnvironment
	case "user", "front":
		return FacingUser
	default:
		return FacingAny
	}
}

// Constraints is a negotiation profile. The zero value is the minimal,
// unconstrained profile.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// Minimal is the unconstrained fallback profile.
var Minimal = Constraints{}

// Preferred returns the rear-facing profile at the given target resolution.
func Preferred(width, height int) Constraints {
	return Constraints{Facing: FacingEnvironment, Width: width, Height: height}
}

// IsMinimal reports whether c carries no constraints at all.
func (c Constraints) IsMinimal() bool { return c == Minimal }

func (c Constraints) String() string {
	if c.IsMinimal() {
		return "minimal"
	}
	return fmt.Sprintf("%s %dx%d", c.Facing, c.Width, c.Height)
}

// Settings are the values a track actually runs with. Width and Height may be
// zero while the sensor is warming up.
type Settings struct {
	DeviceID string
	Label    string
	Width    int
	Height   int
}

// Capabilities advertises optional track features.
type Capabilities struct {
	Torch        bool
	StillCapture bool
}

// Track is a single video track of a negotiated stream.
type Track interface {
	Settings() Settings
	Capabilities() Capabilities
	// ApplyTorch switches the flashlight. Implementations without torch
	// support return an error.
	ApplyTorch(on bool) error
	// SampleFrame copies the currently rendered video frame.
	SampleFrame(ctx context.Context) (image.Image, error)
	// Stop releases the track. Safe to call more than once.
	Stop()
}

// StillCapturer is implemented by tracks exposing a dedicated still-capture
// primitive (higher resolution, no video compression blur).
type StillCapturer interface {
	TakePhoto(ctx context.Context) (image.Image, error)
}

// RenderTicker is implemented by tracks that can be forced to render a frame,
// used when the sensor reports zero dimensions before warming up.
type RenderTicker interface {
	RenderTick(ctx context.Context) error
}

// Stream is a negotiated camera session.
type Stream interface {
	// VideoTrack returns the selected video track.
	VideoTrack() Track
	// Tracks returns every track of the stream.
	Tracks() []Track
	// Stop ends the stream. Safe to call more than once.
	Stop()
}

// Platform negotiates camera streams.
type Platform interface {
	Negotiate(ctx context.Context, c Constraints) (Stream, error)
}

// Sink is the presentation layer's video element. The guardian detaches it on
// release so no stale back-reference keeps a stopped stream alive.
type Sink interface {
	Attach(s Stream)
	Detach()
}
