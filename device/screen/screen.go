// Package screen exposes a screen region as a camera. It lets the scanner read
// barcodes shown on the desktop (web shops, PDFs, a phone mirrored to the
// screen) and serves as the default backend on machines without a webcam.
package screen

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/vova616/screenshot"

	"github.com/soocke/pixel-scan-go/device"
)

// Platform negotiates screen streams. A zero Region captures the full screen.
type Platform struct {
	Region image.Rectangle
	logger *slog.Logger
}

var _ device.Platform = (*Platform)(nil)

func New(region image.Rectangle, logger *slog.Logger) *Platform {
	return &Platform{Region: region, logger: logger}
}

// Negotiate validates c against the screen. A screen has no facing; a user
// facing request or a resolution larger than the region is overconstrained.
func (p *Platform) Negotiate(ctx context.Context, c device.Constraints) (device.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bounds, err := screenshot.ScreenRect()
	if err != nil {
		return nil, fmt.Errorf("screen: %w: %w", device.ErrDeviceUnavailable, err)
	}
	rect := bounds
	if !p.Region.Empty() {
		rect = p.Region.Intersect(bounds)
		if rect.Empty() {
			return nil, fmt.Errorf("screen: %w: region %v outside screen %v", device.ErrDeviceUnavailable, p.Region, bounds)
		}
	}
	if c.Facing == device.FacingUser {
		return nil, fmt.Errorf("screen: %w: facing %s", device.ErrOverconstrained, c.Facing)
	}
	if c.Width > rect.Dx() || c.Height > rect.Dy() {
		return nil, fmt.Errorf("screen: %w: %dx%d exceeds %dx%d",
			device.ErrOverconstrained, c.Width, c.Height, rect.Dx(), rect.Dy())
	}
	if p.logger != nil {
		p.logger.Debug("screen: stream negotiated", "rect", rect.String())
	}
	return &stream{track: &track{rect: rect}}, nil
}

type stream struct {
	track *track
	once  sync.Once
}

func (s *stream) VideoTrack() device.Track { return s.track }
func (s *stream) Tracks() []device.Track   { return []device.Track{s.track} }
func (s *stream) Stop()                    { s.once.Do(s.track.Stop) }

type track struct {
	rect    image.Rectangle
	stopped atomic.Bool
}

func (t *track) Settings() device.Settings {
	return device.Settings{DeviceID: "screen:" + t.rect.String(), Label: "screen", Width: t.rect.Dx(), Height: t.rect.Dy()}
}

func (t *track) Capabilities() device.Capabilities { return device.Capabilities{} }

func (t *track) ApplyTorch(bool) error { return errors.New("screen: torch not supported") }

func (t *track) SampleFrame(ctx context.Context) (image.Image, error) {
	if t.stopped.Load() {
		return nil, device.ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := screenshot.CaptureRect(t.rect)
	if err != nil {
		return nil, fmt.Errorf("screen: capture %v: %w", t.rect, err)
	}
	return img, nil
}

func (t *track) Stop() { t.stopped.Store(true) }
