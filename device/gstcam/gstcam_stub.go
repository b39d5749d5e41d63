//go:build !gst

package gstcam

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soocke/pixel-scan-go/device"
)

// Available reports whether this build carries the GStreamer backend. Build
// with -tags gst to enable it.
const Available = false

// Platform is the placeholder used when the binary is built without GStreamer.
type Platform struct {
	Device string
}

var _ device.Platform = (*Platform)(nil)

func New(dev string, _ *slog.Logger) *Platform { return &Platform{Device: dev} }

func (p *Platform) Negotiate(context.Context, device.Constraints) (device.Stream, error) {
	return nil, fmt.Errorf("gstcam: %w: %s: built without gst tag", device.ErrDeviceUnavailable, p.Device)
}
