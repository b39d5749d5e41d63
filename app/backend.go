package app

import (
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/device/dircam"
	"github.com/soocke/pixel-scan-go/device/gstcam"
	"github.com/soocke/pixel-scan-go/device/screen"
)

// NewPlatform resolves a device string to a camera backend:
//
//	screen                 full screen
//	screen:X,Y,W,H         screen region
//	dir:PATH               image directory, torch simulated
//	v4l2:/dev/videoN       GStreamer camera (binary built with -tags gst)
//	/dev/videoN            same as v4l2:
func NewPlatform(name string, logger *slog.Logger) (device.Platform, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(name), ":")
	switch {
	case kind == "" || kind == "screen":
		region, err := parseRegion(arg)
		if err != nil {
			return nil, err
		}
		return screen.New(region, logger), nil
	case kind == "dir":
		if arg == "" {
			return nil, fmt.Errorf("app: device %q: missing directory", name)
		}
		p := dircam.New(arg, logger)
		p.Torch = true
		return p, nil
	case kind == "v4l2":
		return gstcam.New(arg, logger), nil
	case strings.HasPrefix(name, "/dev/"):
		return gstcam.New(name, logger), nil
	default:
		return nil, fmt.Errorf("app: unknown device %q", name)
	}
}

func parseRegion(s string) (image.Rectangle, error) {
	if s == "" {
		return image.Rectangle{}, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("app: screen region %q: want X,Y,W,H", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("app: screen region %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("app: screen region %q: empty", s)
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}
