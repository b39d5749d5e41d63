// Package dircam simulates a camera with a directory of image files. Every
// capture returns the next file in name order, cycling. It is used for demos,
// for replaying field photos and in integration tests.
package dircam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/soocke/pixel-scan-go/device"
)

var extensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// Platform serves streams over the images in Dir. Torch simulates a flashlight
// capability.
type Platform struct {
	Dir    string
	Torch  bool
	logger *slog.Logger
}

var _ device.Platform = (*Platform)(nil)

func New(dir string, logger *slog.Logger) *Platform {
	return &Platform{Dir: dir, logger: logger}
}

// Negotiate lists the directory. The first image fixes the reported
// resolution; a constraint larger than that is overconstrained.
func (p *Platform) Negotiate(ctx context.Context, c device.Constraints) (device.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("dircam: %w: %w", device.ErrPermissionDenied, err)
		}
		return nil, fmt.Errorf("dircam: %w: %w", device.ErrDeviceUnavailable, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(p.Dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dircam: %w: no images in %s", device.ErrDeviceUnavailable, p.Dir)
	}
	sort.Strings(files)

	w, h, err := dimensions(files[0])
	if err != nil {
		return nil, fmt.Errorf("dircam: %w: %w", device.ErrDeviceUnavailable, err)
	}
	if c.Width > w || c.Height > h {
		return nil, fmt.Errorf("dircam: %w: %dx%d exceeds %dx%d", device.ErrOverconstrained, c.Width, c.Height, w, h)
	}
	if p.logger != nil {
		p.logger.Debug("dircam: stream negotiated", "dir", p.Dir, "images", len(files), "width", w, "height", h)
	}
	t := &track{files: files, w: w, h: h, torch: p.Torch, label: filepath.Base(p.Dir)}
	return &stream{track: t}, nil
}

func dimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, nil
}

type stream struct {
	track *track
	once  sync.Once
}

func (s *stream) VideoTrack() device.Track { return s.track }
func (s *stream) Tracks() []device.Track   { return []device.Track{s.track} }
func (s *stream) Stop()                    { s.once.Do(s.track.Stop) }

type track struct {
	files []string
	w, h  int
	label string
	torch bool

	mu      sync.Mutex
	next    int
	torchOn bool
	stopped atomic.Bool
}

func (t *track) Settings() device.Settings {
	return device.Settings{DeviceID: "dir:" + t.label, Label: t.label, Width: t.w, Height: t.h}
}

func (t *track) Capabilities() device.Capabilities {
	return device.Capabilities{Torch: t.torch, StillCapture: true}
}

func (t *track) ApplyTorch(on bool) error {
	if !t.torch {
		return errors.New("dircam: torch not supported")
	}
	t.mu.Lock()
	t.torchOn = on
	t.mu.Unlock()
	return nil
}

// TakePhoto decodes the next file at full resolution, honouring EXIF
// orientation.
func (t *track) TakePhoto(ctx context.Context) (image.Image, error) {
	return t.read(ctx, true)
}

// SampleFrame decodes the next file scaled to the negotiated resolution, the
// way a video pipeline would deliver it.
func (t *track) SampleFrame(ctx context.Context) (image.Image, error) {
	return t.read(ctx, false)
}

func (t *track) read(ctx context.Context, full bool) (image.Image, error) {
	if t.stopped.Load() {
		return nil, device.ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	path := t.files[t.next%len(t.files)]
	t.next++
	t.mu.Unlock()

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("dircam: %w", err)
	}
	if !full {
		if b := img.Bounds(); b.Dx() != t.w || b.Dy() != t.h {
			img = imaging.Fit(img, t.w, t.h, imaging.Linear)
		}
	}
	return img, nil
}

func (t *track) Stop() { t.stopped.Store(true) }

var _ device.StillCapturer = (*track)(nil)
