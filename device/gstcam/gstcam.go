//go:build gst

// Package gstcam reads a V4L2 camera through a GStreamer pipeline:
//
//	v4l2src → videoconvert → videoscale → capsfilter(RGB) → appsink
//
// The appsink keeps only the newest frame; SampleFrame copies it.
package gstcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/soocke/pixel-scan-go/device"
)

const (
	defaultWidth  = 640
	defaultHeight = 480
	startTimeout  = 3 * time.Second
)

// Available reports whether this build carries the GStreamer backend.
const Available = true

// Platform opens V4L2 devices such as /dev/video0.
type Platform struct {
	Device string
	logger *slog.Logger
}

var _ device.Platform = (*Platform)(nil)

func New(dev string, logger *slog.Logger) *Platform {
	if dev == "" {
		dev = "/dev/video0"
	}
	return &Platform{Device: dev, logger: logger}
}

// Negotiate builds and starts the pipeline. The minimal profile is served at
// 640x480; any other profile requests its own resolution.
func (p *Platform) Negotiate(ctx context.Context, c device.Constraints) (_ device.Stream, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}
	if c.Facing == device.FacingUser {
		return nil, fmt.Errorf("gstcam: %w: facing %s", device.ErrOverconstrained, c.Facing)
	}

	gst.Init(nil)
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create pipeline: %w", device.ErrDeviceUnavailable, err)
	}
	// Every failure below releases the v4l2 device.
	defer func() {
		if err != nil {
			teardown(pipeline, p.logger)
		}
	}()
	src, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create v4l2src: %w", device.ErrDeviceUnavailable, err)
	}
	src.SetProperty("device", p.Device)
	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create videoconvert: %w", device.ErrDeviceUnavailable, err)
	}
	scale, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create videoscale: %w", device.ErrDeviceUnavailable, err)
	}
	caps, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create capsfilter: %w", device.ErrDeviceUnavailable, err)
	}
	caps.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", w, h)))

	sink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w: create appsink: %w", device.ErrDeviceUnavailable, err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 1)
	sink.SetProperty("drop", true)

	pipeline.AddMany(src, convert, scale, caps, sink.Element)
	if err := gst.ElementLinkMany(src, convert, scale, caps, sink.Element); err != nil {
		return nil, fmt.Errorf("gstcam: %w: link: %w", device.ErrDeviceUnavailable, err)
	}

	t := &track{pipeline: pipeline, device: p.Device, w: w, h: h, first: make(chan struct{}), logger: p.logger}
	sink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: t.onSample,
	})

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return nil, p.classify(err.Error())
	}
	if err := t.awaitStart(ctx); err != nil {
		return nil, err
	}
	if p.logger != nil {
		p.logger.Info("gstcam: stream started", "device", p.Device, "width", w, "height", h)
	}
	return &stream{track: t}, nil
}

func teardown(pipeline *gst.Pipeline, logger *slog.Logger) {
	if err := pipeline.SetState(gst.StateNull); err != nil && logger != nil {
		logger.Warn("gstcam: teardown pipeline", "error", err)
	}
}

func (p *Platform) classify(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return fmt.Errorf("gstcam: %w: %s", device.ErrPermissionDenied, msg)
	case strings.Contains(lower, "not-negotiated"), strings.Contains(lower, "not negotiated"):
		return fmt.Errorf("gstcam: %w: %s", device.ErrOverconstrained, msg)
	default:
		return fmt.Errorf("gstcam: %w: %s", device.ErrDeviceUnavailable, msg)
	}
}

type stream struct {
	track *track
	once  sync.Once
}

func (s *stream) VideoTrack() device.Track { return s.track }
func (s *stream) Tracks() []device.Track   { return []device.Track{s.track} }
func (s *stream) Stop()                    { s.once.Do(s.track.Stop) }

type track struct {
	pipeline *gst.Pipeline
	device   string
	w, h     int
	logger   *slog.Logger

	latest    atomic.Pointer[image.RGBA]
	frames    atomic.Uint64
	first     chan struct{}
	firstOnce sync.Once
	stopped   atomic.Bool
	stopOnce  sync.Once
}

// awaitStart waits for the first frame while watching the bus for errors.
func (t *track) awaitStart(ctx context.Context) error {
	bus := t.pipeline.GetPipelineBus()
	deadline := time.Now().Add(startTimeout)
	for time.Now().Before(deadline) {
		select {
		case <-t.first:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}
		if msg.Type() == gst.MessageError {
			gerr := msg.ParseError()
			return (&Platform{}).classify(gerr.Error() + " " + gerr.DebugString())
		}
	}
	return fmt.Errorf("gstcam: %w: no frame from %s within %s", device.ErrDeviceUnavailable, t.device, startTimeout)
}

func (t *track) onSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return gst.FlowOK
	}
	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) < t.w*t.h*3 {
		buffer.Unmap()
		return gst.FlowOK
	}
	img := image.NewRGBA(image.Rect(0, 0, t.w, t.h))
	for i, j := 0, 0; i < t.w*t.h*3; i, j = i+3, j+4 {
		img.Pix[j+0] = data[i+0]
		img.Pix[j+1] = data[i+1]
		img.Pix[j+2] = data[i+2]
		img.Pix[j+3] = 0xFF
	}
	buffer.Unmap()
	t.latest.Store(img)
	t.frames.Add(1)
	t.firstOnce.Do(func() { close(t.first) })
	return gst.FlowOK
}

func (t *track) Settings() device.Settings {
	st := device.Settings{DeviceID: t.device, Label: "v4l2 " + t.device}
	if t.latest.Load() != nil {
		st.Width, st.Height = t.w, t.h
	}
	return st
}

func (t *track) Capabilities() device.Capabilities { return device.Capabilities{} }

func (t *track) ApplyTorch(bool) error { return errors.New("gstcam: torch not supported") }

func (t *track) SampleFrame(ctx context.Context) (image.Image, error) {
	if t.stopped.Load() {
		return nil, device.ErrStopped
	}
	select {
	case <-t.first:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	img := t.latest.Load()
	if img == nil {
		return nil, errors.New("gstcam: no frame")
	}
	return img, nil
}

// RenderTick waits for one more frame to arrive.
func (t *track) RenderTick(ctx context.Context) error {
	n := t.frames.Load()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()
	for t.frames.Load() == n {
		select {
		case <-tick.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *track) Stop() {
	t.stopOnce.Do(func() {
		t.stopped.Store(true)
		teardown(t.pipeline, t.logger)
	})
}

var _ device.RenderTicker = (*track)(nil)
