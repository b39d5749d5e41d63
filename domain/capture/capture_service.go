package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/images"
)

const captureStatsLogInterval = 5 * time.Second

// ErrCaptureFailed is returned when neither still capture nor video sampling
// produced a usable frame.
var ErrCaptureFailed = errors.New("capture: failed")

// Service produces still frames from a live video track. Device access is
// serialised; stats are kept with atomics. Use NewService to construct one.
type Service struct {
	logger *slog.Logger
	mu     sync.Mutex

	latest       atomic.Pointer[StillFrame]
	captures     atomic.Uint64
	stills       atomic.Uint64
	samples      atomic.Uint64
	fallbacks    atomic.Uint64
	failures     atomic.Uint64
	ticks        atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	lastLog      atomic.Int64
}

var _ Capturer = (*Service)(nil)

// NewService constructs a capture service.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// CaptureStill takes one still from src. The dedicated still primitive is
// preferred; when it is missing or fails the current video frame is sampled at
// native resolution. A track reporting zero dimensions gets one forced render
// tick before the capture is abandoned.
func (s *Service) CaptureStill(ctx context.Context, src TrackSource) (StillFrame, error) {
	if src == nil {
		return StillFrame{}, fmt.Errorf("%w: no track source", ErrCaptureFailed)
	}
	tr := src.Track()
	if tr == nil {
		return StillFrame{}, fmt.Errorf("%w: no video track", ErrCaptureFailed)
	}
	if err := ctx.Err(); err != nil {
		return StillFrame{}, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	if err := s.ensureDimensions(ctx, tr); err != nil {
		s.failures.Add(1)
		return StillFrame{}, err
	}
	img, method, err := s.grab(ctx, tr)
	if err != nil {
		s.failures.Add(1)
		if s.logger != nil {
			s.logger.Error("capture: still failed", "error", err)
		}
		return StillFrame{}, err
	}

	owned := images.Clone(img)
	b := owned.Bounds()
	frame := StillFrame{
		Image:      owned,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Method:     method,
		CapturedAt: time.Now(),
		Sequence:   s.sequence.Add(1),
	}
	s.latest.Store(&frame)
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	if s.logger != nil {
		s.logger.Debug("capture: still",
			"method", method.String(),
			"width", frame.Width,
			"height", frame.Height,
			"size", humanize.Bytes(uint64(len(owned.Pix))),
			"sequence", frame.Sequence,
			"elapsed", time.Since(start),
		)
	}
	s.maybeLogStats()
	return frame, nil
}

func (s *Service) ensureDimensions(ctx context.Context, tr device.Track) error {
	if st := tr.Settings(); st.Width > 0 && st.Height > 0 {
		return nil
	}
	ticker, ok := tr.(device.RenderTicker)
	if !ok {
		return fmt.Errorf("%w: track reports zero dimensions", ErrCaptureFailed)
	}
	s.ticks.Add(1)
	if err := ticker.RenderTick(ctx); err != nil {
		return fmt.Errorf("%w: render tick: %w", ErrCaptureFailed, err)
	}
	if st := tr.Settings(); st.Width > 0 && st.Height > 0 {
		return nil
	}
	return fmt.Errorf("%w: track reports zero dimensions after render tick", ErrCaptureFailed)
}

func (s *Service) grab(ctx context.Context, tr device.Track) (image.Image, Method, error) {
	if sc, ok := tr.(device.StillCapturer); ok && tr.Capabilities().StillCapture {
		img, err := sc.TakePhoto(ctx)
		if err == nil && usable(img) {
			s.stills.Add(1)
			return img, MethodStillCapture, nil
		}
		if err == nil {
			err = errors.New("empty photo")
		}
		s.fallbacks.Add(1)
		if s.logger != nil {
			s.logger.Warn("capture: still capture failed, sampling video", "error", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, MethodNone, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	img, err := tr.SampleFrame(ctx)
	if err != nil {
		return nil, MethodNone, fmt.Errorf("%w: sample frame: %w", ErrCaptureFailed, err)
	}
	if !usable(img) {
		return nil, MethodNone, fmt.Errorf("%w: empty video frame", ErrCaptureFailed)
	}
	s.samples.Add(1)
	return img, MethodVideoSample, nil
}

func usable(img image.Image) bool { return img != nil && !img.Bounds().Empty() }

// Latest returns the most recent capture, or the zero frame.
func (s *Service) Latest() StillFrame {
	f := s.latest.Load()
	if f == nil {
		return StillFrame{}
	}
	return *f
}

func (s *Service) Stats() Stats {
	captures := s.captures.Load()
	total := s.captureNanos.Load()
	var avg time.Duration
	if captures > 0 && total > 0 {
		avg = time.Duration(total / captures)
	}
	snapshot := s.Latest()
	age := time.Duration(0)
	if !snapshot.CapturedAt.IsZero() {
		age = time.Since(snapshot.CapturedAt)
	}
	return Stats{
		Captures:       captures,
		StillCaptures:  s.stills.Load(),
		VideoSamples:   s.samples.Load(),
		Fallbacks:      s.fallbacks.Load(),
		Failures:       s.failures.Load(),
		RenderTicks:    s.ticks.Load(),
		AvgCapture:     avg,
		LastCapture:    snapshot.CapturedAt,
		LatestFrameAge: age,
		Sequence:       snapshot.Sequence,
	}
}

func (s *Service) maybeLogStats() {
	now := time.Now().UnixNano()
	last := s.lastLog.Load()
	if now-last < int64(captureStatsLogInterval) || !s.lastLog.CompareAndSwap(last, now) {
		return
	}
	s.logStats()
}

func (s *Service) logStats() {
	if s.logger == nil {
		return
	}
	stats := s.Stats()
	s.logger.Debug("capture.stats",
		"captures", stats.Captures,
		"still", stats.StillCaptures,
		"sampled", stats.VideoSamples,
		"fallbacks", stats.Fallbacks,
		"failures", stats.Failures,
		"avg_capture", stats.AvgCapture,
	)
}
