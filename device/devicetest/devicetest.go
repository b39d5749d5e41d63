// Package devicetest provides a programmable in-memory camera platform for tests.
package devicetest

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-scan-go/device"
)

// SolidFrame returns a uniformly coloured frame whose red channel encodes id.
// Crops, rescales and rotations keep the colour, so fakes further down the
// pipeline can recover which capture a derived image came from.
func SolidFrame(id uint8, w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: id, G: 0x40, B: 0x40, A: 0xFF}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

// FrameID recovers the id written by SolidFrame from any derived image. Inverted
// images yield the inverted id (255-id).
func FrameID(img image.Image) uint8 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	if b.Empty() {
		return 0
	}
	r, _, _, _ := img.At(b.Min.X+b.Dx()/2, b.Min.Y+b.Dy()/2).RGBA()
	return uint8(r >> 8)
}

// Platform is a fake device.Platform. Negotiate results are scripted through
// Errs (consumed in order); once exhausted a Track is returned.
type Platform struct {
	mu         sync.Mutex
	Errs       []error
	Track      *Track
	Negotiated []device.Constraints
	Delay      time.Duration
	streams    []*Stream
}

// NewPlatform returns a platform serving tr.
func NewPlatform(tr *Track) *Platform { return &Platform{Track: tr} }

func (p *Platform) Negotiate(ctx context.Context, c device.Constraints) (device.Stream, error) {
	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Negotiated = append(p.Negotiated, c)
	if len(p.Errs) > 0 {
		err := p.Errs[0]
		p.Errs = p.Errs[1:]
		if err != nil {
			return nil, err
		}
	}
	tr := p.Track
	if tr == nil {
		tr = &Track{W: 640, H: 480}
	}
	tr.stopped.Store(false)
	s := &Stream{track: tr}
	p.streams = append(p.streams, s)
	return s, nil
}

// NegotiateCount returns how many negotiations were attempted.
func (p *Platform) NegotiateCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Negotiated)
}

// LiveStreams counts streams that have not been stopped.
func (p *Platform) LiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.streams {
		if !s.stopped.Load() {
			n++
		}
	}
	return n
}

// Stream is a fake device.Stream with a single video track.
type Stream struct {
	track   *Track
	stopped atomic.Bool
	stops   atomic.Int32
}

func (s *Stream) VideoTrack() device.Track { return s.track }
func (s *Stream) Tracks() []device.Track   { return []device.Track{s.track} }
func (s *Stream) Stop() {
	s.stops.Add(1)
	s.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool { return s.stopped.Load() }

// Track is a fake device.Track. Frames returned by TakePhoto/SampleFrame come
// from the Photo/Sample functions; when nil, SolidFrame(n) is returned where n
// counts calls across both methods starting at 1.
type Track struct {
	mu sync.Mutex

	W, H  int
	Torch bool
	Still bool

	Photo     func(n int) (image.Image, error)
	Sample    func(n int) (image.Image, error)
	TorchErr  error
	ZeroUntil int    // report zero dimensions until this many render ticks happened
	CapsHook  func() // runs on every Capabilities call

	calls       int
	ticks       int
	torchOn     bool
	torchWrites []bool
	stopped     atomic.Bool
	photoCalls  atomic.Int32
	sampleCalls atomic.Int32
}

func (t *Track) Settings() device.Settings {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticks < t.ZeroUntil {
		return device.Settings{DeviceID: "fake0", Label: "fake camera"}
	}
	return device.Settings{DeviceID: "fake0", Label: "fake camera", Width: t.W, Height: t.H}
}

func (t *Track) Capabilities() device.Capabilities {
	if t.CapsHook != nil {
		t.CapsHook()
	}
	return device.Capabilities{Torch: t.Torch, StillCapture: t.Still}
}

func (t *Track) ApplyTorch(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Torch {
		return errors.New("devicetest: torch not supported")
	}
	if t.TorchErr != nil {
		return t.TorchErr
	}
	t.torchOn = on
	t.torchWrites = append(t.torchWrites, on)
	return nil
}

// TorchOn reports the current torch state.
func (t *Track) TorchOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.torchOn
}

// TorchWrites returns every torch value applied so far.
func (t *Track) TorchWrites() []bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bool(nil), t.torchWrites...)
}

func (t *Track) next() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	return t.calls
}

func (t *Track) SampleFrame(ctx context.Context) (image.Image, error) {
	if t.stopped.Load() {
		return nil, device.ErrStopped
	}
	t.sampleCalls.Add(1)
	n := t.next()
	if t.Sample != nil {
		return t.Sample(n)
	}
	return SolidFrame(uint8(n), t.W, t.H), nil
}

func (t *Track) TakePhoto(ctx context.Context) (image.Image, error) {
	if t.stopped.Load() {
		return nil, device.ErrStopped
	}
	if !t.Still {
		return nil, errors.New("devicetest: still capture not supported")
	}
	t.photoCalls.Add(1)
	n := t.next()
	if t.Photo != nil {
		return t.Photo(n)
	}
	return SolidFrame(uint8(n), t.W, t.H), nil
}

func (t *Track) RenderTick(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
	return nil
}

// Ticks returns how many render ticks were forced.
func (t *Track) Ticks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

func (t *Track) Stop() { t.stopped.Store(true) }

// Stopped reports whether the track was stopped.
func (t *Track) Stopped() bool { return t.stopped.Load() }

// PhotoCalls and SampleCalls count invocations of each capture method.
func (t *Track) PhotoCalls() int  { return int(t.photoCalls.Load()) }
func (t *Track) SampleCalls() int { return int(t.sampleCalls.Load()) }

// Sink records attach/detach calls.
type Sink struct {
	attached atomic.Int32
	detached atomic.Int32
}

func (s *Sink) Attach(device.Stream) { s.attached.Add(1) }
func (s *Sink) Detach()              { s.detached.Add(1) }
func (s *Sink) Attached() int        { return int(s.attached.Load()) }
func (s *Sink) Detached() int        { return int(s.detached.Load()) }

var (
	_ device.Platform      = (*Platform)(nil)
	_ device.Stream        = (*Stream)(nil)
	_ device.Track         = (*Track)(nil)
	_ device.StillCapturer = (*Track)(nil)
	_ device.RenderTicker  = (*Track)(nil)
	_ device.Sink          = (*Sink)(nil)
)
