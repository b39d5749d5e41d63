// Package guardian owns the camera device handle. Every live handle is keyed by
// an owner tag; at most one handle per owner exists at a time and every handle
// is released exactly once, either by Release or by HardStop.
package guardian

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/pixel-scan-go/device"
)

// ErrNoPlatform is returned by a guardian created without a device platform.
var ErrNoPlatform = errors.New("guardian: no device platform")

// Handle is a live camera session: a negotiated stream plus its selected video
// track. Only the guardian and the session that acquired it may hold one.
type Handle struct {
	ID         string
	Owner      string
	Profile    device.Constraints
	AcquiredAt time.Time

	stream   device.Stream
	track    device.Track
	released atomic.Bool

	mu    sync.Mutex
	sink  device.Sink
	hooks []func()
}

// Track returns the selected video track.
func (h *Handle) Track() device.Track {
	if h == nil {
		return nil
	}
	return h.track
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool { return h == nil || h.released.Load() }

// AttachSink binds the presentation video sink to the stream. The sink is
// detached on release.
func (h *Handle) AttachSink(s device.Sink) {
	if h == nil || s == nil || h.Released() {
		return
	}
	h.mu.Lock()
	h.sink = s
	h.mu.Unlock()
	s.Attach(h.stream)
}

// OnRelease registers fn to run before the tracks are stopped. Hooks run in
// registration order. Registering on a released handle runs fn immediately.
func (h *Handle) OnRelease(fn func()) {
	if h == nil || fn == nil {
		return
	}
	h.mu.Lock()
	if h.released.Load() {
		h.mu.Unlock()
		fn()
		return
	}
	h.hooks = append(h.hooks, fn)
	h.mu.Unlock()
}

// release stops the device. It returns false when the handle was already released.
func (h *Handle) release(logger *slog.Logger) bool {
	h.mu.Lock()
	if !h.released.CompareAndSwap(false, true) {
		h.mu.Unlock()
		return false
	}
	hooks := h.hooks
	h.hooks = nil
	sink := h.sink
	h.sink = nil
	h.mu.Unlock()

	for _, fn := range hooks {
		runHook(logger, fn)
	}
	if sink != nil {
		sink.Detach()
	}
	for _, tr := range h.stream.Tracks() {
		tr.Stop()
	}
	h.stream.Stop()
	return true
}

func runHook(logger *slog.Logger, fn func()) {
	defer func() {
		if r := recover(); r != nil && logger != nil {
			logger.Error("guardian: release hook panic", "error", r)
		}
	}()
	fn()
}

// Stats summarises guardian activity.
type Stats struct {
	Acquired  uint64
	Released  uint64
	Forced    uint64
	HardStops uint64
	Live      int
}

// Guardian enforces single ownership of camera handles.
type Guardian struct {
	platform device.Platform
	logger   *slog.Logger

	mu   sync.Mutex
	live map[string]*Handle

	acquired  atomic.Uint64
	released  atomic.Uint64
	forced    atomic.Uint64
	hardStops atomic.Uint64
}

// New constructs a guardian negotiating streams through platform.
func New(platform device.Platform, logger *slog.Logger) *Guardian {
	return &Guardian{platform: platform, logger: logger, live: make(map[string]*Handle)}
}

// Acquire negotiates a stream for owner. The preferred profile is tried first
// and, unless access was denied, retried once with device.Minimal. A handle
// already held by owner is force-released before the new one is issued.
//
// Errors wrap device.ErrPermissionDenied or device.ErrDeviceUnavailable.
func (g *Guardian) Acquire(ctx context.Context, owner string, preferred device.Constraints) (*Handle, error) {
	if g == nil || g.platform == nil {
		return nil, fmt.Errorf("guardian: acquire %q: %w: %w", owner, device.ErrDeviceUnavailable, ErrNoPlatform)
	}
	if g.Release(owner) {
		g.forced.Add(1)
		if g.logger != nil {
			g.logger.Warn("guardian: owner re-acquired without release", "owner", owner)
		}
	}

	profile := preferred
	stream, err := g.platform.Negotiate(ctx, profile)
	if err != nil && !errors.Is(err, device.ErrPermissionDenied) && ctx.Err() == nil && !preferred.IsMinimal() {
		if g.logger != nil {
			g.logger.Info("guardian: preferred profile failed, relaxing constraints",
				"owner", owner, "profile", preferred.String(), "error", err)
		}
		profile = device.Minimal
		stream, err = g.platform.Negotiate(ctx, profile)
	}
	if err != nil {
		if errors.Is(err, device.ErrPermissionDenied) {
			return nil, fmt.Errorf("guardian: acquire %q: %w", owner, err)
		}
		if errors.Is(err, device.ErrDeviceUnavailable) {
			return nil, fmt.Errorf("guardian: acquire %q: %w", owner, err)
		}
		return nil, fmt.Errorf("guardian: acquire %q: %w: %w", owner, device.ErrDeviceUnavailable, err)
	}
	if stream == nil || stream.VideoTrack() == nil {
		if stream != nil {
			stream.Stop()
		}
		return nil, fmt.Errorf("guardian: acquire %q: %w: no video track", owner, device.ErrDeviceUnavailable)
	}

	h := &Handle{
		ID:         uuid.NewString(),
		Owner:      owner,
		Profile:    profile,
		AcquiredAt: time.Now(),
		stream:     stream,
		track:      stream.VideoTrack(),
	}

	g.mu.Lock()
	prev := g.live[owner]
	g.live[owner] = h
	g.mu.Unlock()
	// A concurrent Acquire for the same owner may have slipped in between the
	// initial release and now; the newest handle wins.
	if prev != nil && prev.release(g.logger) {
		g.released.Add(1)
		g.forced.Add(1)
	}

	g.acquired.Add(1)
	if g.logger != nil {
		st := h.track.Settings()
		g.logger.Debug("guardian: handle acquired",
			"owner", owner, "handle", h.ID, "profile", profile.String(),
			"width", st.Width, "height", st.Height)
	}
	return h, nil
}

// Release stops the handle held by owner. It reports whether a live handle was
// released; releasing an unknown or already released owner is a no-op.
func (g *Guardian) Release(owner string) bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	h := g.live[owner]
	delete(g.live, owner)
	g.mu.Unlock()
	if h == nil || !h.release(g.logger) {
		return false
	}
	g.released.Add(1)
	if g.logger != nil {
		g.logger.Debug("guardian: handle released", "owner", owner, "handle", h.ID, "held", time.Since(h.AcquiredAt))
	}
	return true
}

// ReleaseHandle releases h only if it is still the handle registered for its
// owner, so a stale session cannot tear down its successor's camera.
func (g *Guardian) ReleaseHandle(h *Handle) bool {
	if g == nil || h == nil {
		return false
	}
	g.mu.Lock()
	if g.live[h.Owner] == h {
		delete(g.live, h.Owner)
	}
	g.mu.Unlock()
	if !h.release(g.logger) {
		return false
	}
	g.released.Add(1)
	return true
}

// HardStop releases every live handle regardless of owner. It is meant for
// teardown paths where normal ordering cannot be guaranteed.
func (g *Guardian) HardStop(reason string) int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	handles := make([]*Handle, 0, len(g.live))
	for owner, h := range g.live {
		handles = append(handles, h)
		delete(g.live, owner)
	}
	g.mu.Unlock()

	n := 0
	for _, h := range handles {
		if h.release(g.logger) {
			n++
		}
	}
	g.released.Add(uint64(n))
	g.hardStops.Add(1)
	if g.logger != nil && n > 0 {
		g.logger.Warn("guardian: hard stop", "reason", reason, "released", n)
	}
	return n
}

// Holds reports whether owner currently holds a live handle.
func (g *Guardian) Holds(owner string) bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.live[owner]
	return ok
}

// Live returns the number of live handles.
func (g *Guardian) Live() int {
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.live)
}

func (g *Guardian) Stats() Stats {
	if g == nil {
		return Stats{}
	}
	return Stats{
		Acquired:  g.acquired.Load(),
		Released:  g.released.Load(),
		Forced:    g.forced.Load(),
		HardStops: g.hardStops.Load(),
		Live:      g.Live(),
	}
}

var (
	defaultMu sync.Mutex
	defaultG  *Guardian
)

// SetDefault installs g as the process-wide guardian.
func SetDefault(g *Guardian) {
	defaultMu.Lock()
	defaultG = g
	defaultMu.Unlock()
}

// Default returns the process-wide guardian, creating a platform-less one on
// first use. A platform-less guardian fails every Acquire with
// device.ErrDeviceUnavailable but can still be hard-stopped.
func Default() *Guardian {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultG == nil {
		defaultG = New(nil, slog.Default())
	}
	return defaultG
}

// HardStop releases every handle of the process-wide guardian.
func HardStop(reason string) int { return Default().HardStop(reason) }
