// Package torch toggles the device flashlight on a guardian-owned handle.
package torch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soocke/pixel-scan-go/domain/guardian"
)

var (
	// ErrUnsupported is returned when the active track has no torch.
	ErrUnsupported = errors.New("torch: unsupported")
	// ErrReleased is returned after the handle has been released.
	ErrReleased = errors.New("torch: handle released")
)

// Controller is a best-effort torch switch. It never assumes support: the
// track's capabilities are queried before every write. When the handle is
// released the torch is forced off.
type Controller struct {
	h      *guardian.Handle
	logger *slog.Logger

	mu       sync.Mutex
	on       bool
	released bool
}

// New binds a controller to h and registers the release hook that restores
// the torch to off.
func New(h *guardian.Handle, logger *slog.Logger) *Controller {
	c := &Controller{h: h, logger: logger}
	if h != nil {
		h.OnRelease(c.restore)
	}
	return c
}

// Supported reports whether the active track advertises a torch.
func (c *Controller) Supported() bool {
	if c == nil || c.h == nil || c.h.Released() {
		return false
	}
	tr := c.h.Track()
	return tr != nil && tr.Capabilities().Torch
}

// On reports the last successfully applied torch state.
func (c *Controller) On() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Toggle switches the torch. It holds the controller lock across the
// capability check and the write, so the release hook either runs first and
// Toggle fails with ErrReleased, or runs after and switches the torch off.
func (c *Controller) Toggle(on bool) error {
	if c == nil || c.h == nil {
		return ErrReleased
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.h.Released() {
		return ErrReleased
	}
	tr := c.h.Track()
	if tr == nil || !tr.Capabilities().Torch {
		return ErrUnsupported
	}
	if c.h.Released() {
		return ErrReleased
	}
	if c.on == on {
		return nil
	}
	if err := tr.ApplyTorch(on); err != nil {
		return fmt.Errorf("torch: apply %v: %w", on, err)
	}
	c.on = on
	if c.logger != nil {
		c.logger.Debug("torch toggled", "on", on, "owner", c.h.Owner)
	}
	return nil
}

// restore runs as a release hook, before the track is stopped.
func (c *Controller) restore() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	if !c.on {
		return
	}
	tr := c.h.Track()
	if tr != nil {
		if err := tr.ApplyTorch(false); err != nil && c.logger != nil {
			c.logger.Warn("torch: restore off failed", "error", err)
		}
	}
	c.on = false
}
