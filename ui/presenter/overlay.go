package presenter

import (
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// DefaultOverlayOffDelay is how long Scanning must hold before the overlay
// hides.
const DefaultOverlayOffDelay = 150 * time.Millisecond

// OverlayView shows or hides the non-scanning overlay (spinner, result card).
type OverlayView interface{ ShowOverlay(bool) }

// Overlay debounces the overlay. Any non-scanning phase shows it at once;
// it hides only after Scanning has held for the off delay, so short
// round trips through Scanning do not flicker.
type Overlay struct {
	view  OverlayView
	delay time.Duration

	mu      sync.Mutex
	visible bool
	timer   *time.Timer
	gen     uint64
}

func NewOverlay(view OverlayView, offDelay time.Duration) *Overlay {
	if offDelay <= 0 {
		offDelay = DefaultOverlayOffDelay
	}
	return &Overlay{view: view, delay: offDelay}
}

// OnPhase matches scan.PhaseListener.
func (o *Overlay) OnPhase(_, next scan.Phase) {
	if o == nil || o.view == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if next != scan.Scanning {
		if !o.visible {
			o.visible = true
			o.view.ShowOverlay(true)
		}
		return
	}
	if !o.visible {
		return
	}
	gen := o.gen
	o.timer = time.AfterFunc(o.delay, func() { o.hide(gen) })
}

func (o *Overlay) hide(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.gen || !o.visible { // superseded
		return
	}
	o.visible = false
	o.timer = nil
	o.view.ShowOverlay(false)
}

// Visible reports the overlay state last pushed to the view.
func (o *Overlay) Visible() bool {
	if o == nil {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.visible
}

// Stop cancels a pending hide.
func (o *Overlay) Stop() {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gen++
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
