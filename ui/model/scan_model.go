package model

import (
	"sync/atomic"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// ScanModel mirrors the state of the active scan session for the view. The
// zero value is closed, scanning and usable. Orchestrator listeners and
// presenter ticks run on different goroutines, so every field is atomic.
type ScanModel struct {
	open      atomic.Bool
	phase     atomic.Int32
	capturing atomic.Bool
	torch     atomic.Bool
	torchCap  atomic.Bool
}

// Open reports whether a session currently holds the camera.
func (m *ScanModel) Open() bool {
	if m == nil {
		return false
	}
	return m.open.Load()
}

// SetOpen stores the open flag. Closing resets phase and capture flags.
func (m *ScanModel) SetOpen(b bool) {
	if m == nil {
		return
	}
	if m.open.Swap(b) == b { // no change
		return
	}
	if !b {
		m.phase.Store(int32(scan.Scanning))
		m.capturing.Store(false)
		m.torch.Store(false)
		m.torchCap.Store(false)
	}
}

func (m *ScanModel) Phase() scan.Phase {
	if m == nil {
		return scan.Scanning
	}
	return scan.Phase(m.phase.Load())
}

func (m *ScanModel) SetPhase(p scan.Phase) {
	if m == nil {
		return
	}
	m.phase.Store(int32(p))
}

func (m *ScanModel) Capturing() bool {
	if m == nil {
		return false
	}
	return m.capturing.Load()
}

func (m *ScanModel) SetCapturing(b bool) {
	if m == nil {
		return
	}
	m.capturing.Store(b)
}

// Torch reports the flashlight state and whether it can be toggled at all.
func (m *ScanModel) Torch() (on, supported bool) {
	if m == nil {
		return false, false
	}
	return m.torch.Load(), m.torchCap.Load()
}

func (m *ScanModel) SetTorch(on, supported bool) {
	if m == nil {
		return
	}
	m.torch.Store(on && supported)
	m.torchCap.Store(supported)
}
