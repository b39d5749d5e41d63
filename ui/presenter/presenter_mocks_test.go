package presenter

import (
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/domain/torch"
	"github.com/soocke/pixel-scan-go/ui/model"
)

type mockPhaseView struct {
	mu     sync.Mutex
	labels []string
}

func (v *mockPhaseView) SetPhaseLabel(s string) {
	v.mu.Lock()
	v.labels = append(v.labels, s)
	v.mu.Unlock()
}

type mockOverlayView struct {
	mu    sync.Mutex
	calls []bool
}

func (v *mockOverlayView) ShowOverlay(b bool) {
	v.mu.Lock()
	v.calls = append(v.calls, b)
	v.mu.Unlock()
}

func (v *mockOverlayView) snapshot() []bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]bool(nil), v.calls...)
}

type mockControlView struct {
	mu       sync.Mutex
	enabled  []bool
	outcomes []scan.Outcome
}

func (v *mockControlView) ControlsEnabled(b bool) {
	v.mu.Lock()
	v.enabled = append(v.enabled, b)
	v.mu.Unlock()
}

func (v *mockControlView) ShowOutcome(o scan.Outcome) {
	v.mu.Lock()
	v.outcomes = append(v.outcomes, o)
	v.mu.Unlock()
}

func (v *mockControlView) lastEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.enabled) > 0 && v.enabled[len(v.enabled)-1]
}

type mockStatsView struct {
	session, total time.Duration
	tallies        []model.Tally
}

func (v *mockStatsView) SetSession(s, t time.Duration) { v.session, v.total = s, t }
func (v *mockStatsView) SetTally(t model.Tally)        { v.tallies = append(v.tallies, t) }

// mockSession resolves Capture to a fixed outcome and emits the phase chain.
type mockSession struct {
	mu        sync.Mutex
	result    scan.Outcome
	outcome   scan.Outcome
	closed    bool
	torch     bool
	torchCap  bool
	captures  int
	closes    int
	phaseLs   []scan.PhaseListener
	outcomeLs []scan.OutcomeListener
}

func (s *mockSession) Capture() (scan.Outcome, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return scan.Outcome{}, scan.ErrSessionClosed
	}
	s.captures++
	ls := append([]scan.PhaseListener(nil), s.phaseLs...)
	s.mu.Unlock()
	for _, l := range ls {
		l(scan.Scanning, scan.Captured)
		l(scan.Captured, scan.Analyzing)
		l(scan.Analyzing, scan.Presenting)
	}
	s.resolve(s.result)
	return s.result, nil
}

func (s *mockSession) resolve(out scan.Outcome) bool {
	s.mu.Lock()
	if s.outcome.Resolved() {
		s.mu.Unlock()
		return false
	}
	s.outcome = out
	ls := append([]scan.OutcomeListener(nil), s.outcomeLs...)
	s.mu.Unlock()
	for _, l := range ls {
		l(out)
	}
	return true
}

func (s *mockSession) Torch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.torchCap {
		return torch.ErrUnsupported
	}
	s.torch = on
	return nil
}

func (s *mockSession) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torch
}

func (s *mockSession) TorchSupported() bool { return s.torchCap }

func (s *mockSession) ManualEntry() bool {
	return s.resolve(scan.Outcome{Kind: scan.ManualEntryRequired, Reason: scan.UserRequested})
}

func (s *mockSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.closed = true
}

func (s *mockSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *mockSession) Outcome() scan.Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

func (s *mockSession) OnPhase(l scan.PhaseListener) {
	s.mu.Lock()
	s.phaseLs = append(s.phaseLs, l)
	s.mu.Unlock()
}

func (s *mockSession) OnOutcome(l scan.OutcomeListener) {
	s.mu.Lock()
	out := s.outcome
	if !out.Resolved() {
		s.outcomeLs = append(s.outcomeLs, l)
	}
	s.mu.Unlock()
	if out.Resolved() {
		l(out)
	}
}
