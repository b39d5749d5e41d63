package presenter

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// Session narrows *scan.Session to what the controls drive.
type Session interface {
	Capture() (scan.Outcome, error)
	Torch(on bool) error
	TorchOn() bool
	TorchSupported() bool
	ManualEntry() bool
	Close()
	Closed() bool
	Outcome() scan.Outcome
	OnPhase(scan.PhaseListener)
	OnOutcome(scan.OutcomeListener)
}

var _ Session = (*scan.Session)(nil)

// Opener opens a new scan session.
type Opener func(ctx context.Context) Session

// ControlModel is the slice of model.ScanModel the controls write.
type ControlModel interface {
	Open() bool
	SetOpen(bool)
	SetCapturing(bool)
	Torch() (on, supported bool)
	SetTorch(on, supported bool)
}

// ControlView updates the buttons and the result card.
type ControlView interface {
	ControlsEnabled(bool)
	ShowOutcome(scan.Outcome)
}

// ControlPresenter owns the user intents: open, capture now, torch, manual
// entry and dismiss.
type ControlPresenter struct {
	model  ControlModel
	open   Opener
	view   ControlView
	logger *slog.Logger

	phaseLs   []scan.PhaseListener
	outcomeLs []scan.OutcomeListener

	mu      sync.Mutex
	session Session
}

func NewControlPresenter(model ControlModel, open Opener, view ControlView, logger *slog.Logger) *ControlPresenter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ControlPresenter{model: model, open: open, view: view, logger: logger}
}

// Observe attaches listeners to every session this presenter opens.
func (c *ControlPresenter) Observe(phase scan.PhaseListener, outcome scan.OutcomeListener) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if phase != nil {
		c.phaseLs = append(c.phaseLs, phase)
	}
	if outcome != nil {
		c.outcomeLs = append(c.outcomeLs, outcome)
	}
}

// Start opens a session unless one is already live. Idempotent.
func (c *ControlPresenter) Start(ctx context.Context) Session {
	if c == nil || c.open == nil || c.model == nil || c.view == nil {
		return nil
	}
	c.mu.Lock()
	if c.session != nil && !c.session.Closed() && !c.session.Outcome().Resolved() {
		s := c.session
		c.mu.Unlock()
		return s
	}
	s := c.open(ctx)
	c.session = s
	phaseLs, outcomeLs := c.phaseLs, c.outcomeLs
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	for _, l := range phaseLs {
		s.OnPhase(l)
	}
	live := !s.Closed() && !s.Outcome().Resolved()
	c.model.SetOpen(live)
	c.model.SetTorch(s.TorchOn(), s.TorchSupported())
	c.view.ControlsEnabled(live)
	s.OnOutcome(func(out scan.Outcome) {
		c.model.SetOpen(false)
		c.view.ControlsEnabled(false)
		c.view.ShowOutcome(out)
		for _, l := range outcomeLs {
			l(out)
		}
	})
	return s
}

// Session returns the current session, or nil.
func (c *ControlPresenter) Session() Session {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// CaptureNow runs the tier chain on the current session and blocks until it
// resolves.
func (c *ControlPresenter) CaptureNow() (scan.Outcome, error) {
	s := c.Session()
	if s == nil {
		return scan.Outcome{}, scan.ErrSessionClosed
	}
	c.model.SetCapturing(true)
	c.view.ControlsEnabled(false)
	defer c.model.SetCapturing(false)
	out, err := s.Capture()
	if err != nil {
		c.logger.Debug("capture rejected", "error", err)
		if !s.Closed() && !s.Outcome().Resolved() {
			c.view.ControlsEnabled(true)
		}
	}
	return out, err
}

// ToggleTorch flips the flashlight and mirrors the resulting state.
func (c *ControlPresenter) ToggleTorch() error {
	s := c.Session()
	if s == nil {
		return scan.ErrSessionClosed
	}
	on, _ := c.model.Torch()
	err := s.Torch(!on)
	c.model.SetTorch(s.TorchOn(), s.TorchSupported())
	if err != nil {
		c.logger.Debug("torch toggle failed", "error", err)
	}
	return err
}

// ManualEntry switches the session to manual entry.
func (c *ControlPresenter) ManualEntry() bool {
	s := c.Session()
	if s == nil {
		return false
	}
	return s.ManualEntry()
}

// Dismiss closes the session and releases the camera. Idempotent.
func (c *ControlPresenter) Dismiss() {
	if c == nil {
		return
	}
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s == nil {
		return
	}
	s.Close()
	c.model.SetOpen(false)
	c.view.ControlsEnabled(false)
}
