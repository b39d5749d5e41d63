package scan

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/pixel-scan-go/domain/capture"
	"github.com/soocke/pixel-scan-go/domain/decode"
	"github.com/soocke/pixel-scan-go/domain/guardian"
	"github.com/soocke/pixel-scan-go/domain/torch"
)

// Session is one mount of the scan surface. It owns its camera handle and
// releases it on every exit path. The session context is the liveness token:
// once Close cancels it, no pending continuation may change session state.
type Session struct {
	id       string
	owner    string
	o        *Orchestrator
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	openedAt time.Time

	handle *guardian.Handle
	torch  *torch.Controller

	capturing atomic.Bool
	closeOnce sync.Once

	mu            sync.Mutex
	phase         Phase
	presentedFrom Phase
	outcome     Outcome
	attempts    []decode.Attempt
	burstWinner int
	latest      capture.StillFrame
	runCancel   context.CancelFunc
	phaseLs     []PhaseListener
	outcomeLs   []OutcomeListener
}

func (s *Session) attach(h *guardian.Handle) {
	s.handle = h
	s.torch = torch.New(h, s.logger)
	if s.o.deps.Sink != nil {
		h.AttachSink(s.o.deps.Sink)
	}
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

// Context is cancelled when the session closes.
func (s *Session) Context() context.Context { return s.ctx }

// Closed reports whether Close was called.
func (s *Session) Closed() bool { return s.ctx.Err() != nil }

// Capturing reports whether a capture pipeline is running.
func (s *Session) Capturing() bool { return s.capturing.Load() }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Outcome returns the terminal outcome, or the zero Outcome while unresolved.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Attempts returns the successful decode passes recorded so far.
func (s *Session) Attempts() []decode.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]decode.Attempt(nil), s.attempts...)
}

// BurstWinner is the 1-based index of the burst attempt that produced the
// first candidate, or 0 when no burst attempt won.
func (s *Session) BurstWinner() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.burstWinner
}

// OnPhase registers a phase listener. Listeners run outside the session lock.
// Registering on a session that already presents its outcome delivers that
// final transition immediately.
func (s *Session) OnPhase(l PhaseListener) {
	if l == nil {
		return
	}
	s.mu.Lock()
	presented := s.phase == Presenting
	from := s.presentedFrom
	if !presented {
		s.phaseLs = append(s.phaseLs, l)
	}
	s.mu.Unlock()
	if presented {
		l(from, Presenting)
	}
}

// OnOutcome registers an outcome listener. Registering after resolution calls
// l immediately.
func (s *Session) OnOutcome(l OutcomeListener) {
	if l == nil {
		return
	}
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

// TorchSupported reports whether the active camera has a torch.
func (s *Session) TorchSupported() bool { return s.torch.Supported() }

// TorchOn reports the current torch state.
func (s *Session) TorchOn() bool { return s.torch.On() }

// Torch switches the flashlight. It fails with torch.ErrUnsupported when the
// camera has none.
func (s *Session) Torch(on bool) error {
	if s.torch == nil {
		return ErrNoCamera
	}
	if s.Closed() {
		return ErrSessionClosed
	}
	return s.torch.Toggle(on)
}

// ManualEntry resolves the session to ManualEntryRequired(UserRequested). An
// in-flight capture is abandoned. It reports whether this call resolved the
// session.
func (s *Session) ManualEntry() bool {
	return s.resolve(Outcome{Kind: ManualEntryRequired, Reason: UserRequested})
}

// Close tears the session down: the liveness token is cancelled and the camera
// released immediately, even while a capture is in flight. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		s.mu.Unlock()
		s.o.closed.Add(1)
		s.releaseCamera()
		s.logger.Debug("scan: session closed", "phase", s.Phase().String(), "lifetime", time.Since(s.openedAt))
	})
}

func (s *Session) releaseCamera() {
	if s.handle != nil && s.o.deps.Acquirer != nil {
		s.o.deps.Acquirer.ReleaseHandle(s.handle)
	}
}

// mutate runs fn under the session lock if the session is still live.
func (s *Session) mutate(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

func (s *Session) transition(next Phase) bool {
	var prev Phase
	var ls []PhaseListener
	ok := false
	s.mutate(func() {
		prev = s.phase
		if !canTransition(prev, next) {
			return
		}
		s.phase = next
		ls = append(ls, s.phaseLs...)
		ok = true
	})
	if !ok {
		return false
	}
	s.logger.Debug("scan: phase transition", "from", prev.String(), "to", next.String())
	for _, l := range ls {
		l(prev, next)
	}
	return true
}

// resolve sets the terminal outcome once. The first resolution wins; later
// ones and any after Close are ignored. Resolution releases the camera.
func (s *Session) resolve(out Outcome) bool {
	out.ResolvedAt = time.Now()
	var prev Phase
	var phaseLs []PhaseListener
	var outLs []OutcomeListener
	var runCancel context.CancelFunc
	ok := false
	s.mutate(func() {
		if s.outcome.Resolved() {
			return
		}
		prev = s.phase
		s.phase = Presenting
		s.presentedFrom = prev
		s.outcome = out
		phaseLs = append(phaseLs, s.phaseLs...)
		outLs = s.outcomeLs
		s.outcomeLs = nil
		runCancel = s.runCancel
		ok = true
	})
	if !ok {
		return false
	}
	if runCancel != nil {
		runCancel()
	}
	s.releaseCamera()
	s.o.count(out)
	s.logger.Info("scan: resolved",
		"outcome", out.Kind.String(),
		"reason", out.Reason.String(),
		"value", out.Value,
		"elapsed", time.Since(s.openedAt),
	)
	if prev != Presenting {
		for _, l := range phaseLs {
			l(prev, Presenting)
		}
	}
	for _, l := range outLs {
		l(out)
	}
	return true
}

func (s *Session) recordAttempt(a decode.Attempt) bool {
	return s.mutate(func() { s.attempts = append(s.attempts, a) })
}

func (s *Session) noteFrame(f capture.StillFrame) {
	s.mutate(func() {
		if f.Sequence >= s.latest.Sequence {
			s.latest = f
		}
	})
}

func (s *Session) latestFrame() capture.StillFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}
