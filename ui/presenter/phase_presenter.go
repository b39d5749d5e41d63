package presenter

import (
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// PhaseModel stores the phase the view reflects.
type PhaseModel interface{ SetPhase(scan.Phase) }

// PhaseView sets the phase label in the view.
type PhaseView interface{ SetPhaseLabel(string) }

// PhasePresenter receives session phase changes and reflects the most recent
// one on the next Tick.
type PhasePresenter struct {
	model PhaseModel
	view  PhaseView

	mu      sync.Mutex
	latest  scan.Phase
	shown   bool
	pending []scan.Phase
}

func NewPhasePresenter(model PhaseModel, view PhaseView) *PhasePresenter {
	return &PhasePresenter{model: model, view: view}
}

// OnPhase queues a transition. It matches scan.PhaseListener and may be
// called from any goroutine.
func (p *PhasePresenter) OnPhase(_, next scan.Phase) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, next)
	p.mu.Unlock()
	if p.model != nil {
		p.model.SetPhase(next)
	}
}

// Reset forgets the reflected phase so a new session starts at Scanning.
func (p *PhasePresenter) Reset() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending[:0], scan.Scanning)
	p.mu.Unlock()
	if p.model != nil {
		p.model.SetPhase(scan.Scanning)
	}
}

// Tick flushes queued phases and updates the view with the most recent one.
func (p *PhasePresenter) Tick(time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	last := p.pending[len(p.pending)-1]
	p.pending = p.pending[:0]
	changed := !p.shown || last != p.latest
	p.latest, p.shown = last, true
	p.mu.Unlock()
	if changed {
		p.view.SetPhaseLabel("Phase: " + last.String())
	}
}
