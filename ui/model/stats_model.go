package model

import (
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

// StatsModel tracks how long the camera has been live in the current session,
// the accumulated live time and a tally of outcomes. Presenters poll
// Values and Tally. The zero value is ready to use.
type StatsModel struct {
	mu                  sync.Mutex
	active              bool
	sessionStart        time.Time
	lastSessionDuration time.Duration
	accumulated         time.Duration
	tally               Tally
}

// Tally counts resolved outcomes by kind.
type Tally struct {
	Confirmed   int
	Analysis    int
	Manual      int
	LastOutcome scan.Kind
	LastValue   string
}

// Total returns the number of outcomes counted.
func (t Tally) Total() int { return t.Confirmed + t.Analysis + t.Manual }

func NewStatsModel() *StatsModel { return &StatsModel{} }

// OnTick advances the live-time counters from the current open state.
func (m *StatsModel) OnTick(open bool, now time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if open {
		if !m.active { // closed -> open
			m.active = true
			m.sessionStart = now
			m.lastSessionDuration = 0
		}
		m.lastSessionDuration = now.Sub(m.sessionStart)
	} else if m.active { // open -> closed
		m.lastSessionDuration = now.Sub(m.sessionStart)
		m.accumulated += m.lastSessionDuration
		m.active = false
	}
}

// Record counts a resolved outcome.
func (m *StatsModel) Record(out scan.Outcome) {
	if m == nil || !out.Resolved() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch out.Kind {
	case scan.BarcodeConfirmed:
		m.tally.Confirmed++
	case scan.ImageAcceptedForAnalysis:
		m.tally.Analysis++
	case scan.ManualEntryRequired:
		m.tally.Manual++
	}
	m.tally.LastOutcome = out.Kind
	m.tally.LastValue = out.Value
}

// Values returns the current session live time and the total accumulated
// live time, including the ongoing session.
func (m *StatsModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session = m.lastSessionDuration
	total = m.accumulated
	if m.active {
		total += session
	}
	return
}

func (m *StatsModel) Tally() Tally {
	if m == nil {
		return Tally{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tally
}
