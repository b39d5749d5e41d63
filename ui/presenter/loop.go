package presenter

import "time"

// Loop aggregates presenters and drives periodic updates. The zero value is
// usable (methods are nil-safe).
type Loop struct {
	Phase    *PhasePresenter
	Stats    *StatsPresenter
	Schedule func()
}

func NewLoop(phase *PhasePresenter, stats *StatsPresenter, schedule func()) *Loop {
	return &Loop{Phase: phase, Stats: stats, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Phase != nil {
		l.Phase.Tick(now)
	}
	if l.Stats != nil {
		l.Stats.Tick(now)
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
