package presenter

import (
	"time"

	"github.com/soocke/pixel-scan-go/ui/model"
)

// OpenModel reports whether a session holds the camera.
type OpenModel interface{ Open() bool }

// StatsView displays live time and outcome counts.
type StatsView interface {
	SetSession(session, total time.Duration)
	SetTally(model.Tally)
}

// StatsPresenter pushes live time and outcome tallies from the model to the
// view.
type StatsPresenter struct {
	stats *model.StatsModel
	scan  OpenModel
	view  StatsView
	last  model.Tally
}

func NewStatsPresenter(stats *model.StatsModel, scan OpenModel, view StatsView) *StatsPresenter {
	return &StatsPresenter{stats: stats, scan: scan, view: view}
}

// Tick advances the live-time counters and refreshes the view. The tally is
// pushed only when it changes.
func (p *StatsPresenter) Tick(now time.Time) {
	if p == nil || p.stats == nil || p.scan == nil || p.view == nil {
		return
	}
	p.stats.OnTick(p.scan.Open(), now)
	s, t := p.stats.Values()
	p.view.SetSession(s, t)
	if tally := p.stats.Tally(); tally != p.last {
		p.last = tally
		p.view.SetTally(tally)
	}
}
