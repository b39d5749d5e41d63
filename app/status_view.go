package app

import (
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/ui/model"
	"github.com/soocke/pixel-scan-go/ui/presenter"
)

// StatusView renders presenter output as log lines for headless runs.
type StatusView struct {
	logger *slog.Logger
}

var (
	_ presenter.PhaseView   = (*StatusView)(nil)
	_ presenter.OverlayView = (*StatusView)(nil)
	_ presenter.ControlView = (*StatusView)(nil)
	_ presenter.StatsView   = (*StatusView)(nil)
)

func NewStatusView(logger *slog.Logger) *StatusView { return &StatusView{logger: logger} }

func (v *StatusView) SetPhaseLabel(s string) { v.logger.Info(s) }

func (v *StatusView) ShowOverlay(b bool) { v.logger.Debug("overlay", "visible", b) }

func (v *StatusView) ControlsEnabled(b bool) { v.logger.Debug("controls", "enabled", b) }

func (v *StatusView) ShowOutcome(o scan.Outcome) {
	attrs := []any{"kind", o.Kind.String()}
	if o.Value != "" {
		attrs = append(attrs, "value", o.Value, "format", o.Format)
	}
	if o.Reason != scan.ReasonNone {
		attrs = append(attrs, "reason", o.Reason.String())
	}
	if len(o.Upload) > 0 {
		attrs = append(attrs, "upload", humanize.Bytes(uint64(len(o.Upload))))
	}
	v.logger.Info("outcome", attrs...)
}

func (v *StatusView) SetSession(session, total time.Duration) {
	v.logger.Debug("camera live", "session", session.Round(time.Millisecond), "total", total.Round(time.Millisecond))
}

func (v *StatusView) SetTally(t model.Tally) {
	v.logger.Info("scan tally", "confirmed", t.Confirmed, "analysis", t.Analysis, "manual", t.Manual)
}
