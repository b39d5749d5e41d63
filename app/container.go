package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/domain/capture"
	"github.com/soocke/pixel-scan-go/domain/decode"
	"github.com/soocke/pixel-scan-go/domain/guardian"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/remote"
	"github.com/soocke/pixel-scan-go/ui/model"
	"github.com/soocke/pixel-scan-go/ui/presenter"
)

// Container assembles services, models, presenters and the view.
type Container struct {
	Config       *config.Config
	Logger       *slog.Logger
	Platform     device.Platform
	Guardian     *guardian.Guardian
	Capture      *capture.Service
	Engine       *decode.Engine
	Lookup       remote.Lookup
	Analyzer     remote.Analyzer
	Orchestrator *scan.Orchestrator
	Preview      *Preview

	Scan  *model.ScanModel
	Stats *model.StatsModel
	View  *StatusView

	// Presenters
	PhasePresenter *presenter.PhasePresenter
	Overlay        *presenter.Overlay
	Controls       *presenter.ControlPresenter
	Watcher        *presenter.LifecycleWatcher
	StatsPresenter *presenter.StatsPresenter
	Loop           *presenter.Loop
}

// BuildContainer constructs all components. A nil platform is resolved from
// cfg.Device. The guardian becomes the process default so shutdown paths can
// hard-stop every camera.
func BuildContainer(cfg *config.Config, logger *slog.Logger, platform device.Platform) (*Container, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c := &Container{Config: cfg, Logger: logger}
	if platform == nil {
		p, err := NewPlatform(cfg.Device, logger)
		if err != nil {
			return nil, err
		}
		platform = p
	}
	c.Platform = platform
	c.Guardian = guardian.New(platform, logger)
	guardian.SetDefault(c.Guardian)
	c.Capture = capture.NewService(logger)
	c.Engine = decode.NewEngine(decode.NewZXing(), EngineOptions(cfg), logger).WarmUp()
	if cfg.LookupURL != "" {
		c.Lookup = remote.NewHTTPLookup(cfg.LookupURL, cfg.LookupTimeout(), cfg.LookupCacheSize, logger)
	}
	if cfg.AnalyzeURL != "" {
		c.Analyzer = remote.NewHTTPAnalyzer(cfg.AnalyzeURL, cfg.AnalyzeTimeout(), logger)
	}
	c.Preview = NewPreview(logger)
	c.Orchestrator = scan.New(scan.Deps{
		Acquirer: c.Guardian,
		Capturer: c.Capture,
		Engine:   c.Engine,
		Lookup:   c.Lookup,
		Analyzer: c.Analyzer,
		Feed:     c.Preview,
		Sink:     c.Preview,
		Logger:   logger,
	}, scan.OptionsFromConfig(cfg))

	// Models and view
	c.Scan = &model.ScanModel{}
	c.Stats = model.NewStatsModel()
	c.View = NewStatusView(logger)

	// Presenters
	c.PhasePresenter = presenter.NewPhasePresenter(c.Scan, c.View)
	c.Overlay = presenter.NewOverlay(c.View, cfg.OverlayOffDelay())
	c.Controls = presenter.NewControlPresenter(c.Scan, func(ctx context.Context) presenter.Session {
		return c.Orchestrator.Open(ctx, cfg.OwnerTag)
	}, c.View, logger)
	c.Watcher = presenter.NewLifecycleWatcher(Foreground, c.Controls.Dismiss, logger)
	c.Controls.Observe(c.PhasePresenter.OnPhase, c.Stats.Record)
	c.Controls.Observe(c.Overlay.OnPhase, nil)
	c.Controls.Observe(c.Watcher.OnPhase, nil)
	c.StatsPresenter = presenter.NewStatsPresenter(c.Stats, c.Scan, c.View)
	c.Loop = presenter.NewLoop(c.PhasePresenter, c.StatsPresenter, nil)
	return c, nil
}

// EngineOptions derives the decode pass plans from cfg.
func EngineOptions(cfg *config.Config) decode.Options {
	opts := decode.DefaultOptions()
	opts.ROIWidth, opts.ROIHeight = cfg.ROIWidth, cfg.ROIHeight
	if len(cfg.QuickScales) > 0 {
		opts.QuickScales = append([]float64(nil), cfg.QuickScales...)
	}
	opts.Rotations = append([]int(nil), cfg.Rotations...)
	opts.TryInvert = cfg.TryInvert
	opts.Full = decode.Budget{Deadline: cfg.FullBudget(), MaxPasses: cfg.FullMaxPasses}.Normalize()
	return opts
}
