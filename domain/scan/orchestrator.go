// Package scan sequences a barcode scan: camera acquisition, still capture,
// tiered decoding with remote confirmation, and the image-analysis and manual
// entry fallbacks. A Session is the unit of work; the Orchestrator builds
// sessions from shared collaborators.
package scan

import (
	"context"
	"image"
	"io"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/domain/capture"
	"github.com/soocke/pixel-scan-go/domain/decode"
	"github.com/soocke/pixel-scan-go/domain/guardian"
	"github.com/soocke/pixel-scan-go/remote"
)

const defaultCaptureTimeout = 3 * time.Second

// Acquirer hands out camera handles. *guardian.Guardian satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, owner string, preferred device.Constraints) (*guardian.Handle, error)
	ReleaseHandle(h *guardian.Handle) bool
}

// Engine decodes stills. *decode.Engine satisfies it.
type Engine interface {
	ScanQuick(ctx context.Context, img image.Image, b decode.Budget) (decode.Attempt, bool)
	ScanFull(ctx context.Context, img image.Image) (decode.Attempt, bool)
}

// Feed is the live preview. Freeze holds the current picture while a capture
// is analysed; Unfreeze resumes it.
type Feed interface {
	Freeze()
	Unfreeze()
}

// PhaseListener is called on each successful phase transition.
type PhaseListener func(prev, next Phase)

// OutcomeListener is called once when a session resolves.
type OutcomeListener func(Outcome)

// Options carries the policy knobs of the tier chain.
type Options struct {
	Owner          string
	Preferred      device.Constraints
	Quick          decode.Budget
	BurstAttempts  int
	BurstStagger   time.Duration
	CaptureTimeout time.Duration
	LookupTimeout  time.Duration
	AnalyzeTimeout time.Duration
	UploadMaxDim   int
	UploadQuality  int
}

// OptionsFromConfig maps a validated config onto orchestrator options.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		Owner: cfg.OwnerTag,
		Preferred: device.Constraints{
			Facing: device.ParseFacing(cfg.Facing),
			Width:  cfg.PreferredWidth,
			Height: cfg.PreferredHeight,
		},
		Quick:          decode.Budget{Deadline: cfg.QuickBudget(), MaxPasses: cfg.QuickMaxPasses},
		BurstAttempts:  cfg.BurstAttempts,
		BurstStagger:   cfg.BurstStagger(),
		CaptureTimeout: defaultCaptureTimeout,
		LookupTimeout:  cfg.LookupTimeout(),
		AnalyzeTimeout: cfg.AnalyzeTimeout(),
		UploadMaxDim:   cfg.UploadMaxDim,
		UploadQuality:  cfg.UploadQuality,
	}
}

func (o Options) normalize() Options {
	def := OptionsFromConfig(nil)
	if o.Owner == "" {
		o.Owner = def.Owner
	}
	o.Quick = o.Quick.Normalize()
	if o.BurstAttempts < 0 {
		o.BurstAttempts = 0
	}
	if o.BurstStagger < 0 {
		o.BurstStagger = 0
	}
	if o.CaptureTimeout <= 0 {
		o.CaptureTimeout = def.CaptureTimeout
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = def.LookupTimeout
	}
	if o.AnalyzeTimeout <= 0 {
		o.AnalyzeTimeout = def.AnalyzeTimeout
	}
	if o.UploadMaxDim <= 0 {
		o.UploadMaxDim = def.UploadMaxDim
	}
	if o.UploadQuality <= 0 || o.UploadQuality > 100 {
		o.UploadQuality = def.UploadQuality
	}
	return o
}

// Deps are the collaborators of an Orchestrator. Lookup, Analyzer, Feed and
// Sink are optional. Without a Lookup a decoded candidate is confirmed as-is.
type Deps struct {
	Acquirer Acquirer
	Capturer capture.Capturer
	Engine   Engine
	Lookup   remote.Lookup
	Analyzer remote.Analyzer
	Feed     Feed
	Sink     device.Sink
	Logger   *slog.Logger
}

// Stats counts sessions by how they ended.
type Stats struct {
	Opened     uint64
	Confirmed  uint64
	Analysis   uint64
	Manual     uint64
	Closed     uint64
	Bursts     uint64
	LastResort uint64
}

// Orchestrator opens scan sessions.
type Orchestrator struct {
	deps Deps
	opts Options

	opened     atomic.Uint64
	confirmed  atomic.Uint64
	analysis   atomic.Uint64
	manual     atomic.Uint64
	closed     atomic.Uint64
	bursts     atomic.Uint64
	lastResort atomic.Uint64
}

// New builds an orchestrator.
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Engine == nil {
		deps.Engine = noEngine{}
	}
	return &Orchestrator{deps: deps, opts: opts.normalize()}
}

type noEngine struct{}

func (noEngine) ScanQuick(context.Context, image.Image, decode.Budget) (decode.Attempt, bool) {
	return decode.Attempt{}, false
}

func (noEngine) ScanFull(context.Context, image.Image) (decode.Attempt, bool) {
	return decode.Attempt{}, false
}

// Open starts a session for owner (the configured owner when empty) and
// acquires the camera. When acquisition fails the session is returned already
// resolved to ManualEntryRequired; nothing is captured.
func (o *Orchestrator) Open(ctx context.Context, owner string) *Session {
	if owner == "" {
		owner = o.opts.Owner
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:       uuid.NewString(),
		owner:    owner,
		o:        o,
		ctx:      sctx,
		cancel:   cancel,
		openedAt: time.Now(),
	}
	o.opened.Add(1)
	s.logger = o.logger().With("session", s.id, "owner", owner)

	if o.deps.Acquirer == nil {
		s.resolve(Outcome{Kind: ManualEntryRequired, Reason: DeviceUnavailable})
		return s
	}
	h, err := o.deps.Acquirer.Acquire(sctx, owner, o.opts.Preferred)
	if err != nil {
		s.logger.Warn("scan: camera acquisition failed", "error", err)
		s.resolve(Outcome{Kind: ManualEntryRequired, Reason: reasonFor(err)})
		return s
	}
	s.attach(h)
	s.logger.Debug("scan: session opened", "handle", h.ID, "profile", h.Profile.String())
	return s
}

func (o *Orchestrator) Stats() Stats {
	return Stats{
		Opened:     o.opened.Load(),
		Confirmed:  o.confirmed.Load(),
		Analysis:   o.analysis.Load(),
		Manual:     o.manual.Load(),
		Closed:     o.closed.Load(),
		Bursts:     o.bursts.Load(),
		LastResort: o.lastResort.Load(),
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.deps.Logger != nil {
		return o.deps.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o *Orchestrator) count(out Outcome) {
	switch out.Kind {
	case BarcodeConfirmed:
		o.confirmed.Add(1)
	case ImageAcceptedForAnalysis:
		o.analysis.Add(1)
	case ManualEntryRequired:
		o.manual.Add(1)
	}
}

func recoverLog(logger *slog.Logger, msg string) {
	if r := recover(); r != nil && logger != nil {
		logger.Error(msg, "error", r, "stack", string(debug.Stack()))
	}
}
