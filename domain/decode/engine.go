// Package decode runs a barcode decoder over a still under a time and pass
// budget. ScanQuick is the interactive path: a centred region of interest and a
// short list of derived images, stopping at the first plausible product code.
// ScanFull is the last resort: the whole frame and the region, more scales,
// "try harder" hints, passes spread across CPUs.
package decode

import (
	"context"
	"image"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/soocke/pixel-scan-go/images"
)

// Options configures the pass plans.
type Options struct {
	ROIWidth    float64
	ROIHeight   float64
	QuickScales []float64
	FullScales  []float64
	Rotations   []int
	TryInvert   bool
	Full        Budget
}

// DefaultOptions returns the production pass plans.
func DefaultOptions() Options {
	return Options{
		ROIWidth:    0.70,
		ROIHeight:   0.38,
		QuickScales: []float64{0.75, 1.5},
		FullScales:  []float64{0.5, 0.75, 1.25, 1.5, 2.0},
		Rotations:   []int{90, 180, 270},
		TryInvert:   true,
		Full:        Budget{Deadline: 2500 * time.Millisecond, MaxPasses: 40},
	}
}

// Stats counts engine activity.
type Stats struct {
	QuickScans uint64
	FullScans  uint64
	Passes     uint64
	Hits       uint64
}

// Engine is shared across scan sessions; it keeps no per-session state.
type Engine struct {
	dec    Decoder
	opts   Options
	logger *slog.Logger

	warm   sync.Once
	warmed atomic.Bool

	quick  atomic.Uint64
	full   atomic.Uint64
	passes atomic.Uint64
	hits   atomic.Uint64
}

// NewEngine wraps dec. Invalid fractions fall back to the defaults.
func NewEngine(dec Decoder, opts Options, logger *slog.Logger) *Engine {
	def := DefaultOptions()
	if opts.ROIWidth <= 0 || opts.ROIWidth > 1 {
		opts.ROIWidth = def.ROIWidth
	}
	if opts.ROIHeight <= 0 || opts.ROIHeight > 1 {
		opts.ROIHeight = def.ROIHeight
	}
	if len(opts.FullScales) == 0 {
		opts.FullScales = def.FullScales
	}
	opts.Full = opts.Full.Normalize()
	return &Engine{dec: dec, opts: opts, logger: logger}
}

// WarmUp runs one decode against a blank image so the first real scan does not
// pay for lazy initialisation. Only the first call does work.
func (e *Engine) WarmUp() *Engine {
	e.warm.Do(func() {
		start := time.Now()
		blank := image.NewGray(image.Rect(0, 0, 64, 64))
		_, _ = e.dec.Decode(blank, Hints{})
		e.warmed.Store(true)
		if e.logger != nil {
			e.logger.Debug("decode: warmed up", "elapsed", time.Since(start))
		}
	})
	return e
}

// Warmed reports whether WarmUp completed.
func (e *Engine) Warmed() bool { return e.warmed.Load() }

type pass struct {
	tf   Transform
	base image.Image
}

func (e *Engine) plan(region Region, base image.Image, scales []float64) []pass {
	out := make([]pass, 0, 2+len(scales)+len(e.opts.Rotations))
	out = append(out, pass{tf: Transform{Kind: Identity, Region: region}, base: base})
	for _, f := range scales {
		if f > 0 && f != 1 {
			out = append(out, pass{tf: Transform{Kind: Scale, Region: region, Factor: f}, base: base})
		}
	}
	for _, a := range e.opts.Rotations {
		out = append(out, pass{tf: Transform{Kind: Rotate, Region: region, Angle: a}, base: base})
	}
	if e.opts.TryInvert {
		out = append(out, pass{tf: Transform{Kind: Invert, Region: region}, base: base})
	}
	return out
}

// apply derives a new image from base; base is never written to.
func apply(tf Transform, base image.Image) image.Image {
	switch tf.Kind {
	case Scale:
		w := int(float64(base.Bounds().Dx())*tf.Factor + 0.5)
		if w < 1 {
			w = 1
		}
		return imaging.Resize(base, w, 0, imaging.Linear)
	case Rotate:
		switch tf.Angle % 360 {
		case 90, -270:
			return imaging.Rotate90(base)
		case 180, -180:
			return imaging.Rotate180(base)
		case 270, -90:
			return imaging.Rotate270(base)
		default:
			return imaging.Rotate(base, float64(tf.Angle), image.White)
		}
	case Invert:
		return imaging.Invert(base)
	default:
		return base
	}
}

func (e *Engine) try(p pass, idx int, hints Hints, start time.Time) (Attempt, bool) {
	e.passes.Add(1)
	res, err := e.dec.Decode(apply(p.tf, p.base), hints)
	if err != nil {
		return Attempt{}, false
	}
	v := normalize(res.Text)
	if !IsCandidate(v) {
		return Attempt{}, false
	}
	return Attempt{
		Value:         v,
		Format:        res.Format,
		Transform:     p.tf,
		Pass:          idx,
		Elapsed:       time.Since(start),
		ChecksumValid: ChecksumValid(v),
		Full:          hints.TryHarder,
	}, true
}

// ScanQuick decodes the region of interest of img within b. Passes run in
// order on a worker goroutine and stop at the first candidate; the call returns
// when a candidate is found, the plan is exhausted, the deadline passes or ctx
// is cancelled, whichever comes first. A miss is (Attempt{}, false).
func (e *Engine) ScanQuick(ctx context.Context, img image.Image, b Budget) (Attempt, bool) {
	if e == nil || img == nil || img.Bounds().Empty() {
		return Attempt{}, false
	}
	e.quick.Add(1)
	b = b.Normalize()
	ctx, cancel := context.WithTimeout(ctx, b.Deadline)
	defer cancel()

	start := time.Now()
	out := make(chan Attempt, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer e.recoverLog("quick")
		roi, _, err := images.CropROI(img, e.opts.ROIWidth, e.opts.ROIHeight)
		if err != nil {
			return
		}
		for i, p := range e.plan(RegionROI, roi, e.opts.QuickScales) {
			if i >= b.MaxPasses || ctx.Err() != nil {
				return
			}
			if a, ok := e.try(p, i+1, Hints{}, start); ok {
				out <- a
				return
			}
		}
	}()

	select {
	case a := <-out:
		return e.hit(a)
	case <-done:
		select {
		case a := <-out:
			return e.hit(a)
		default:
		}
	case <-ctx.Done():
	}
	if e.logger != nil {
		e.logger.Debug("decode: quick miss", "elapsed", time.Since(start), "budget", b.Deadline)
	}
	return Attempt{}, false
}

// ScanFull is the exhaustive last resort. It decodes the whole frame and the
// region of interest with try-harder hints across a wider transform set, in
// parallel, bounded by Options.Full.
func (e *Engine) ScanFull(ctx context.Context, img image.Image) (Attempt, bool) {
	if e == nil || img == nil || img.Bounds().Empty() {
		return Attempt{}, false
	}
	e.full.Add(1)
	b := e.opts.Full
	ctx, cancel := context.WithTimeout(ctx, b.Deadline)
	defer cancel()
	start := time.Now()

	plan := e.plan(RegionFull, img, e.opts.FullScales)
	if roi, _, err := images.CropROI(img, e.opts.ROIWidth, e.opts.ROIHeight); err == nil {
		plan = append(plan, e.plan(RegionROI, roi, e.opts.FullScales)...)
	}
	if len(plan) > b.MaxPasses {
		plan = plan[:b.MaxPasses]
	}

	var found int32
	results := make(chan Attempt, len(plan))
	var wg sync.WaitGroup
	sem := make(chan struct{}, runtime.NumCPU())

	go func() {
		defer e.recoverLog("full")
	schedule:
		for i, p := range plan {
			if atomic.LoadInt32(&found) == 1 {
				break
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				break schedule
			}
			wg.Add(1)
			go func(idx int, p pass) {
				defer wg.Done()
				defer func() { <-sem }()
				defer e.recoverLog("full pass")
				if atomic.LoadInt32(&found) == 1 || ctx.Err() != nil {
					return
				}
				if a, ok := e.try(p, idx, Hints{TryHarder: true}, start); ok {
					if atomic.CompareAndSwapInt32(&found, 0, 1) {
						results <- a
					}
				}
			}(i+1, p)
		}
		wg.Wait()
		close(results)
	}()

	select {
	case a, ok := <-results:
		if ok {
			return e.hit(a)
		}
	case <-ctx.Done():
	}
	if e.logger != nil {
		e.logger.Debug("decode: full miss", "elapsed", time.Since(start), "passes", len(plan))
	}
	return Attempt{}, false
}

func (e *Engine) hit(a Attempt) (Attempt, bool) {
	e.hits.Add(1)
	if e.logger != nil {
		e.logger.Debug("decode: hit",
			"transform", a.Transform.String(),
			"pass", a.Pass,
			"elapsed", a.Elapsed,
			"checksum", a.ChecksumValid,
			"format", a.Format,
		)
	}
	return a, true
}

func (e *Engine) recoverLog(where string) {
	if r := recover(); r != nil && e.logger != nil {
		e.logger.Error("decode: panic", "where", where, "error", r)
	}
}

func (e *Engine) Stats() Stats {
	return Stats{
		QuickScans: e.quick.Load(),
		FullScans:  e.full.Load(),
		Passes:     e.passes.Load(),
		Hits:       e.hits.Load(),
	}
}
