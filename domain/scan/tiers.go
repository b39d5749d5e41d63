package scan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/soocke/pixel-scan-go/domain/capture"
	"github.com/soocke/pixel-scan-go/domain/decode"
	"github.com/soocke/pixel-scan-go/images"
	"github.com/soocke/pixel-scan-go/remote"
)

// Capture runs the tier chain for one user-initiated capture and returns the
// terminal outcome. It returns ErrSessionClosed when the session is torn down
// mid-flight and ErrCaptureInProgress when called concurrently. Calling it on a
// resolved session returns the existing outcome.
func (s *Session) Capture() (Outcome, error) {
	if s.Closed() {
		return Outcome{}, ErrSessionClosed
	}
	if out := s.Outcome(); out.Resolved() {
		return out, nil
	}
	if !s.capturing.CompareAndSwap(false, true) {
		return Outcome{}, ErrCaptureInProgress
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	s.mutate(func() { s.runCancel = cancel })
	defer s.finalize(cancel)

	if out, ok := s.run(runCtx); ok {
		s.resolve(out)
	}
	if s.Closed() {
		return Outcome{}, ErrSessionClosed
	}
	if out := s.Outcome(); out.Resolved() {
		return out, nil
	}
	return Outcome{}, ErrSessionClosed
}

// finalize is the single exit step of every capture: the feed is unfrozen and
// the scanning flags cleared whatever tier ended the run.
func (s *Session) finalize(cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	s.runCancel = nil
	s.mu.Unlock()
	if f := s.o.deps.Feed; f != nil {
		f.Unfreeze()
	}
	s.capturing.Store(false)
}

// run walks the tiers in order. It returns false when the run was abandoned
// (session closed or resolved elsewhere).
func (s *Session) run(ctx context.Context) (Outcome, bool) {
	if !s.transition(Captured) {
		return Outcome{}, false
	}
	if f := s.o.deps.Feed; f != nil {
		f.Freeze()
	}

	frame, err := s.captureTier(ctx)
	if ctx.Err() != nil {
		return Outcome{}, false
	}
	if err != nil {
		return Outcome{Kind: ManualEntryRequired, Reason: reasonFor(err)}, true
	}
	if !s.transition(Analyzing) {
		return Outcome{}, false
	}

	tiers := []struct {
		name string
		fn   func(context.Context, capture.StillFrame) (Outcome, bool)
	}{
		{"fast_path", s.fastPath},
		{"burst", s.burst},
		{"last_resort", s.lastResort},
	}
	for _, t := range tiers {
		if ctx.Err() != nil {
			return Outcome{}, false
		}
		start := time.Now()
		out, ok := t.fn(ctx, frame)
		s.logger.Debug("scan: tier done", "tier", t.name, "resolved", ok, "elapsed", time.Since(start))
		if ok {
			return out, true
		}
		if f := s.latestFrame(); !f.Empty() {
			frame = f
		}
	}
	if ctx.Err() != nil {
		return Outcome{}, false
	}
	return s.imageAnalysis(ctx, frame), true
}

func (s *Session) captureTier(ctx context.Context) (capture.StillFrame, error) {
	if s.o.deps.Capturer == nil || s.handle == nil {
		return capture.StillFrame{}, fmt.Errorf("%w: no capturer", capture.ErrCaptureFailed)
	}
	frame, err := withDeadline(ctx, s.o.opts.CaptureTimeout, func(c context.Context) (capture.StillFrame, error) {
		return s.o.deps.Capturer.CaptureStill(c, s.handle)
	})
	if err != nil {
		s.logger.Warn("scan: capture failed", "error", err)
		return capture.StillFrame{}, fmt.Errorf("%w: %w", capture.ErrCaptureFailed, err)
	}
	s.noteFrame(frame)
	return frame, nil
}

func (s *Session) fastPath(ctx context.Context, frame capture.StillFrame) (Outcome, bool) {
	a, ok := s.o.deps.Engine.ScanQuick(ctx, frame.Image, s.o.opts.Quick)
	if !ok {
		return Outcome{}, false
	}
	return s.confirm(ctx, a)
}

type burstResult struct {
	idx     int
	frame   capture.StillFrame
	attempt decode.Attempt
	hit     bool
	err     error
}

// burst races BurstAttempts capture+quick-decode attempts, each started
// BurstStagger after the previous one. The first candidate wins and cancels the
// rest; results arriving after the winner are never read.
func (s *Session) burst(ctx context.Context, _ capture.StillFrame) (Outcome, bool) {
	n := s.o.opts.BurstAttempts
	if n <= 0 || s.o.deps.Capturer == nil {
		return Outcome{}, false
	}
	s.o.bursts.Add(1)
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan burstResult, n)
	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer recoverLog(s.logger, "scan: burst attempt panic")
			if d := time.Duration(idx-1) * s.o.opts.BurstStagger; d > 0 {
				t := time.NewTimer(d)
				defer t.Stop()
				select {
				case <-t.C:
				case <-raceCtx.Done():
					results <- burstResult{idx: idx, err: raceCtx.Err()}
					return
				}
			}
			frame, err := withDeadline(raceCtx, s.o.opts.CaptureTimeout, func(c context.Context) (capture.StillFrame, error) {
				return s.o.deps.Capturer.CaptureStill(c, s.handle)
			})
			if err != nil {
				results <- burstResult{idx: idx, err: err}
				return
			}
			a, ok := s.o.deps.Engine.ScanQuick(raceCtx, frame.Image, s.o.opts.Quick)
			results <- burstResult{idx: idx, frame: frame, attempt: a, hit: ok}
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var winner *burstResult
	for r := range results {
		if r.err != nil {
			s.logger.Debug("scan: burst attempt failed", "attempt", r.idx, "error", r.err)
			continue
		}
		s.noteFrame(r.frame)
		if r.hit {
			winner = &r
			cancel()
			break
		}
	}
	if winner == nil {
		return Outcome{}, false
	}
	if !s.mutate(func() { s.burstWinner = winner.idx }) {
		return Outcome{}, false
	}
	s.logger.Debug("scan: burst winner", "attempt", winner.idx, "value", winner.attempt.Value)
	return s.confirm(ctx, winner.attempt)
}

// lastResort runs the exhaustive decode on the most recent still.
func (s *Session) lastResort(ctx context.Context, frame capture.StillFrame) (Outcome, bool) {
	s.o.lastResort.Add(1)
	a, ok := s.o.deps.Engine.ScanFull(ctx, frame.Image)
	if !ok {
		return Outcome{}, false
	}
	return s.confirm(ctx, a)
}

// confirm records a candidate and asks the lookup service about it. Only a
// genuine product confirms; a fallback, an empty product, an error or a
// timeout lets the chain continue.
func (s *Session) confirm(ctx context.Context, a decode.Attempt) (Outcome, bool) {
	if !s.recordAttempt(a) {
		return Outcome{}, false
	}
	out := Outcome{Kind: BarcodeConfirmed, Value: a.Value, Format: a.Format, ChecksumValid: a.ChecksumValid}
	if s.o.deps.Lookup == nil {
		return out, true
	}
	res, err := withDeadline(ctx, s.o.opts.LookupTimeout, func(c context.Context) (remote.LookupResult, error) {
		return s.o.deps.Lookup.Lookup(c, a.Value)
	})
	if err != nil {
		s.logger.Warn("scan: lookup failed", "value", a.Value, "error", err)
		return Outcome{}, false
	}
	if !res.Confirmed() {
		s.logger.Info("scan: lookup not confirmed", "value", a.Value, "ok", res.OK, "fallback", res.Fallback)
		return Outcome{}, false
	}
	p := res.Product
	out.Product = &p
	return out, true
}

// imageAnalysis hands the still to the analysis service. The outcome is
// ImageAcceptedForAnalysis whether or not the service answers in time.
func (s *Session) imageAnalysis(ctx context.Context, frame capture.StillFrame) Outcome {
	out := Outcome{Kind: ImageAcceptedForAnalysis, Frame: frame}
	if frame.Empty() {
		return out
	}
	jpeg, err := images.EncodeForUpload(frame.Image, s.o.opts.UploadMaxDim, s.o.opts.UploadQuality)
	if err != nil {
		s.logger.Warn("scan: encode upload failed", "error", err)
		return out
	}
	out.Upload = jpeg
	if s.o.deps.Analyzer == nil {
		return out
	}
	res, err := withDeadline(ctx, s.o.opts.AnalyzeTimeout, func(c context.Context) (remote.Analysis, error) {
		return s.o.deps.Analyzer.Analyze(c, jpeg)
	})
	if err != nil {
		s.logger.Warn("scan: analysis failed", "error", err)
		return out
	}
	out.Analysis = &res
	return out
}

// withDeadline runs fn on its own goroutine and returns when it finishes, the
// deadline passes or parent is cancelled. fn may ignore its context; a late
// result is dropped.
func withDeadline[T any](parent context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("scan: panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result{v: v, err: err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
