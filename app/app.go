package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/soocke/pixel-scan-go/debug"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/remote"
	"github.com/soocke/pixel-scan-go/ui/presenter"
)

const tick = 100 * time.Millisecond

// App runs one scan session headlessly: open the camera, capture, resolve,
// release.
type App struct {
	c *Container
}

func New(c *Container) *App { return &App{c: c} }

// Report is the JSON form of a resolved session.
type Report struct {
	Session       string           `json:"session,omitempty"`
	Kind          string           `json:"kind"`
	Value         string           `json:"value,omitempty"`
	Format        string           `json:"format,omitempty"`
	ChecksumValid bool             `json:"checksum_valid,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	Product       *remote.Product  `json:"product,omitempty"`
	Analysis      *remote.Analysis `json:"analysis,omitempty"`
	UploadBytes   int              `json:"upload_bytes,omitempty"`
	Frame         *FrameInfo       `json:"frame,omitempty"`
	BurstWinner   int              `json:"burst_winner,omitempty"`
	Attempts      []AttemptInfo    `json:"attempts,omitempty"`
	ResolvedAt    time.Time        `json:"resolved_at"`
}

type FrameInfo struct {
	Method   string `json:"method"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Sequence uint64 `json:"sequence"`
}

type AttemptInfo struct {
	Value     string `json:"value"`
	Transform string `json:"transform"`
	Pass      int    `json:"pass"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Full      bool   `json:"full,omitempty"`
}

// Run opens a session, captures once and returns the resolved outcome.
// Cancelling ctx dismisses the session and releases the camera.
func (a *App) Run(ctx context.Context) (Report, error) {
	c := a.c
	if c.Config.Debug {
		debug.StartGoroutineLogger(ctx, 5*time.Second, c.Guardian.Live, c.Logger)
		debug.StartMemLogger(ctx, 10*time.Second, c.Logger)
	}
	defer func() {
		if n := c.Guardian.HardStop("shutdown"); n > 0 {
			c.Logger.Warn("cameras still held at shutdown", "count", n)
		}
	}()
	defer c.Overlay.Stop()
	defer c.Watcher.Stop()

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go a.tickLoop(loopCtx)

	s := c.Controls.Start(ctx)
	if s == nil {
		return Report{}, errors.New("app: no session")
	}
	if out := s.Outcome(); out.Resolved() {
		c.Controls.Dismiss()
		c.Loop.Tick()
		return a.report(s, out), nil
	}
	c.Watcher.Watch()

	type result struct {
		out scan.Outcome
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := c.Controls.CaptureNow()
		done <- result{out, err}
	}()
	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		c.Controls.Dismiss()
		res = <-done
	}
	c.Controls.Dismiss()
	c.Loop.Tick()
	if res.err != nil {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		return Report{}, res.err
	}
	if !res.out.Resolved() {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		return Report{}, scan.ErrSessionClosed
	}
	return a.report(s, res.out), nil
}

func (a *App) tickLoop(ctx context.Context) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.c.Loop.Tick()
		}
	}
}

func (a *App) report(s presenter.Session, out scan.Outcome) Report {
	r := Report{
		Kind:          out.Kind.String(),
		Value:         out.Value,
		Format:        out.Format,
		ChecksumValid: out.ChecksumValid,
		Product:       out.Product,
		Analysis:      out.Analysis,
		UploadBytes:   len(out.Upload),
		ResolvedAt:    out.ResolvedAt,
	}
	if out.Reason != scan.ReasonNone {
		r.Reason = out.Reason.String()
	}
	if f := out.Frame; !f.Empty() {
		r.Frame = &FrameInfo{Method: f.Method.String(), Width: f.Width, Height: f.Height, Sequence: f.Sequence}
	}
	if ss, ok := s.(*scan.Session); ok {
		r.Session = ss.ID()
		r.BurstWinner = ss.BurstWinner()
		for _, at := range ss.Attempts() {
			r.Attempts = append(r.Attempts, AttemptInfo{
				Value:     at.Value,
				Transform: at.Transform.String(),
				Pass:      at.Pass,
				ElapsedMS: at.Elapsed.Milliseconds(),
				Full:      at.Full,
			})
		}
	}
	return r
}

// WriteReport encodes r as indented JSON.
func WriteReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
