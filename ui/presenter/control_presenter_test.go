package presenter

import (
	"context"
	"errors"
	"testing"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/device/devicetest"
	"github.com/soocke/pixel-scan-go/domain/guardian"
	"github.com/soocke/pixel-scan-go/domain/scan"
	"github.com/soocke/pixel-scan-go/domain/torch"
	"github.com/soocke/pixel-scan-go/ui/model"
)

func newControl(sessions ...*mockSession) (*ControlPresenter, *model.ScanModel, *mockControlView, *int) {
	m := &model.ScanModel{}
	v := &mockControlView{}
	opened := 0
	open := func(context.Context) Session {
		s := sessions[opened]
		opened++
		return s
	}
	return NewControlPresenter(m, open, v, nil), m, v, &opened
}

func TestControlPresenter_StartIsIdempotent(t *testing.T) {
	s := &mockSession{torchCap: true}
	c, m, v, opened := newControl(s)

	if got := c.Start(context.Background()); got != s {
		t.Fatalf("start returned %v", got)
	}
	c.Start(context.Background())
	if *opened != 1 {
		t.Fatalf("second start must reuse the live session, opened=%d", *opened)
	}
	if !m.Open() || !v.lastEnabled() {
		t.Fatalf("open=%v enabled=%v", m.Open(), v.lastEnabled())
	}
	if _, sup := m.Torch(); !sup {
		t.Fatalf("torch capability not mirrored")
	}
}

func TestControlPresenter_CaptureNowNotifiesObservers(t *testing.T) {
	want := scan.Outcome{Kind: scan.BarcodeConfirmed, Value: "4006381333931"}
	s := &mockSession{result: want}
	c, m, v, _ := newControl(s)
	var phases []scan.Phase
	var seen []scan.Outcome
	c.Observe(func(_, next scan.Phase) { phases = append(phases, next) }, func(o scan.Outcome) { seen = append(seen, o) })

	c.Start(context.Background())
	out, err := c.CaptureNow()
	if err != nil || out.Kind != scan.BarcodeConfirmed {
		t.Fatalf("capture: %+v %v", out, err)
	}
	if len(phases) != 3 || phases[2] != scan.Presenting {
		t.Fatalf("phases not forwarded: %v", phases)
	}
	if len(seen) != 1 || len(v.outcomes) != 1 || v.outcomes[0].Value != want.Value {
		t.Fatalf("outcome not shown: seen=%v view=%v", seen, v.outcomes)
	}
	if m.Open() || m.Capturing() || v.lastEnabled() {
		t.Fatalf("resolved session should leave controls off: open=%v capturing=%v enabled=%v", m.Open(), m.Capturing(), v.lastEnabled())
	}
}

func TestControlPresenter_StartAfterResolvedOpensNew(t *testing.T) {
	first := &mockSession{result: scan.Outcome{Kind: scan.ImageAcceptedForAnalysis}}
	second := &mockSession{}
	c, _, _, opened := newControl(first, second)
	c.Start(context.Background())
	if _, err := c.CaptureNow(); err != nil {
		t.Fatal(err)
	}
	if got := c.Start(context.Background()); got != second || *opened != 2 {
		t.Fatalf("expected a fresh session, opened=%d", *opened)
	}
}

func TestControlPresenter_TorchAndManualEntry(t *testing.T) {
	s := &mockSession{}
	c, m, v, _ := newControl(s)
	if err := c.ToggleTorch(); !errors.Is(err, scan.ErrSessionClosed) {
		t.Fatalf("torch without session: %v", err)
	}
	c.Start(context.Background())
	if err := c.ToggleTorch(); !errors.Is(err, torch.ErrUnsupported) {
		t.Fatalf("torch without capability: %v", err)
	}
	s.torchCap = true
	if err := c.ToggleTorch(); err != nil {
		t.Fatalf("torch on: %v", err)
	}
	if on, _ := m.Torch(); !on {
		t.Fatalf("torch state not mirrored")
	}

	if !c.ManualEntry() || c.ManualEntry() {
		t.Fatalf("manual entry should resolve exactly once")
	}
	if v.outcomes[0].Reason != scan.UserRequested {
		t.Fatalf("unexpected outcome %+v", v.outcomes[0])
	}
}

func TestControlPresenter_DismissIdempotent(t *testing.T) {
	s := &mockSession{}
	c, m, _, _ := newControl(s)
	c.Start(context.Background())
	c.Dismiss()
	c.Dismiss()
	if s.closes != 1 || m.Open() || c.Session() != nil {
		t.Fatalf("dismiss: closes=%d open=%v", s.closes, m.Open())
	}
	if _, err := c.CaptureNow(); !errors.Is(err, scan.ErrSessionClosed) {
		t.Fatalf("capture after dismiss: %v", err)
	}
}

func TestControlPresenter_SessionResolvedDuringOpen(t *testing.T) {
	pl := devicetest.NewPlatform(nil)
	pl.Errs = []error{device.ErrPermissionDenied}
	orch := scan.New(scan.Deps{Acquirer: guardian.New(pl, nil)}, scan.Options{Owner: "scan"})

	m := &model.ScanModel{}
	v := &mockControlView{}
	ov := &mockOverlayView{}
	overlay := NewOverlay(ov, 0)
	defer overlay.Stop()
	c := NewControlPresenter(m, func(ctx context.Context) Session { return orch.Open(ctx, "") }, v, nil)
	var phases []scan.Phase
	c.Observe(NewPhasePresenter(m, &mockPhaseView{}).OnPhase, nil)
	c.Observe(overlay.OnPhase, nil)
	c.Observe(func(_, next scan.Phase) { phases = append(phases, next) }, nil)

	c.Start(context.Background())
	if len(phases) != 1 || phases[0] != scan.Presenting {
		t.Fatalf("listener phases = %v, want [presenting]", phases)
	}
	if m.Phase() != scan.Presenting {
		t.Fatalf("model phase = %v, want presenting", m.Phase())
	}
	if got := ov.snapshot(); len(got) != 1 || !got[0] {
		t.Fatalf("overlay calls = %v, want [true]", got)
	}
	if len(v.outcomes) != 1 || v.outcomes[0].Reason != scan.PermissionDenied {
		t.Fatalf("outcome not shown: %+v", v.outcomes)
	}
	if m.Open() || v.lastEnabled() {
		t.Fatalf("controls must stay off: open=%v enabled=%v", m.Open(), v.lastEnabled())
	}
}
