package presenter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/domain/scan"
)

func TestOverlay_ShowsImmediatelyHidesAfterDelay(t *testing.T) {
	v := &mockOverlayView{}
	o := NewOverlay(v, 40*time.Millisecond)

	o.OnPhase(scan.Scanning, scan.Captured)
	assert.Equal(t, []bool{true}, v.snapshot(), "overlay must show without delay")
	o.OnPhase(scan.Captured, scan.Analyzing)
	assert.Equal(t, []bool{true}, v.snapshot(), "already visible")

	o.OnPhase(scan.Analyzing, scan.Scanning)
	assert.True(t, o.Visible(), "hide must wait for the off delay")
	require.Eventually(t, func() bool { return !o.Visible() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []bool{true, false}, v.snapshot())
}

func TestOverlay_BriefScanningDoesNotFlicker(t *testing.T) {
	v := &mockOverlayView{}
	o := NewOverlay(v, 80*time.Millisecond)

	o.OnPhase(scan.Scanning, scan.Captured)
	o.OnPhase(scan.Captured, scan.Scanning)
	time.Sleep(20 * time.Millisecond)
	o.OnPhase(scan.Scanning, scan.Captured)
	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, []bool{true}, v.snapshot())
	assert.True(t, o.Visible())
	o.Stop()
}

func TestOverlay_ScanningWhileHiddenIsNoop(t *testing.T) {
	v := &mockOverlayView{}
	o := NewOverlay(v, 0)
	o.OnPhase(scan.Scanning, scan.Scanning)
	time.Sleep(2 * DefaultOverlayOffDelay)
	assert.Empty(t, v.snapshot())
}
