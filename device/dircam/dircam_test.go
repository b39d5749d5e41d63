package dircam

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/device/devicetest"
)

func writeFrames(t *testing.T, dir string, ids ...uint8) {
	t.Helper()
	for i, id := range ids {
		name := filepath.Join(dir, string(rune('a'+i))+".png")
		require.NoError(t, imaging.Save(devicetest.SolidFrame(id, 40, 30), name))
	}
}

func TestNegotiate_CyclesImagesInNameOrder(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 10, 20)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	s, err := New(dir, nil).Negotiate(context.Background(), device.Minimal)
	require.NoError(t, err)
	tr := s.VideoTrack()
	st := tr.Settings()
	assert.Equal(t, 40, st.Width)
	assert.Equal(t, 30, st.Height)
	assert.True(t, tr.Capabilities().StillCapture)
	assert.False(t, tr.Capabilities().Torch)

	sc := tr.(device.StillCapturer)
	var got []uint8
	for i := 0; i < 3; i++ {
		img, err := sc.TakePhoto(context.Background())
		require.NoError(t, err)
		got = append(got, devicetest.FrameID(img))
	}
	assert.Equal(t, []uint8{10, 20, 10}, got)

	img, err := tr.SampleFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint8(20), devicetest.FrameID(img))
}

func TestNegotiate_Overconstrained(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 1)
	_, err := New(dir, nil).Negotiate(context.Background(), device.Preferred(1920, 1080))
	assert.ErrorIs(t, err, device.ErrOverconstrained)
}

func TestNegotiate_MissingOrEmptyDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "nope"), nil).Negotiate(context.Background(), device.Minimal)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)

	_, err = New(t.TempDir(), nil).Negotiate(context.Background(), device.Minimal)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
}

func TestTrack_StopAndTorch(t *testing.T) {
	dir := t.TempDir()
	writeFrames(t, dir, 5)
	p := New(dir, nil)
	p.Torch = true
	s, err := p.Negotiate(context.Background(), device.Minimal)
	require.NoError(t, err)
	tr := s.VideoTrack()
	assert.NoError(t, tr.ApplyTorch(true))

	s.Stop()
	s.Stop()
	_, err = tr.SampleFrame(context.Background())
	assert.ErrorIs(t, err, device.ErrStopped)
}
