package guardian

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/device/devicetest"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newGuardian(p device.Platform) *Guardian { return New(p, discardLogger) }

func TestAcquireRelease_NoLeakAcrossCycles(t *testing.T) {
	tr := &devicetest.Track{W: 640, H: 480}
	p := devicetest.NewPlatform(tr)
	g := newGuardian(p)

	for i := 0; i < 100; i++ {
		h, err := g.Acquire(context.Background(), "scan", device.Preferred(1280, 720))
		require.NoError(t, err)
		require.False(t, h.Released())
		require.True(t, g.Release("scan"), "cycle %d", i)
		require.True(t, h.Released())
	}
	st := g.Stats()
	assert.Equal(t, uint64(100), st.Acquired)
	assert.Equal(t, uint64(100), st.Released)
	assert.Zero(t, st.Live)
	assert.Zero(t, p.LiveStreams())
}

func TestRelease_Idempotent(t *testing.T) {
	g := newGuardian(devicetest.NewPlatform(nil))
	_, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)

	assert.True(t, g.Release("scan"))
	assert.NotPanics(t, func() {
		assert.False(t, g.Release("scan"))
		assert.False(t, g.Release("scan"))
	})
	assert.False(t, g.Release("never-acquired"))
	assert.Equal(t, uint64(1), g.Stats().Released)
}

func TestAcquire_SameOwnerForceReleasesPrior(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	g := newGuardian(p)

	first, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)
	second, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)

	assert.True(t, first.Released(), "prior handle must be force-released")
	assert.False(t, second.Released())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 1, g.Live())
	assert.Equal(t, uint64(1), g.Stats().Forced)
	assert.Equal(t, 1, p.LiveStreams())
}

func TestAcquire_RelaxesConstraintsOnce(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	p.Errs = []error{device.ErrOverconstrained}
	g := newGuardian(p)

	h, err := g.Acquire(context.Background(), "scan", device.Preferred(4096, 2160))
	require.NoError(t, err)
	assert.True(t, h.Profile.IsMinimal())
	require.Len(t, p.Negotiated, 2)
	assert.Equal(t, device.Preferred(4096, 2160), p.Negotiated[0])
	assert.Equal(t, device.Minimal, p.Negotiated[1])
}

func TestAcquire_DeviceUnavailableAfterRelaxation(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	p.Errs = []error{device.ErrOverconstrained, errors.New("busy")}
	g := newGuardian(p)

	_, err := g.Acquire(context.Background(), "scan", device.Preferred(1280, 720))
	require.Error(t, err)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.Equal(t, 2, p.NegotiateCount())
	assert.False(t, g.Holds("scan"))
}

func TestAcquire_PermissionDeniedIsNotRetried(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	p.Errs = []error{device.ErrPermissionDenied}
	g := newGuardian(p)

	_, err := g.Acquire(context.Background(), "scan", device.Preferred(1280, 720))
	assert.ErrorIs(t, err, device.ErrPermissionDenied)
	assert.NotErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.Equal(t, 1, p.NegotiateCount())
}

func TestRelease_StopsTracksDetachesSinkRunsHooks(t *testing.T) {
	tr := &devicetest.Track{W: 320, H: 240}
	g := newGuardian(devicetest.NewPlatform(tr))
	h, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)

	sink := &devicetest.Sink{}
	h.AttachSink(sink)
	var order []string
	h.OnRelease(func() { order = append(order, "first") })
	h.OnRelease(func() { order = append(order, "second"); assert.False(t, tr.Stopped(), "hooks run before tracks stop") })

	require.True(t, g.Release("scan"))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, 1, sink.Attached())
	assert.Equal(t, 1, sink.Detached())
	assert.True(t, tr.Stopped())

	ran := false
	h.OnRelease(func() { ran = true })
	assert.True(t, ran, "hook registered after release runs immediately")
}

func TestReleaseHandle_IgnoresSuperseded(t *testing.T) {
	g := newGuardian(devicetest.NewPlatform(nil))
	old, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)
	cur, err := g.Acquire(context.Background(), "scan", device.Minimal)
	require.NoError(t, err)

	assert.False(t, g.ReleaseHandle(old), "already force-released")
	assert.True(t, g.Holds("scan"))
	assert.True(t, g.ReleaseHandle(cur))
	assert.False(t, g.Holds("scan"))
}

func TestHardStop_ReleasesAllOwners(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	g := newGuardian(p)
	for _, owner := range []string{"a", "b", "c"} {
		_, err := g.Acquire(context.Background(), owner, device.Minimal)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, g.HardStop("navigation"))
	assert.Zero(t, g.Live())
	assert.Zero(t, g.HardStop("again"))
	assert.False(t, g.Release("a"))
	assert.Equal(t, uint64(2), g.Stats().HardStops)
}

func TestDefault_PlatformlessFailsAcquire(t *testing.T) {
	SetDefault(nil)
	t.Cleanup(func() { SetDefault(nil) })

	g := Default()
	require.NotNil(t, g)
	assert.Same(t, g, Default())
	_, err := g.Acquire(context.Background(), "scan", device.Minimal)
	assert.ErrorIs(t, err, device.ErrDeviceUnavailable)
	assert.Zero(t, HardStop("test"))
}

func TestNilGuardian_IsSafe(t *testing.T) {
	var g *Guardian
	assert.Equal(t, Stats{}, g.Stats())
	assert.Zero(t, g.Live())
}
