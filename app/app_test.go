package app

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/config"
	"github.com/soocke/pixel-scan-go/device"
	"github.com/soocke/pixel-scan-go/device/devicetest"
	"github.com/soocke/pixel-scan-go/domain/scan"
)

const code = "4006381333931"

func barcodeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	m, err := oned.NewEAN13Writer().Encode(code, gozxing.BarcodeFormat_EAN_13, 380, 120, nil)
	require.NoError(t, err)
	require.NoError(t, imaging.Save(m, filepath.Join(dir, "shot.png")))
	return dir
}

func testConfig(device string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Device = device
	cfg.LookupTimeoutMS = 1000
	return cfg
}

func TestRun_ConfirmsBarcodeWithoutLookup(t *testing.T) {
	c, err := BuildContainer(testConfig("dir:"+barcodeDir(t)), nil, nil)
	require.NoError(t, err)

	r, err := New(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scan.BarcodeConfirmed.String(), r.Kind)
	assert.Equal(t, code, r.Value)
	assert.True(t, r.ChecksumValid)
	assert.NotEmpty(t, r.Session)
	require.NotEmpty(t, r.Attempts)
	assert.Equal(t, code, r.Attempts[0].Value)

	assert.Zero(t, c.Guardian.Live(), "camera must be released")
	attached, frozen := c.Preview.State()
	assert.False(t, attached)
	assert.False(t, frozen)
	assert.Equal(t, 1, c.Stats.Tally().Confirmed)
}

func TestRun_ConfirmsThroughLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/"+code) {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"product":{"name":"Sparkling water","nutriments":{"energy_kcal":0}}}`))
	}))
	defer srv.Close()

	cfg := testConfig("dir:" + barcodeDir(t))
	cfg.LookupURL = srv.URL + "/products"
	c, err := BuildContainer(cfg, nil, nil)
	require.NoError(t, err)

	r, err := New(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scan.BarcodeConfirmed.String(), r.Kind)
	require.NotNil(t, r.Product)
	assert.Equal(t, "Sparkling water", r.Product.Name)
	assert.Equal(t, code, r.Product.Code)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, r))
	var back map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, "barcode_confirmed", back["kind"])
}

func TestRun_NoBarcodeFallsBackToImage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(devicetest.SolidFrame(9, 160, 120), filepath.Join(dir, "a.png")))
	cfg := testConfig("dir:" + dir)
	cfg.FullBudgetMS = 200
	c, err := BuildContainer(cfg, nil, nil)
	require.NoError(t, err)

	r, err := New(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scan.ImageAcceptedForAnalysis.String(), r.Kind)
	assert.Positive(t, r.UploadBytes)
	require.NotNil(t, r.Frame)
	assert.Equal(t, 160, r.Frame.Width)
	assert.Zero(t, c.Guardian.Live())
}

func TestRun_PermissionDeniedNeedsManualEntry(t *testing.T) {
	p := devicetest.NewPlatform(nil)
	p.Errs = []error{device.ErrPermissionDenied}
	c, err := BuildContainer(testConfig("screen"), nil, p)
	require.NoError(t, err)

	r, err := New(c).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, scan.ManualEntryRequired.String(), r.Kind)
	assert.Equal(t, scan.PermissionDenied.String(), r.Reason)
	assert.Len(t, p.Negotiated, 1, "permission denial is not retried")
}

func TestRun_CancelReleasesCamera(t *testing.T) {
	tr := &devicetest.Track{W: 64, H: 48}
	tr.Sample = func(int) (image.Image, error) {
		time.Sleep(50 * time.Millisecond)
		return devicetest.SolidFrame(1, 64, 48), nil
	}
	p := devicetest.NewPlatform(tr)
	c, err := BuildContainer(testConfig("screen"), nil, p)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = New(c).Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, c.Guardian.Live())
	assert.Zero(t, p.LiveStreams())
}
