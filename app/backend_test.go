package app

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/pixel-scan-go/device/dircam"
	"github.com/soocke/pixel-scan-go/device/gstcam"
	"github.com/soocke/pixel-scan-go/device/screen"
)

func TestNewPlatform(t *testing.T) {
	p, err := NewPlatform("screen", nil)
	require.NoError(t, err)
	assert.IsType(t, &screen.Platform{}, p)

	p, err = NewPlatform("screen:10,20,300,200", nil)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 20, 310, 220), p.(*screen.Platform).Region)

	p, err = NewPlatform("dir:/tmp/frames", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/frames", p.(*dircam.Platform).Dir)
	assert.True(t, p.(*dircam.Platform).Torch)

	p, err = NewPlatform("/dev/video2", nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/video2", p.(*gstcam.Platform).Device)

	p, err = NewPlatform("v4l2:/dev/video1", nil)
	require.NoError(t, err)
	assert.Equal(t, "/dev/video1", p.(*gstcam.Platform).Device)
}

func TestNewPlatform_Errors(t *testing.T) {
	for _, name := range []string{"dir:", "webcam", "screen:1,2,3", "screen:a,b,c,d", "screen:0,0,0,10"} {
		_, err := NewPlatform(name, nil)
		assert.Error(t, err, name)
	}
}
