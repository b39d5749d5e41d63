package images

import (
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ROIRect returns the centred region of interest covering wFrac x hFrac of b.
// Fractions outside (0,1] are treated as 1. The rectangle is clamped to b and
// guaranteed to be at least 1x1 for non-empty bounds.
func ROIRect(b image.Rectangle, wFrac, hFrac float64) image.Rectangle {
	if b.Empty() {
		return image.Rectangle{}
	}
	if wFrac <= 0 || wFrac > 1 {
		wFrac = 1
	}
	if hFrac <= 0 || hFrac > 1 {
		hFrac = 1
	}
	w := int(float64(b.Dx())*wFrac + 0.5)
	h := int(float64(b.Dy())*hFrac + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x0 := b.Min.X + (b.Dx()-w)/2
	y0 := b.Min.Y + (b.Dy()-h)/2
	return image.Rect(x0, y0, x0+w, y0+h).Intersect(b)
}

// CropROI copies the centred region of interest out of frame. The result is a
// new image whose bounds start at (0,0); frame is not modified.
func CropROI(frame image.Image, wFrac, hFrac float64) (*image.NRGBA, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("images: nil frame")
	}
	roi := ROIRect(frame.Bounds(), wFrac, hFrac)
	if roi.Empty() {
		return nil, roi, errors.New("images: empty frame")
	}
	return imaging.Crop(frame, roi), roi, nil
}

// Clone returns an independent NRGBA copy of img with bounds starting at (0,0).
func Clone(img image.Image) *image.NRGBA {
	if img == nil {
		return nil
	}
	return imaging.Clone(img)
}
