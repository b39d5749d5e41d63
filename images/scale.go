package images

import (
	"bytes"
	"errors"
	"image"

	"github.com/disintegration/imaging"
)

// ScaleToFit downsizes src so that it fits within maxW x maxH preserving aspect
// ratio. If the source already fits, the original is returned.
func ScaleToFit(src image.Image, maxW, maxH int) image.Image {
	if src == nil {
		return nil
	}
	b := src.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return src
	}
	if maxW < 1 {
		maxW = 1
	}
	if maxH < 1 {
		maxH = 1
	}
	return imaging.Fit(src, maxW, maxH, imaging.Linear)
}

// EncodeForUpload shrinks img to fit maxDim on its longest side and encodes it
// as JPEG at the given quality, for transport to the analysis service.
func EncodeForUpload(img image.Image, maxDim, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("images: nil image")
	}
	if maxDim < 1 {
		maxDim = 1
	}
	if quality < 1 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, ScaleToFit(img, maxDim, maxDim), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
