package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"
)

func TestScaleToFit_KeepsSmallImages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	if got := ScaleToFit(src, 100, 100); got != image.Image(src) {
		t.Fatalf("expected original image when it already fits")
	}
}

func TestScaleToFit_PreservesAspect(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))
	got := ScaleToFit(src, 100, 100)
	if got.Bounds().Dx() != 100 || got.Bounds().Dy() != 50 {
		t.Fatalf("expected 100x50, got %v", got.Bounds())
	}
}

func TestEncodeForUpload_ProducesBoundedJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1000, 500))
	data, err := EncodeForUpload(src, 200, 70)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg.Width != 200 || cfg.Height != 100 {
		t.Fatalf("expected 200x100 upload, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeForUpload_NilImage(t *testing.T) {
	if _, err := EncodeForUpload(nil, 100, 80); err == nil {
		t.Fatalf("expected error for nil image")
	}
}
