package decode

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
)

// ErrNotFound is returned by a Decoder when the image holds no readable code.
var ErrNotFound = errors.New("decode: no barcode found")

// Hints tunes a single decode call.
type Hints struct {
	TryHarder bool
}

// Result is the raw output of a Decoder.
type Result struct {
	Text   string
	Format string
}

// Decoder recognises a linear barcode in an image.
type Decoder interface {
	Decode(img image.Image, hints Hints) (Result, error)
}

// ZXing decodes the EAN-13, EAN-8, UPC-A and UPC-E retail symbologies via
// gozxing. Readers are pooled; ZXing is safe for concurrent use.
type ZXing struct {
	readers sync.Pool
}

var _ Decoder = (*ZXing)(nil)

func NewZXing() *ZXing {
	z := &ZXing{}
	z.readers.New = func() any { return oned.NewMultiFormatUPCEANReader(nil) }
	return z
}

func (z *ZXing) Decode(img image.Image, hints Hints) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, ErrNotFound
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return Result{}, fmt.Errorf("decode: binarize: %w", err)
	}
	var h map[gozxing.DecodeHintType]interface{}
	if hints.TryHarder {
		h = map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_TRY_HARDER: true}
	}

	r := z.readers.Get().(gozxing.Reader)
	defer func() {
		r.Reset()
		z.readers.Put(r)
	}()
	res, err := r.Decode(bmp, h)
	if err != nil || res == nil {
		return Result{}, ErrNotFound
	}
	return Result{Text: res.GetText(), Format: res.GetBarcodeFormat().String()}, nil
}
