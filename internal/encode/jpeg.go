package encode

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"github.com/eleven-am/nightstack/internal/pixel"
)

// DefaultQuality keeps the output lossy but visually indistinguishable
// from lossless for stacked content.
const DefaultQuality = 92

// Encoder renders a finished composite to an image byte stream.
type Encoder interface {
	Encode(f *pixel.Frame) ([]byte, error)
	ContentType() string
}

type JPEG struct {
	Quality int
}

func NewJPEG(quality int) *JPEG {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	return &JPEG{Quality: quality}
}

func (e *JPEG) Encode(f *pixel.Frame) ([]byte, error) {
	if f == nil || f.Pixels() == 0 {
		return nil, fmt.Errorf("encode: empty frame")
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToImage(), &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *JPEG) ContentType() string {
	return "image/jpeg"
}
