package device

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/eleven-am/nightstack/internal/pixel"
)

// DecodeFrame turns one wire payload (JPEG or PNG bytes) into a planar
// frame, downscaled to the bounded short side before conversion.
func DecodeFrame(data []byte, shortSide int) (*pixel.Frame, error) {
	if shortSide <= 0 {
		shortSide = pixel.DefaultShortSide
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return pixel.FromImage(pixel.Downscale(img, shortSide)), nil
}
