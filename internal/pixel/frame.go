package pixel

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// DefaultShortSide is the bounded short side frames are downscaled to
// before any per-pixel analysis or stacking.
const DefaultShortSide = 1080

// Frame holds one color frame as planar float channels. Channel values are
// nominally in [0,1] but intermediate pipeline stages may push them outside
// that range; clamping happens only when converting back to an image.
type Frame struct {
	W, H    int
	R, G, B []float32
}

func New(w, h int) *Frame {
	n := w * h
	return &Frame{
		W: w,
		H: h,
		R: make([]float32, n),
		G: make([]float32, n),
		B: make([]float32, n),
	}
}

func (f *Frame) Clone() *Frame {
	c := New(f.W, f.H)
	copy(c.R, f.R)
	copy(c.G, f.G)
	copy(c.B, f.B)
	return c
}

// Pixels returns the number of pixels in the frame.
func (f *Frame) Pixels() int {
	return f.W * f.H
}

// FromImage converts an 8-bit image into planar [0,1] floats.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy())

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			f.R[i] = float32(r) / 65535.0
			f.G[i] = float32(g) / 65535.0
			f.B[i] = float32(bl) / 65535.0
			i++
		}
	}
	return f
}

// ToImage renders the frame back to an 8-bit RGBA image, clamping each
// channel into [0,1].
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	i := 0
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(f.R[i]),
				G: toByte(f.G[i]),
				B: toByte(f.B[i]),
				A: 0xff,
			})
			i++
		}
	}
	return img
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}

// Downscale resizes img so its short side is at most shortSide, preserving
// aspect ratio. Images already within the bound are returned unchanged.
func Downscale(img image.Image, shortSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return img
	}

	short := w
	if h < w {
		short = h
	}
	if short <= shortSide {
		return img
	}

	scale := float64(shortSide) / float64(short)
	dw := int(float64(w)*scale + 0.5)
	dh := int(float64(h)*scale + 0.5)

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}
