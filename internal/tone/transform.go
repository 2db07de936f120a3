package tone

import (
	"math"
	"sort"

	"github.com/eleven-am/nightstack/internal/pixel"
)

// Transform is one step of the reconstruction pipeline: a pure in-place
// adjustment of a planar frame. Transforms are built once from the scene
// summary and applied in order.
type Transform struct {
	Name  string
	Apply func(f *pixel.Frame)
}

// Exposure scales all channels by 2^ev stops.
func Exposure(ev float64) Transform {
	k := float32(math.Pow(2, ev))
	return Transform{
		Name: "exposure",
		Apply: func(f *pixel.Frame) {
			for i := range f.R {
				f.R[i] *= k
				f.G[i] *= k
				f.B[i] *= k
			}
		},
	}
}

// Brightness adds a constant offset to all channels.
func Brightness(d float64) Transform {
	o := float32(d)
	return Transform{
		Name: "brightness",
		Apply: func(f *pixel.Frame) {
			for i := range f.R {
				f.R[i] += o
				f.G[i] += o
				f.B[i] += o
			}
		},
	}
}

// Contrast scales the distance of each channel from mid gray.
func Contrast(k float64) Transform {
	c := float32(k)
	return Transform{
		Name: "contrast",
		Apply: func(f *pixel.Frame) {
			for i := range f.R {
				f.R[i] = (f.R[i]-0.5)*c + 0.5
				f.G[i] = (f.G[i]-0.5)*c + 0.5
				f.B[i] = (f.B[i]-0.5)*c + 0.5
			}
		},
	}
}

// Saturation moves each channel toward or away from the pixel's luminance.
func Saturation(k float64) Transform {
	s := float32(k)
	return Transform{
		Name: "saturation",
		Apply: func(f *pixel.Frame) {
			for i := range f.R {
				luma := 0.2126*f.R[i] + 0.7152*f.G[i] + 0.0722*f.B[i]
				f.R[i] = luma + (f.R[i]-luma)*s
				f.G[i] = luma + (f.G[i]-luma)*s
				f.B[i] = luma + (f.B[i]-luma)*s
			}
		},
	}
}

// highlightKnee is the brightness above which the highlight transform
// starts compressing.
const highlightKnee = 0.7

// Highlights compresses values above the knee. amount in [0,1]: 0 leaves
// the frame untouched, 1 compresses peak values hardest.
func Highlights(amount float64) Transform {
	a := float32(clampF(amount, 0, 1))
	return Transform{
		Name: "highlights",
		Apply: func(f *pixel.Frame) {
			if a == 0 {
				return
			}
			compress := func(v float32) float32 {
				if v <= highlightKnee {
					return v
				}
				excess := v - highlightKnee
				span := excess / (1 - highlightKnee)
				if span > 1 {
					span = 1
				}
				return highlightKnee + excess*(1-a*span*0.7)
			}
			for i := range f.R {
				f.R[i] = compress(f.R[i])
				f.G[i] = compress(f.G[i])
				f.B[i] = compress(f.B[i])
			}
		},
	}
}

// CurvePoint maps an input brightness to an output brightness.
type CurvePoint struct {
	In, Out float64
}

// Curve applies a piecewise-linear tone curve to every channel. Points are
// sorted by input; values outside the covered range are extended linearly
// from the end segments.
func Curve(points []CurvePoint) Transform {
	pts := make([]CurvePoint, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool { return pts[i].In < pts[j].In })

	eval := func(v float32) float32 {
		x := float64(v)
		if len(pts) < 2 {
			return v
		}
		if x <= pts[0].In {
			return float32(pts[0].Out + (x - pts[0].In))
		}
		for i := 1; i < len(pts); i++ {
			if x <= pts[i].In {
				p0, p1 := pts[i-1], pts[i]
				t := (x - p0.In) / (p1.In - p0.In)
				return float32(p0.Out + t*(p1.Out-p0.Out))
			}
		}
		last := pts[len(pts)-1]
		return float32(last.Out + (x - last.In))
	}

	return Transform{
		Name: "curve",
		Apply: func(f *pixel.Frame) {
			for i := range f.R {
				f.R[i] = eval(f.R[i])
				f.G[i] = eval(f.G[i])
				f.B[i] = eval(f.B[i])
			}
		},
	}
}

// Sharpen applies a 3x3 unsharp mask: v + amount*(v - blurred).
func Sharpen(amount float64) Transform {
	a := float32(amount)
	return Transform{
		Name: "sharpen",
		Apply: func(f *pixel.Frame) {
			if a <= 0 || f.W < 3 || f.H < 3 {
				return
			}
			sharpenPlane(f.R, f.W, f.H, a)
			sharpenPlane(f.G, f.W, f.H, a)
			sharpenPlane(f.B, f.W, f.H, a)
		},
	}
}

func sharpenPlane(p []float32, w, h int, amount float32) {
	src := make([]float32, len(p))
	copy(src, p)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			blur := (src[i-w-1] + src[i-w] + src[i-w+1] +
				src[i-1] + src[i] + src[i+1] +
				src[i+w-1] + src[i+w] + src[i+w+1]) / 9
			p[i] = src[i] + amount*(src[i]-blur)
		}
	}
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
