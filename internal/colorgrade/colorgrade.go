package colorgrade

import (
	"math"

	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/scene"
)

// Weighted stacking drifts the composite toward whichever channel
// dominated the capture. This stage pulls the channels partway back toward
// neutral and then applies the user's saturation target, itself relaxed
// toward 1.0 under day-like conditions where stacking artifacts show most.

const (
	neutralFloor = 0.08
	neutralCeil  = 0.92

	scaleFloor = 0.6
	scaleCeil  = 1.6

	// correctionBlend is how far each corrective scale moves from 1.0
	// toward full correction. Partial correction keeps intentionally warm
	// or cool scenes (sodium streetlights) from being neutralized away.
	correctionBlend = 0.35
)

// Correction is the diagonal color matrix that re-neutralizes the
// composite.
type Correction struct {
	Scale [3]float64
}

// NewCorrection derives the per-channel corrective scales from the average
// scene color of the whole capture.
func NewCorrection(avgColor [3]float64) Correction {
	target := clampF((avgColor[0]+avgColor[1]+avgColor[2])/3, neutralFloor, neutralCeil)

	var c Correction
	for i, ch := range avgColor {
		scale := 1.0
		if ch > 0 {
			scale = clampF(target/ch, scaleFloor, scaleCeil)
		}
		c.Scale[i] = 1 + (scale-1)*correctionBlend
	}
	return c
}

// Apply multiplies each channel by its corrective scale.
func (c Correction) Apply(f *pixel.Frame) {
	r := float32(c.Scale[0])
	g := float32(c.Scale[1])
	b := float32(c.Scale[2])
	for i := range f.R {
		f.R[i] *= r
		f.G[i] *= g
		f.B[i] *= b
	}
}

// AdaptiveSaturation blends the user's saturation target toward neutral as
// the scene looks more day-like (bright with clipped highlights).
func AdaptiveSaturation(target float64, s scene.Summary) float64 {
	if target <= 0 {
		target = 1
	}
	daylike := clampF((s.MeanLuminance-0.45)*2, 0, 1) * clampF(s.ClipRatio*4, 0, 1)
	return target + (1-target)*daylike
}

// Saturate applies a saturation factor around per-pixel luminance.
func Saturate(f *pixel.Frame, k float64) {
	s := float32(k)
	if s == 1 {
		return
	}
	for i := range f.R {
		luma := 0.2126*f.R[i] + 0.7152*f.G[i] + 0.0722*f.B[i]
		f.R[i] = luma + (f.R[i]-luma)*s
		f.G[i] = luma + (f.G[i]-luma)*s
		f.B[i] = luma + (f.B[i]-luma)*s
	}
}

// ExposureBias applies the user's EV bias as a final gain.
func ExposureBias(f *pixel.Frame, ev float64) {
	if ev == 0 {
		return
	}
	k := float32(math.Pow(2, ev))
	for i := range f.R {
		f.R[i] *= k
		f.G[i] *= k
		f.B[i] *= k
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
