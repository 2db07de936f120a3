package scene

import (
	"errors"

	"github.com/eleven-am/nightstack/internal/pixel"
)

var ErrEmptyFrame = errors.New("zero-area frame")

// Metrics describes one frame's exposure characteristics. All fields are
// relative values in [0,1].
type Metrics struct {
	// Luminance is the Rec.709-weighted mean brightness.
	Luminance float64
	// Highlight is the maximum value observed on any channel.
	Highlight float64
	// AvgColor holds the spatial mean of each channel (R, G, B).
	AvgColor [3]float64
	// Chroma is the spread between the brightest and darkest channel mean.
	Chroma float64
}

// Sample computes Metrics in a single pass over the frame. It is a pure
// function; the frame is not modified.
func Sample(f *pixel.Frame) (Metrics, error) {
	n := f.Pixels()
	if n == 0 {
		return Metrics{}, ErrEmptyFrame
	}

	var sumR, sumG, sumB float64
	var peak float32
	for i := 0; i < n; i++ {
		sumR += float64(f.R[i])
		sumG += float64(f.G[i])
		sumB += float64(f.B[i])
		if f.R[i] > peak {
			peak = f.R[i]
		}
		if f.G[i] > peak {
			peak = f.G[i]
		}
		if f.B[i] > peak {
			peak = f.B[i]
		}
	}

	inv := 1.0 / float64(n)
	avg := [3]float64{sumR * inv, sumG * inv, sumB * inv}

	maxC, minC := avg[0], avg[0]
	for _, c := range avg[1:] {
		if c > maxC {
			maxC = c
		}
		if c < minC {
			minC = c
		}
	}

	return Metrics{
		Luminance: 0.2126*avg[0] + 0.7152*avg[1] + 0.0722*avg[2],
		Highlight: clamp01(float64(peak)),
		AvgColor:  avg,
		Chroma:    maxC - minC,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
