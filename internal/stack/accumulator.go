package stack

import (
	"errors"
	"fmt"

	"github.com/eleven-am/nightstack/internal/pixel"
)

var ErrNoFrames = errors.New("no frames accumulated")

// Accumulator maintains the running weighted sum of stacked frames. Sums
// are kept in float64 so intermediate values can exceed [0,1] without
// clipping; the composite only returns to display range at Normalize.
//
// The accumulator itself is not goroutine safe. The capture session owns
// it and guarantees a single writer.
type Accumulator struct {
	w, h        int
	sumR        []float64
	sumG        []float64
	sumB        []float64
	totalWeight float64
	frames      int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add scales the frame by weight and folds it into the running sum. The
// first frame fixes the stack dimensions; later frames must match.
func (a *Accumulator) Add(f *pixel.Frame, weight float64) error {
	if f.Pixels() == 0 {
		return fmt.Errorf("accumulate: zero-area frame %dx%d", f.W, f.H)
	}
	if weight <= 0 {
		return fmt.Errorf("accumulate: non-positive weight %v", weight)
	}

	if a.frames == 0 {
		a.w, a.h = f.W, f.H
		n := f.Pixels()
		a.sumR = make([]float64, n)
		a.sumG = make([]float64, n)
		a.sumB = make([]float64, n)
	} else if f.W != a.w || f.H != a.h {
		return fmt.Errorf("accumulate: frame %dx%d does not match stack %dx%d", f.W, f.H, a.w, a.h)
	}

	for i := range a.sumR {
		a.sumR[i] += float64(f.R[i]) * weight
		a.sumG[i] += float64(f.G[i]) * weight
		a.sumB[i] += float64(f.B[i]) * weight
	}
	a.totalWeight += weight
	a.frames++
	return nil
}

// Normalize divides the running sum by the total accumulated weight and
// returns the mean composite.
func (a *Accumulator) Normalize() (*pixel.Frame, error) {
	if a.frames == 0 || a.totalWeight <= 0 {
		return nil, ErrNoFrames
	}

	out := pixel.New(a.w, a.h)
	inv := 1.0 / a.totalWeight
	for i := range a.sumR {
		out.R[i] = float32(a.sumR[i] * inv)
		out.G[i] = float32(a.sumG[i] * inv)
		out.B[i] = float32(a.sumB[i] * inv)
	}
	return out, nil
}

func (a *Accumulator) FrameCount() int {
	return a.frames
}

func (a *Accumulator) TotalWeight() float64 {
	return a.totalWeight
}
