package align

import (
	"math"

	"github.com/eleven-am/nightstack/internal/pixel"
)

// Translation estimates a whole-pixel x/y offset between a frame and the
// stack reference by block search over a downsampled luminance grid, then
// shifts the frame to cancel it. Rotation and scale are out of scope;
// handheld long exposures drift mostly by translation.
type Translation struct {
	// Stride is the downsampling step of the luminance grid.
	Stride int
	// MaxShift is the largest offset searched, in full-resolution pixels.
	MaxShift int
}

func NewTranslation() *Translation {
	return &Translation{Stride: 8, MaxShift: 24}
}

func (t *Translation) Align(frame, reference *pixel.Frame) (*pixel.Frame, error) {
	if frame.Pixels() == 0 || reference.Pixels() == 0 {
		return nil, ErrNoOverlap
	}
	if frame.W != reference.W || frame.H != reference.H {
		return nil, ErrNoOverlap
	}

	stride := t.Stride
	if stride < 1 {
		stride = 8
	}

	gw := frame.W / stride
	gh := frame.H / stride
	if gw < 4 || gh < 4 {
		// Too small to register reliably; stack as-is.
		return frame, nil
	}

	ref := lumaGrid(reference, stride, gw, gh)
	cur := lumaGrid(frame, stride, gw, gh)

	maxCells := t.MaxShift / stride
	if maxCells < 1 {
		maxCells = 1
	}

	bestDX, bestDY := 0, 0
	bestCost := math.Inf(1)
	for dy := -maxCells; dy <= maxCells; dy++ {
		for dx := -maxCells; dx <= maxCells; dx++ {
			cost := gridCost(ref, cur, gw, gh, dx, dy)
			if cost < bestCost {
				bestCost = cost
				bestDX, bestDY = dx, dy
			}
		}
	}

	if bestDX == 0 && bestDY == 0 {
		return frame, nil
	}
	return shift(frame, -bestDX*stride, -bestDY*stride), nil
}

func lumaGrid(f *pixel.Frame, stride, gw, gh int) []float64 {
	grid := make([]float64, gw*gh)
	for gy := 0; gy < gh; gy++ {
		for gx := 0; gx < gw; gx++ {
			i := gy*stride*f.W + gx*stride
			grid[gy*gw+gx] = 0.2126*float64(f.R[i]) + 0.7152*float64(f.G[i]) + 0.0722*float64(f.B[i])
		}
	}
	return grid
}

// gridCost is the mean absolute luminance difference over the overlapping
// region when cur is offset by (dx, dy) cells.
func gridCost(ref, cur []float64, gw, gh, dx, dy int) float64 {
	var sum float64
	var n int
	for y := 0; y < gh; y++ {
		cy := y + dy
		if cy < 0 || cy >= gh {
			continue
		}
		for x := 0; x < gw; x++ {
			cx := x + dx
			if cx < 0 || cx >= gw {
				continue
			}
			sum += math.Abs(ref[y*gw+x] - cur[cy*gw+cx])
			n++
		}
	}
	if n == 0 {
		return math.Inf(1)
	}
	return sum / float64(n)
}

// shift translates the frame by (dx, dy), clamping edge pixels outward so
// the stack never gains black borders.
func shift(f *pixel.Frame, dx, dy int) *pixel.Frame {
	out := pixel.New(f.W, f.H)
	for y := 0; y < f.H; y++ {
		sy := clampI(y-dy, 0, f.H-1)
		for x := 0; x < f.W; x++ {
			sx := clampI(x-dx, 0, f.W-1)
			si := sy*f.W + sx
			di := y*f.W + x
			out.R[di] = f.R[si]
			out.G[di] = f.G[si]
			out.B[di] = f.B[si]
		}
	}
	return out
}

func clampI(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
