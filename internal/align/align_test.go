package align

import (
	"testing"

	"github.com/eleven-am/nightstack/internal/pixel"
)

// cellPattern fills an 8px-aligned block pattern so whole-cell shifts can
// be recovered exactly by the grid search.
func cellPattern(w, h int) *pixel.Frame {
	f := pixel.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			cx, cy := x/8, y/8
			v := float32((cx*7+cy*13)%11) / 11
			i := y*w + x
			f.R[i], f.G[i], f.B[i] = v, v, v
		}
	}
	return f
}

// shiftRight builds a copy whose content is moved dx pixels to the right,
// clamping at the left edge.
func shiftRight(f *pixel.Frame, dx int) *pixel.Frame {
	out := pixel.New(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			sx := x - dx
			if sx < 0 {
				sx = 0
			}
			si := y*f.W + sx
			di := y*f.W + x
			out.R[di] = f.R[si]
			out.G[di] = f.G[si]
			out.B[di] = f.B[si]
		}
	}
	return out
}

// featureFrame is a dark field with one bright square, so the cost search
// has a single global minimum.
func featureFrame(w, h int) *pixel.Frame {
	f := pixel.New(w, h)
	for i := range f.R {
		f.R[i], f.G[i], f.B[i] = 0.1, 0.1, 0.1
	}
	for y := 24; y < 40; y++ {
		for x := 24; x < 40; x++ {
			i := y*w + x
			f.R[i], f.G[i], f.B[i] = 0.9, 0.9, 0.9
		}
	}
	return f
}

func TestTranslation_RecoversKnownShift(t *testing.T) {
	ref := featureFrame(64, 64)
	drifted := shiftRight(ref, 8)

	aligned, err := NewTranslation().Align(drifted, ref)
	if err != nil {
		t.Fatalf("align: %v", err)
	}

	// Interior pixels should match the reference again. The rightmost
	// column of cells is edge-clamped and excluded.
	for y := 8; y < 56; y++ {
		for x := 8; x < 56; x++ {
			i := y*64 + x
			if aligned.R[i] != ref.R[i] {
				t.Fatalf("pixel (%d,%d) = %v, want %v", x, y, aligned.R[i], ref.R[i])
			}
		}
	}
}

func TestTranslation_IdenticalFramesUnmoved(t *testing.T) {
	ref := cellPattern(64, 64)
	frame := ref.Clone()

	aligned, err := NewTranslation().Align(frame, ref)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if aligned != frame {
		t.Error("zero offset should return the frame unchanged")
	}
}

func TestTranslation_SmallFramePassthrough(t *testing.T) {
	ref := cellPattern(16, 16)
	frame := cellPattern(16, 16)

	aligned, err := NewTranslation().Align(frame, ref)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if aligned != frame {
		t.Error("frames too small to register should pass through")
	}
}

func TestTranslation_RejectsMismatchedDimensions(t *testing.T) {
	if _, err := NewTranslation().Align(cellPattern(64, 64), cellPattern(32, 32)); err != ErrNoOverlap {
		t.Errorf("expected ErrNoOverlap, got %v", err)
	}
}

func TestTranslation_RejectsEmptyFrames(t *testing.T) {
	if _, err := NewTranslation().Align(pixel.New(0, 0), cellPattern(64, 64)); err != ErrNoOverlap {
		t.Errorf("expected ErrNoOverlap, got %v", err)
	}
}

func TestPassthrough_ReturnsFrameAsIs(t *testing.T) {
	frame := cellPattern(16, 16)
	aligned, err := Passthrough{}.Align(frame, nil)
	if err != nil {
		t.Fatalf("align: %v", err)
	}
	if aligned != frame {
		t.Error("passthrough should return the same frame")
	}
}
