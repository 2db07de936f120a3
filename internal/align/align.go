package align

import (
	"errors"

	"github.com/eleven-am/nightstack/internal/pixel"
)

var ErrNoOverlap = errors.New("frames do not overlap")

// Aligner registers a frame against the stack reference before
// accumulation. Implementations must return a frame of the same
// dimensions; a failed alignment should surface an error so the caller can
// degrade to unaligned stacking.
type Aligner interface {
	Align(frame, reference *pixel.Frame) (*pixel.Frame, error)
}

// Passthrough performs no registration.
type Passthrough struct{}

func (Passthrough) Align(frame, _ *pixel.Frame) (*pixel.Frame, error) {
	return frame, nil
}
