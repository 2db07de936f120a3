package weighting

import (
	"math"

	"github.com/eleven-am/nightstack/internal/scene"
)

// Accumulation weight bounds. Every weight produced by a Policy falls
// inside [MinWeight, MaxWeight]; NeutralWeight is used for frames whose
// metrics sampling failed.
const (
	MinWeight     = 0.2
	MaxWeight     = 3.0
	NeutralWeight = 1.0

	// referenceAperture is the f-number the aperture boost is normalized
	// against.
	referenceAperture = 2.2
)

// Policy converts per-frame scene metrics into an accumulation weight.
// Dark frames are weighted up (stacking buys the most noise reduction in
// shadows), bright and near-clipped frames are weighted down to keep them
// from dominating the composite.
type Policy struct {
	Aperture      float64
	ExposureBias  float64
	ChromaPenalty bool
}

func NewPolicy(aperture, exposureBias float64, chromaPenalty bool) Policy {
	if aperture <= 0 {
		aperture = referenceAperture
	}
	return Policy{
		Aperture:      aperture,
		ExposureBias:  exposureBias,
		ChromaPenalty: chromaPenalty,
	}
}

func (p Policy) Weight(m scene.Metrics) float64 {
	w := baseWeight(m.Luminance)
	w *= p.apertureBoost()
	w *= p.biasScale()
	w *= highlightPenalty(m.Highlight)
	if p.ChromaPenalty {
		w *= chromaPenalty(m.Chroma)
	}
	return clamp(w, MinWeight, MaxWeight)
}

func baseWeight(luminance float64) float64 {
	switch {
	case luminance < 0.15:
		return 2.4
	case luminance < 0.35:
		return 1.7
	case luminance < 0.65:
		return 1.0
	default:
		return 0.55
	}
}

// apertureBoost simulates light-gathering compensation: wider apertures
// (smaller f-numbers) collect more light per frame.
func (p Policy) apertureBoost() float64 {
	ratio := referenceAperture / p.Aperture
	return clamp(ratio*ratio, 0.35, 2.6)
}

func (p Policy) biasScale() float64 {
	return clamp(math.Pow(2, p.ExposureBias/2), 0.4, 1.8)
}

func highlightPenalty(highlight float64) float64 {
	over := highlight - 0.7
	if over < 0 {
		over = 0
	}
	return math.Max(0.35, 1-over*1.1)
}

func chromaPenalty(chroma float64) float64 {
	return math.Max(0.4, 1-chroma*0.9)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
