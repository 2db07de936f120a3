package tone

import (
	"math"

	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/scene"
)

// Band classifies the overall brightness of a capture.
type Band string

const (
	BandDark   Band = "dark"
	BandBright Band = "bright"
	BandMid    Band = "mid"
)

// Classification thresholds and limits for the reconstruction decision
// tree.
const (
	darkLuminance   = 0.22
	brightLuminance = 0.65

	dualToneShadowMin = 0.18
	dualToneBrightMin = 0.06
	clipRecoveryMin   = 0.03

	maxExposureBoostEV = 1.2
)

// Plan is the fully resolved set of adjustments the engine decided on for
// one capture. Building the plan is deterministic: the same summary always
// yields the same plan.
type Plan struct {
	Band              Band
	DualTone          bool
	Curve             []CurvePoint
	HighlightRecovery float64
	ExposureEV        float64
	Brightness        float64
	Contrast          float64
	Saturation        float64
	Sharpen           float64
}

// BuildPlan walks the decision tree over the aggregate scene statistics.
// The dynamic-range and highlight-clip corrections compose with exactly one
// of the three brightness bands. A single formula cannot serve both
// near-black night scenes and bright daylight, so the engine branches on
// what was actually measured.
func BuildPlan(s scene.Summary, noiseReduction float64) Plan {
	p := Plan{
		Band:       BandMid,
		Contrast:   1.0,
		Saturation: 1.0,
		Sharpen:    0.25 + 0.35*clampF(noiseReduction, 0, 1),
	}

	// High dynamic range: lift shadows and roll off highlights together.
	if s.ShadowRatio > dualToneShadowMin && s.BrightRatio > dualToneBrightMin {
		p.DualTone = true
		p.Curve = dualToneCurve(s.ShadowRatio, s.BrightRatio)
	}

	// Clipped frames in the stack: recover highlights and pull overall
	// exposure down in proportion.
	if s.ClipRatio > clipRecoveryMin {
		p.HighlightRecovery = math.Min(1, s.ClipRatio*6)
		p.ExposureEV -= 0.5 * p.HighlightRecovery
	}

	switch {
	case s.MeanLuminance < darkLuminance:
		p.Band = BandDark
		deficit := (darkLuminance - s.MeanLuminance) / 0.18
		p.ExposureEV += clampF(maxExposureBoostEV*deficit, 0, maxExposureBoostEV)
		p.Brightness += 0.05
		p.Saturation *= 0.95
		p.Contrast *= 1.15
		// Stacking plus noise reduction softens dark scenes the most.
		p.Sharpen += 0.3
	case s.MeanLuminance > brightLuminance:
		p.Band = BandBright
		excess := math.Min(1, (s.MeanLuminance-brightLuminance)/0.35)
		if excess > p.HighlightRecovery {
			p.HighlightRecovery = excess
		}
		p.Brightness -= 0.08
		p.Saturation *= 0.9
		p.Contrast *= 0.95
	default:
		p.Saturation *= 1.03
		p.Contrast *= 1.04
		p.Brightness -= 0.01
	}

	return p
}

// Transforms renders the plan as the ordered pipeline to apply.
func (p Plan) Transforms() []Transform {
	var ts []Transform
	if p.DualTone {
		ts = append(ts, Curve(p.Curve))
	}
	if p.HighlightRecovery > 0 {
		ts = append(ts, Highlights(p.HighlightRecovery))
	}
	if p.ExposureEV != 0 {
		ts = append(ts, Exposure(p.ExposureEV))
	}
	if p.Brightness != 0 {
		ts = append(ts, Brightness(p.Brightness))
	}
	if p.Contrast != 1 {
		ts = append(ts, Contrast(p.Contrast))
	}
	if p.Saturation != 1 {
		ts = append(ts, Saturation(p.Saturation))
	}
	if p.Sharpen > 0 {
		ts = append(ts, Sharpen(p.Sharpen))
	}
	return ts
}

// Reconstruct tone-maps the normalized composite in place and returns the
// plan that was applied.
func Reconstruct(f *pixel.Frame, s scene.Summary, noiseReduction float64) Plan {
	plan := BuildPlan(s, noiseReduction)
	for _, t := range plan.Transforms() {
		t.Apply(f)
	}
	return plan
}

// dualToneCurve builds the 5-point compression curve. Shadow lift and
// highlight rolloff scale with how much of the capture sat in each zone.
func dualToneCurve(shadowRatio, brightRatio float64) []CurvePoint {
	lift := math.Min(1, shadowRatio/0.5)
	roll := math.Min(1, brightRatio/0.5)
	return []CurvePoint{
		{In: 0.00, Out: 0.02 * lift},
		{In: 0.25, Out: 0.25 + 0.10*lift},
		{In: 0.50, Out: 0.50},
		{In: 0.75, Out: 0.75 - 0.08*roll},
		{In: 1.00, Out: 1.00 - 0.03*roll},
	}
}
