package scene

import "gonum.org/v1/gonum/stat"

// Ratio thresholds for classifying individual frames inside a summary.
const (
	clipThreshold   = 0.92
	shadowThreshold = 0.22
	brightThreshold = 0.72
)

// Summary aggregates the retained per-frame metrics of a whole capture.
// It is computed once at finalize and never mutated afterwards.
type Summary struct {
	Frames        int
	MeanLuminance float64
	// ClipRatio is the fraction of frames whose highlight reached the
	// clipping threshold.
	ClipRatio float64
	// ShadowRatio and BrightRatio are the fractions of frames classified
	// as dark respectively bright.
	ShadowRatio float64
	BrightRatio float64
	// BlueRatio is the blue channel's share of the average color.
	BlueRatio float64
	AvgColor  [3]float64
}

func Summarize(ms []Metrics) Summary {
	if len(ms) == 0 {
		return Summary{}
	}

	lums := make([]float64, len(ms))
	var clipped, shadow, bright int
	var avg [3]float64
	for i, m := range ms {
		lums[i] = m.Luminance
		if m.Highlight >= clipThreshold {
			clipped++
		}
		if m.Luminance < shadowThreshold {
			shadow++
		}
		if m.Luminance > brightThreshold {
			bright++
		}
		for c := range avg {
			avg[c] += m.AvgColor[c]
		}
	}

	n := float64(len(ms))
	for c := range avg {
		avg[c] /= n
	}

	total := avg[0] + avg[1] + avg[2]
	blueRatio := 0.0
	if total > 0 {
		blueRatio = avg[2] / total
	}

	return Summary{
		Frames:        len(ms),
		MeanLuminance: stat.Mean(lums, nil),
		ClipRatio:     float64(clipped) / n,
		ShadowRatio:   float64(shadow) / n,
		BrightRatio:   float64(bright) / n,
		BlueRatio:     blueRatio,
		AvgColor:      avg,
	}
}
