package capture

import (
	"time"
)

// DeviceLimits is the immutable safety policy a device reports for itself.
// Settings are resolved against it before any use; nothing in the pipeline
// reads ambient limit state.
type DeviceLimits struct {
	MinISO      float64       `json:"min_iso"`
	MaxISO      float64       `json:"max_iso"`
	MinExposure time.Duration `json:"min_exposure"`
	MaxExposure time.Duration `json:"max_exposure"`
}

func DefaultLimits() DeviceLimits {
	return DeviceLimits{
		MinISO:      50,
		MaxISO:      6400,
		MinExposure: time.Millisecond,
		MaxExposure: time.Second,
	}
}

func (l DeviceLimits) valid() bool {
	return l.MinISO > 0 && l.MaxISO >= l.MinISO &&
		l.MinExposure > 0 && l.MaxExposure >= l.MinExposure
}

// ExposureSettings is the per-request capture configuration. A resolved
// value is immutable for the lifetime of its session.
type ExposureSettings struct {
	ISO             float64       `json:"iso"`
	Duration        time.Duration `json:"duration"`
	NoiseReduction  float64       `json:"noise_reduction"`
	Aperture        float64       `json:"aperture"`
	ExposureBias    float64       `json:"exposure_bias"`
	AutoISO         bool          `json:"auto_iso"`
	ColorSaturation float64       `json:"color_saturation"`
}

func DefaultSettings() ExposureSettings {
	return ExposureSettings{
		ISO:             800,
		Duration:        33 * time.Millisecond,
		NoiseReduction:  0.5,
		Aperture:        2.2,
		ExposureBias:    0,
		ColorSaturation: 1.0,
	}
}

// Resolve clamps every field into the device and policy ranges. The result
// never carries a negative value and always has a positive duration.
func (s ExposureSettings) Resolve(lim DeviceLimits) (ExposureSettings, error) {
	if !lim.valid() {
		return ExposureSettings{}, &ConfigError{Reason: "invalid device limits"}
	}

	r := s
	r.ISO = clampF(r.ISO, lim.MinISO, lim.MaxISO)
	r.Duration = clampD(r.Duration, lim.MinExposure, lim.MaxExposure)
	r.NoiseReduction = clampF(r.NoiseReduction, 0, 1)
	r.ExposureBias = clampF(r.ExposureBias, -2, 2)
	if r.Aperture <= 0 {
		r.Aperture = DefaultSettings().Aperture
	}
	if r.ColorSaturation <= 0 {
		r.ColorSaturation = 1.0
	}
	return r, nil
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

func clampD(v, lo, hi time.Duration) time.Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
