package dto

import "time"

type ExposureSettingsRequest struct {
	ISO             float64 `json:"iso"`
	DurationMs      int64   `json:"duration_ms"`
	NoiseReduction  float64 `json:"noise_reduction"`
	Aperture        float64 `json:"aperture"`
	ExposureBias    float64 `json:"exposure_bias"`
	AutoISO         bool    `json:"auto_iso"`
	ColorSaturation float64 `json:"color_saturation"`
}

type StartCaptureRequest struct {
	DeviceID         string                  `json:"device_id"`
	TargetDurationMs int64                   `json:"target_duration_ms"`
	MaxFrames        int                     `json:"max_frames"`
	Align            bool                    `json:"align"`
	Settings         ExposureSettingsRequest `json:"settings"`
}

type StartCaptureResponse struct {
	CaptureID string `json:"capture_id"`
	DeviceID  string `json:"device_id"`
	Status    string `json:"status"`
}

type ProgressResponse struct {
	State         string  `json:"state"`
	Frames        int     `json:"frames"`
	TotalWeight   float64 `json:"total_weight"`
	ElapsedMs     int64   `json:"elapsed_ms"`
	MeanLuminance float64 `json:"mean_luminance"`
}

type CaptureResponse struct {
	CaptureID     string            `json:"capture_id"`
	DeviceID      string            `json:"device_id"`
	Status        string            `json:"status"`
	FrameCount    int               `json:"frame_count"`
	TotalWeight   float64           `json:"total_weight"`
	MeanLuminance float64           `json:"mean_luminance"`
	ToneBand      string            `json:"tone_band,omitempty"`
	ElapsedMs     int64             `json:"elapsed_ms"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	Progress      *ProgressResponse `json:"progress,omitempty"`
}

// CaptureControlMessage is pushed to the device over its frame link when a
// capture begins, so it can hold exposure settings steady for the window.
type CaptureControlMessage struct {
	Type             string `json:"type"`
	CaptureID        string `json:"capture_id"`
	TargetDurationMs int64  `json:"target_duration_ms"`
	MaxFrames        int    `json:"max_frames"`
}

type CapabilitiesResponse struct {
	DeviceID      string  `json:"device_id"`
	MinISO        float64 `json:"min_iso"`
	MaxISO        float64 `json:"max_iso"`
	MinExposureMs int64   `json:"min_exposure_ms"`
	MaxExposureMs int64   `json:"max_exposure_ms"`
}
