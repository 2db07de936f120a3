package storage

import "time"

type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// CaptureRecord is the persisted lifecycle of one capture.
type CaptureRecord struct {
	ID       string `gorm:"primaryKey" json:"id"`
	DeviceID string `gorm:"index" json:"device_id"`
	Status   Status `gorm:"index" json:"status"`

	SettingsJSON string `json:"-"`
	TargetMs     int64  `json:"target_ms"`
	MaxFrames    int    `json:"max_frames"`

	FrameCount    int     `json:"frame_count"`
	TotalWeight   float64 `json:"total_weight"`
	MeanLuminance float64 `json:"mean_luminance"`
	ToneBand      string  `json:"tone_band"`
	ElapsedMs     int64   `json:"elapsed_ms"`

	OutputPath string `json:"-"`
	Error      string `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
