package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/shared"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&CaptureRecord{})
}

func (s *Store) GetByID(ctx context.Context, id string) (*CaptureRecord, error) {
	var rec CaptureRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.ErrNotFound
	}
	return &rec, err
}

func (s *Store) ListByDevice(ctx context.Context, deviceID string, limit int) ([]*CaptureRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []*CaptureRecord
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// RecordStart implements capture.Recorder.
func (s *Store) RecordStart(ctx context.Context, id, deviceID string, settings capture.ExposureSettings, target time.Duration, maxFrames int) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	rec := &CaptureRecord{
		ID:           id,
		DeviceID:     deviceID,
		Status:       StatusRunning,
		SettingsJSON: string(data),
		TargetMs:     target.Milliseconds(),
		MaxFrames:    maxFrames,
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

// RecordResult implements capture.Recorder.
func (s *Store) RecordResult(ctx context.Context, id string, res capture.Result, outputPath string) error {
	now := time.Now()
	updates := map[string]any{
		"status":         statusFor(res),
		"frame_count":    res.FrameCount,
		"total_weight":   res.TotalWeight,
		"mean_luminance": res.Summary.MeanLuminance,
		"tone_band":      string(res.Plan.Band),
		"elapsed_ms":     res.Elapsed.Milliseconds(),
		"output_path":    outputPath,
		"finished_at":    &now,
	}
	if res.Err != nil {
		updates["error"] = res.Err.Error()
	}
	return s.db.WithContext(ctx).
		Model(&CaptureRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func statusFor(res capture.Result) Status {
	if res.Err == nil {
		return StatusSucceeded
	}
	if errors.Is(res.Err, shared.ErrCanceled) {
		return StatusCanceled
	}
	return StatusFailed
}
