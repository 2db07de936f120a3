package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/redis/go-redis/v9"
)

const progressTTL = time.Hour

// Snapshot is the live view of a running capture, written after every
// ingested frame and removed when the capture reaches a terminal state.
type Snapshot struct {
	CaptureID     string  `json:"capture_id"`
	State         string  `json:"state"`
	Frames        int     `json:"frames"`
	TotalWeight   float64 `json:"total_weight"`
	ElapsedMs     int64   `json:"elapsed_ms"`
	MeanLuminance float64 `json:"mean_luminance"`
}

type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func key(id string) string {
	return "capture:progress:" + id
}

// Publish implements capture.ProgressPublisher.
func (s *Store) Publish(ctx context.Context, id string, p capture.Progress) error {
	snap := Snapshot{
		CaptureID:     id,
		State:         string(p.State),
		Frames:        p.Frames,
		TotalWeight:   p.TotalWeight,
		ElapsedMs:     p.Elapsed.Milliseconds(),
		MeanLuminance: p.MeanLuminance,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key(id), data, progressTTL).Err()
}

// Clear implements capture.ProgressPublisher.
func (s *Store) Clear(ctx context.Context, id string) error {
	return s.redis.Del(ctx, key(id)).Err()
}

func (s *Store) Get(ctx context.Context, id string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, key(id)).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
