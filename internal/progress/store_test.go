package progress

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/redis/go-redis/v9"
)

func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping test")
	}
	return client
}

func TestStore_PublishGetClear(t *testing.T) {
	store := NewStore(getTestRedisClient(t))
	ctx := context.Background()

	id := "cap-test-" + time.Now().Format("20060102150405.000")
	defer store.Clear(ctx, id)

	p := capture.Progress{
		State:         capture.StateIngesting,
		Frames:        7,
		TotalWeight:   16.8,
		Elapsed:       2300 * time.Millisecond,
		MeanLuminance: 0.12,
	}
	if err := store.Publish(ctx, id, p); err != nil {
		t.Fatalf("publish: %v", err)
	}

	snap, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.CaptureID != id {
		t.Errorf("capture id = %q, want %q", snap.CaptureID, id)
	}
	if snap.Frames != 7 {
		t.Errorf("frames = %d, want 7", snap.Frames)
	}
	if snap.TotalWeight != 16.8 {
		t.Errorf("total weight = %v, want 16.8", snap.TotalWeight)
	}
	if snap.ElapsedMs != 2300 {
		t.Errorf("elapsed = %d ms, want 2300", snap.ElapsedMs)
	}
	if snap.State != string(capture.StateIngesting) {
		t.Errorf("state = %q", snap.State)
	}

	if err := store.Clear(ctx, id); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
}

func TestStore_GetMissing(t *testing.T) {
	store := NewStore(getTestRedisClient(t))

	if _, err := store.Get(context.Background(), "cap-never-existed"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
