package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eleven-am/nightstack/internal/shared"
)

type mockRecorder struct {
	mu      sync.Mutex
	starts  []string
	results map[string]Result
	paths   map[string]string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		results: make(map[string]Result),
		paths:   make(map[string]string),
	}
}

func (r *mockRecorder) RecordStart(_ context.Context, id, deviceID string, _ ExposureSettings, _ time.Duration, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts = append(r.starts, id)
	return nil
}

func (r *mockRecorder) RecordResult(_ context.Context, id string, res Result, outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[id] = res
	r.paths[id] = outputPath
	return nil
}

func (r *mockRecorder) result(id string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[id]
	return res, ok
}

type mockProgress struct {
	mu        sync.Mutex
	published int
	cleared   []string
}

func (p *mockProgress) Publish(_ context.Context, _ string, _ Progress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published++
	return nil
}

func (p *mockProgress) Clear(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = append(p.cleared, id)
	return nil
}

type mockSaver struct {
	mu    sync.Mutex
	saved map[string][]byte
	fail  bool
}

func newMockSaver() *mockSaver {
	return &mockSaver{saved: make(map[string][]byte)}
}

func (s *mockSaver) Save(id string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return "", errors.New("disk full")
	}
	s.saved[id] = data
	return "/photos/" + id + ".jpg", nil
}

func newTestManager(rec *mockRecorder, prog *mockProgress, saver *mockSaver) *Manager {
	return NewManager(ManagerConfig{
		Recorder: rec,
		Progress: prog,
		Photos:   saver,
		Encoder:  &stubEncoder{},
	})
}

func startRequest(deviceID string) StartRequest {
	return StartRequest{
		DeviceID:       deviceID,
		Settings:       DefaultSettings(),
		Limits:         DefaultLimits(),
		TargetDuration: time.Minute,
		MaxFrames:      2,
	}
}

func waitRecorded(t *testing.T, rec *mockRecorder, id string) Result {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if res, ok := rec.result(id); ok {
			return res
		}
		select {
		case <-deadline:
			t.Fatalf("result for %s never recorded", id)
			return Result{}
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_CaptureLifecycle(t *testing.T) {
	rec := newMockRecorder()
	prog := &mockProgress{}
	saver := newMockSaver()
	m := newTestManager(rec, prog, saver)
	defer m.Close()

	session, err := m.Start(context.Background(), startRequest("dev-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.ActiveCount() != 1 {
		t.Errorf("active count = %d, want 1", m.ActiveCount())
	}

	for i := 0; i < 2; i++ {
		if !m.Ingest("dev-1", grayFrame(0.4)) {
			t.Fatalf("frame %d rejected", i)
		}
	}

	res := waitRecorded(t, rec, session.ID())
	if res.Err != nil {
		t.Fatalf("capture failed: %v", res.Err)
	}
	if res.FrameCount != 2 {
		t.Errorf("frame count = %d, want 2", res.FrameCount)
	}

	saver.mu.Lock()
	_, saved := saver.saved[session.ID()]
	saver.mu.Unlock()
	if !saved {
		t.Error("photo was not saved")
	}

	prog.mu.Lock()
	published, cleared := prog.published, len(prog.cleared)
	prog.mu.Unlock()
	if published != 2 {
		t.Errorf("published %d progress snapshots, want 2", published)
	}
	if cleared != 1 {
		t.Errorf("progress cleared %d times, want 1", cleared)
	}

	// The device frees up once the result is consumed.
	deadline := time.After(5 * time.Second)
	for m.ActiveCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("session never released")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestManager_RejectsConcurrentCapture(t *testing.T) {
	rec := newMockRecorder()
	m := newTestManager(rec, &mockProgress{}, newMockSaver())
	defer m.Close()

	if _, err := m.Start(context.Background(), startRequest("dev-1")); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(context.Background(), startRequest("dev-1")); !errors.Is(err, shared.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	// A different device is unaffected.
	if _, err := m.Start(context.Background(), startRequest("dev-2")); err != nil {
		t.Fatalf("second device start: %v", err)
	}
}

func TestManager_CancelRecordsFailure(t *testing.T) {
	rec := newMockRecorder()
	saver := newMockSaver()
	m := newTestManager(rec, &mockProgress{}, saver)
	defer m.Close()

	session, err := m.Start(context.Background(), startRequest("dev-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Cancel(session.ID()); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res := waitRecorded(t, rec, session.ID())
	if !errors.Is(res.Err, shared.ErrCanceled) {
		t.Errorf("expected cancellation error, got %v", res.Err)
	}

	saver.mu.Lock()
	n := len(saver.saved)
	saver.mu.Unlock()
	if n != 0 {
		t.Error("canceled capture should not save a photo")
	}
}

func TestManager_FinishUnknownCapture(t *testing.T) {
	m := newTestManager(newMockRecorder(), &mockProgress{}, newMockSaver())
	defer m.Close()

	if err := m.Finish("cap_missing"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := m.Cancel("cap_missing"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_IngestUnknownDevice(t *testing.T) {
	m := newTestManager(newMockRecorder(), &mockProgress{}, newMockSaver())
	defer m.Close()

	if m.Ingest("dev-idle", grayFrame(0.4)) {
		t.Error("frames for idle devices should be dropped")
	}
}

func TestManager_SaveFailureBecomesResultError(t *testing.T) {
	rec := newMockRecorder()
	saver := newMockSaver()
	saver.fail = true
	m := newTestManager(rec, &mockProgress{}, saver)
	defer m.Close()

	session, err := m.Start(context.Background(), startRequest("dev-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Ingest("dev-1", grayFrame(0.4))
	m.Ingest("dev-1", grayFrame(0.4))

	res := waitRecorded(t, rec, session.ID())
	var capErr *CaptureError
	if !errors.As(res.Err, &capErr) {
		t.Fatalf("expected CaptureError, got %v", res.Err)
	}
}

func TestManager_StartRejectsInvalidRequest(t *testing.T) {
	m := newTestManager(newMockRecorder(), &mockProgress{}, newMockSaver())
	defer m.Close()

	var cfgErr *ConfigError

	_, err := m.Start(context.Background(), StartRequest{})
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for missing device id, got %v", err)
	}

	req := startRequest("dev-1")
	req.Limits = DeviceLimits{}
	_, err = m.Start(context.Background(), req)
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError for invalid limits, got %v", err)
	}
}

func TestManager_CloseCancelsEverything(t *testing.T) {
	rec := newMockRecorder()
	m := newTestManager(rec, &mockProgress{}, newMockSaver())

	s1, err := m.Start(context.Background(), startRequest("dev-1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s2, err := m.Start(context.Background(), startRequest("dev-2"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, id := range []string{s1.ID(), s2.ID()} {
		res, ok := rec.result(id)
		if !ok {
			t.Fatalf("no result recorded for %s", id)
		}
		if !errors.Is(res.Err, shared.ErrCanceled) {
			t.Errorf("session %s: expected cancellation, got %v", id, res.Err)
		}
	}
	if m.ActiveCount() != 0 {
		t.Errorf("active count after close = %d, want 0", m.ActiveCount())
	}
}
