package capture

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/eleven-am/nightstack/internal/stack"
	"github.com/eleven-am/nightstack/internal/tone"
)

type stubEncoder struct {
	calls int
	fail  bool
}

func (e *stubEncoder) Encode(f *pixel.Frame) ([]byte, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("encode failure")
	}
	return []byte("jpeg"), nil
}

func (e *stubEncoder) ContentType() string { return "image/jpeg" }

func grayFrame(v float32) *pixel.Frame {
	f := pixel.New(8, 8)
	for i := range f.R {
		f.R[i], f.G[i], f.B[i] = v, v, v
	}
	return f
}

func waitResult(t *testing.T, s *Session) Result {
	t.Helper()
	select {
	case res := <-s.Done():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("session never delivered a result")
		return Result{}
	}
}

func TestSession_StopsAtMaxFrames(t *testing.T) {
	enc := &stubEncoder{}
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: time.Minute,
		MaxFrames:      3,
		Encoder:        enc,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	for i := 0; i < 3; i++ {
		if !s.Ingest(grayFrame(0.4)) {
			t.Fatalf("frame %d rejected", i)
		}
	}

	res := waitResult(t, s)
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if res.FrameCount != 3 {
		t.Errorf("frame count = %d, want 3", res.FrameCount)
	}
	if enc.calls != 1 {
		t.Errorf("encoder called %d times, want 1", enc.calls)
	}
	if s.Ingest(grayFrame(0.4)) {
		t.Error("finished session should reject frames")
	}
}

func TestSession_DeadlineFinalizes(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: 50 * time.Millisecond,
		Encoder:        &stubEncoder{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	if !s.Ingest(grayFrame(0.4)) {
		t.Fatal("frame rejected")
	}

	res := waitResult(t, s)
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if res.FrameCount != 1 {
		t.Errorf("frame count = %d, want 1", res.FrameCount)
	}
	if res.Elapsed < 50*time.Millisecond {
		t.Errorf("finalized before the deadline: %v", res.Elapsed)
	}
}

func TestSession_FinishWithNoFrames(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: time.Minute,
		Encoder:        &stubEncoder{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Finish()
	res := waitResult(t, s)

	var capErr *CaptureError
	if !errors.As(res.Err, &capErr) {
		t.Fatalf("expected CaptureError, got %v", res.Err)
	}
	if !errors.Is(res.Err, stack.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames cause, got %v", res.Err)
	}
}

func TestSession_FinishDeliversOnce(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: time.Minute,
		Encoder:        &stubEncoder{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Ingest(grayFrame(0.4))
	s.Finish()
	s.Finish()
	s.Cancel()

	waitResult(t, s)
	select {
	case res := <-s.Done():
		t.Fatalf("second result delivered: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}
	if got := s.State(); got != StateDone {
		t.Errorf("state = %v, want done", got)
	}
}

func TestSession_CancelDiscardsOutput(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: time.Minute,
		Encoder:        &stubEncoder{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Ingest(grayFrame(0.4))
	s.Cancel()

	res := waitResult(t, s)
	if !errors.Is(res.Err, shared.ErrCanceled) {
		t.Fatalf("expected cancellation error, got %v", res.Err)
	}
	if res.Bytes != nil {
		t.Error("canceled session should not produce output")
	}
}

func TestSession_SafetyTimerFires(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: 10 * time.Millisecond,
		Encoder:        &stubEncoder{},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	// No frames ever arrive; only the safety timer can end the session.
	res := waitResult(t, s)
	if !errors.Is(res.Err, stack.ErrNoFrames) {
		t.Errorf("expected ErrNoFrames from the safety path, got %v", res.Err)
	}
}

func TestSession_RejectsBadConfig(t *testing.T) {
	if _, err := NewSession(SessionConfig{TargetDuration: 0}); err == nil {
		t.Error("expected error for zero target duration")
	}
	if _, err := NewSession(SessionConfig{TargetDuration: time.Second, MaxFrames: -1}); err == nil {
		t.Error("expected error for negative max frames")
	}
}

func TestSession_DarkSceneStacking(t *testing.T) {
	settings := DefaultSettings()
	var progress []Progress

	s, err := NewSession(SessionConfig{
		Settings:       settings,
		TargetDuration: time.Minute,
		MaxFrames:      8,
		Encoder:        &stubEncoder{},
		OnProgress:     func(p Progress) { progress = append(progress, p) },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	for i := 0; i < 8; i++ {
		if !s.Ingest(grayFrame(0.10)) {
			t.Fatalf("frame %d rejected", i)
		}
	}

	res := waitResult(t, s)
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}

	// Uniform 0.10 luminance frames at f/2.2 with no bias weigh 2.4 each.
	if math.Abs(res.TotalWeight-8*2.4) > 1e-3 {
		t.Errorf("total weight = %v, want %v", res.TotalWeight, 8*2.4)
	}
	if res.Plan.Band != tone.BandDark {
		t.Errorf("band = %v, want dark", res.Plan.Band)
	}
	if math.Abs(res.Plan.ExposureEV-0.8) > 1e-2 {
		t.Errorf("exposure = %v EV, want 0.8", res.Plan.ExposureEV)
	}
	if math.Abs(res.Summary.MeanLuminance-0.10) > 1e-3 {
		t.Errorf("mean luminance = %v, want 0.10", res.Summary.MeanLuminance)
	}

	if len(progress) != 8 {
		t.Fatalf("got %d progress snapshots, want 8", len(progress))
	}
	last := progress[len(progress)-1]
	if last.Frames != 8 {
		t.Errorf("last snapshot frames = %d, want 8", last.Frames)
	}
	if math.Abs(last.MeanLuminance-0.10) > 1e-3 {
		t.Errorf("last snapshot luminance = %v, want 0.10", last.MeanLuminance)
	}
}

func TestSession_EncodeFailureSurfaces(t *testing.T) {
	s, err := NewSession(SessionConfig{
		Settings:       DefaultSettings(),
		TargetDuration: time.Minute,
		MaxFrames:      1,
		Encoder:        &stubEncoder{fail: true},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}

	s.Ingest(grayFrame(0.4))
	res := waitResult(t, s)

	var capErr *CaptureError
	if !errors.As(res.Err, &capErr) {
		t.Fatalf("expected CaptureError, got %v", res.Err)
	}
	if res.FrameCount != 1 {
		t.Errorf("frame count should survive encode failure, got %d", res.FrameCount)
	}
}
