package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/nightstack/internal/align"
	"github.com/eleven-am/nightstack/internal/encode"
	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/shared"
)

// Recorder persists capture lifecycle records.
type Recorder interface {
	RecordStart(ctx context.Context, id, deviceID string, settings ExposureSettings, target time.Duration, maxFrames int) error
	RecordResult(ctx context.Context, id string, res Result, outputPath string) error
}

// ProgressPublisher mirrors live session progress for status queries.
type ProgressPublisher interface {
	Publish(ctx context.Context, id string, p Progress) error
	Clear(ctx context.Context, id string) error
}

// PhotoSaver persists the final encoded bytes and returns where they went.
type PhotoSaver interface {
	Save(id string, data []byte) (string, error)
}

type ManagerConfig struct {
	Recorder Recorder
	Progress ProgressPublisher
	Photos   PhotoSaver
	Encoder  encode.Encoder
	Logger   *slog.Logger
}

// Manager owns the device-to-session mapping. A device runs at most one
// capture at a time; a second start request is rejected, never queued.
type Manager struct {
	recorder Recorder
	progress ProgressPublisher
	photos   PhotoSaver
	encoder  encode.Encoder
	log      *slog.Logger

	mu       sync.Mutex
	byDevice map[string]*Session
	byID     map[string]*Session
	wg       sync.WaitGroup
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		recorder: cfg.Recorder,
		progress: cfg.Progress,
		photos:   cfg.Photos,
		encoder:  cfg.Encoder,
		log:      cfg.Logger.With("component", "capture_manager"),
		byDevice: make(map[string]*Session),
		byID:     make(map[string]*Session),
	}
}

type StartRequest struct {
	DeviceID       string
	Settings       ExposureSettings
	Limits         DeviceLimits
	TargetDuration time.Duration
	MaxFrames      int
	Align          bool
}

// Start resolves the settings, creates the session, and registers it as
// the device's active capture. Returns shared.ErrBusy while a capture is
// already running on the device.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if req.DeviceID == "" {
		return nil, &ConfigError{Reason: "device id required"}
	}

	settings, err := req.Settings.Resolve(req.Limits)
	if err != nil {
		return nil, err
	}

	var aligner align.Aligner = align.Passthrough{}
	if req.Align {
		aligner = align.NewTranslation()
	}

	id := shared.NewID("cap_")
	session, err := NewSession(SessionConfig{
		ID:             id,
		Settings:       settings,
		TargetDuration: req.TargetDuration,
		MaxFrames:      req.MaxFrames,
		Aligner:        aligner,
		Encoder:        m.encoder,
		Logger:         m.log,
		OnProgress: func(p Progress) {
			m.publishProgress(id, p)
		},
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, busy := m.byDevice[req.DeviceID]; busy {
		m.mu.Unlock()
		session.Cancel()
		<-session.Done()
		return nil, shared.ErrBusy
	}
	m.byDevice[req.DeviceID] = session
	m.byID[id] = session
	m.mu.Unlock()

	if m.recorder != nil {
		if err := m.recorder.RecordStart(ctx, id, req.DeviceID, settings, req.TargetDuration, req.MaxFrames); err != nil {
			m.log.Error("failed to record capture start", "capture_id", id, "error", err)
		}
	}

	m.wg.Add(1)
	go m.await(req.DeviceID, session)

	m.log.Info("capture started",
		"capture_id", id,
		"device_id", req.DeviceID,
		"target", req.TargetDuration,
		"max_frames", req.MaxFrames)
	return session, nil
}

// Ingest routes a device frame to its active session. Frames for idle
// devices are dropped.
func (m *Manager) Ingest(deviceID string, f *pixel.Frame) bool {
	m.mu.Lock()
	session := m.byDevice[deviceID]
	m.mu.Unlock()

	if session == nil {
		return false
	}
	return session.Ingest(f)
}

// Finish force-finalizes a running capture with its partial accumulation.
func (m *Manager) Finish(captureID string) error {
	session, err := m.activeSession(captureID)
	if err != nil {
		return err
	}
	session.Finish()
	return nil
}

// Cancel discards a running capture.
func (m *Manager) Cancel(captureID string) error {
	session, err := m.activeSession(captureID)
	if err != nil {
		return err
	}
	session.Cancel()
	return nil
}

func (m *Manager) activeSession(captureID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.byID[captureID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return session, nil
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// await consumes the session's terminal result: saves the photo, writes
// the record, clears live progress, and frees the device.
func (m *Manager) await(deviceID string, session *Session) {
	defer m.wg.Done()
	res := <-session.Done()

	outputPath := ""
	if res.Err == nil && m.photos != nil {
		path, err := m.photos.Save(session.ID(), res.Bytes)
		if err != nil {
			res = Result{
				Err:         &CaptureError{Reason: "saving photo failed", Err: err},
				FrameCount:  res.FrameCount,
				TotalWeight: res.TotalWeight,
				Elapsed:     res.Elapsed,
				Summary:     res.Summary,
				Plan:        res.Plan,
			}
		} else {
			outputPath = path
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if m.recorder != nil {
		if err := m.recorder.RecordResult(ctx, session.ID(), res, outputPath); err != nil {
			m.log.Error("failed to record capture result", "capture_id", session.ID(), "error", err)
		}
	}
	if m.progress != nil {
		if err := m.progress.Clear(ctx, session.ID()); err != nil {
			m.log.Debug("failed to clear progress", "capture_id", session.ID(), "error", err)
		}
	}

	m.mu.Lock()
	if m.byDevice[deviceID] == session {
		delete(m.byDevice, deviceID)
	}
	delete(m.byID, session.ID())
	m.mu.Unlock()

	if res.Err != nil {
		m.log.Info("capture failed",
			"capture_id", session.ID(),
			"device_id", deviceID,
			"error", res.Err)
	} else {
		m.log.Info("capture finished",
			"capture_id", session.ID(),
			"device_id", deviceID,
			"frames", res.FrameCount,
			"total_weight", res.TotalWeight,
			"tone_band", res.Plan.Band,
			"bytes", len(res.Bytes))
	}
}

func (m *Manager) publishProgress(id string, p Progress) {
	if m.progress == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	if err := m.progress.Publish(ctx, id, p); err != nil {
		m.log.Debug("failed to publish progress", "capture_id", id, "error", err)
	}
}

// Close cancels all running captures and waits for their terminal results
// to be processed.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.byID))
	for _, s := range m.byID {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
	m.wg.Wait()
	return nil
}
