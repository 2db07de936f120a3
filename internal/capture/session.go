package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/nightstack/internal/align"
	"github.com/eleven-am/nightstack/internal/colorgrade"
	"github.com/eleven-am/nightstack/internal/encode"
	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/scene"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/eleven-am/nightstack/internal/stack"
	"github.com/eleven-am/nightstack/internal/tone"
	"github.com/eleven-am/nightstack/internal/weighting"
)

type State string

const (
	StateIdle       State = "idle"
	StateIngesting  State = "ingesting"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
)

// safetyGrace is how long past the target duration the background timer
// waits before force-finishing a session whose frames stopped arriving.
const safetyGrace = 2 * time.Second

// frameQueueSize bounds the ingest queue. At native frame rates the worker
// keeps up; a full queue means the device is outpacing us and the newest
// frame is shed.
const frameQueueSize = 8

// Result is the single terminal outcome of a session.
type Result struct {
	Bytes       []byte
	Err         error
	FrameCount  int
	TotalWeight float64
	Elapsed     time.Duration
	Summary     scene.Summary
	Plan        tone.Plan
}

// Progress is a point-in-time snapshot emitted after each ingested frame.
type Progress struct {
	State         State
	Frames        int
	TotalWeight   float64
	Elapsed       time.Duration
	MeanLuminance float64
}

type SessionConfig struct {
	ID             string
	Settings       ExposureSettings
	TargetDuration time.Duration
	MaxFrames      int
	Aligner        align.Aligner
	Encoder        encode.Encoder
	Logger         *slog.Logger
	OnProgress     func(Progress)
}

// Session owns one capture: it ingests frames, stacks them under the
// weighting policy, and reconstructs the final image exactly once. A
// session is never reused.
type Session struct {
	id        string
	settings  ExposureSettings
	target    time.Duration
	maxFrames int

	policy  weighting.Policy
	aligner align.Aligner
	encoder encode.Encoder
	log     *slog.Logger

	onProgress func(Progress)

	frames   chan *pixel.Frame
	finishCh chan struct{}
	cancelCh chan struct{}
	done     chan Result
	safety   *time.Timer

	mu        sync.Mutex
	state     State
	startedAt time.Time
	finalized bool

	// Owned by the worker goroutine; no lock needed past construction.
	acc       *stack.Accumulator
	metrics   []scene.Metrics
	reference *pixel.Frame
	fallbacks int
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.TargetDuration <= 0 {
		return nil, &ConfigError{Reason: "target duration must be positive"}
	}
	if cfg.MaxFrames < 0 {
		return nil, &ConfigError{Reason: "max frame count must not be negative"}
	}
	if cfg.ID == "" {
		cfg.ID = shared.NewID("cap_")
	}
	if cfg.Encoder == nil {
		cfg.Encoder = encode.NewJPEG(encode.DefaultQuality)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Session{
		id:         cfg.ID,
		settings:   cfg.Settings,
		target:     cfg.TargetDuration,
		maxFrames:  cfg.MaxFrames,
		policy:     weighting.NewPolicy(cfg.Settings.Aperture, cfg.Settings.ExposureBias, true),
		aligner:    cfg.Aligner,
		encoder:    cfg.Encoder,
		log:        cfg.Logger.With("component", "capture_session", "capture_id", cfg.ID),
		onProgress: cfg.OnProgress,
		frames:     make(chan *pixel.Frame, frameQueueSize),
		finishCh:   make(chan struct{}, 1),
		cancelCh:   make(chan struct{}, 1),
		done:       make(chan Result, 1),
		state:      StateIdle,
		acc:        stack.NewAccumulator(),
	}

	// Guards against the device stalling before any stop condition is
	// reached. Runs from session creation, independent of frame arrival.
	s.safety = time.NewTimer(cfg.TargetDuration + safetyGrace)

	go s.run()
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done delivers the terminal result exactly once.
func (s *Session) Done() <-chan Result {
	return s.done
}

// Ingest enqueues a frame for stacking. It reports false when the frame
// was shed: either finalization already began or the queue is full.
func (s *Session) Ingest(f *pixel.Frame) bool {
	s.mu.Lock()
	switch s.state {
	case StateFinalizing, StateDone:
		s.mu.Unlock()
		return false
	case StateIdle:
		s.state = StateIngesting
		s.startedAt = time.Now()
	}
	s.mu.Unlock()

	select {
	case s.frames <- f:
		return true
	default:
		s.log.Warn("frame queue full, shedding frame")
		return false
	}
}

// Finish forces finalization with whatever has been accumulated so far.
func (s *Session) Finish() {
	select {
	case s.finishCh <- struct{}{}:
	default:
	}
}

// Cancel discards the session; the terminal result reports a cancellation
// error instead of partial output.
func (s *Session) Cancel() {
	select {
	case s.cancelCh <- struct{}{}:
	default:
	}
}

// run serializes all accumulator access on one goroutine: frames, the
// deadline, the safety timer, and external finish/cancel all converge
// here, so finalize never races a frame in flight.
func (s *Session) run() {
	var deadlineC <-chan time.Time

	for {
		select {
		case f := <-s.frames:
			s.process(f)
			if deadlineC == nil {
				deadlineC = time.After(s.remaining())
			}
			if s.stopReached() {
				s.finalize("stop condition")
				return
			}
		case <-deadlineC:
			s.finalize("deadline")
			return
		case <-s.safety.C:
			s.finalize("safety timeout")
			return
		case <-s.finishCh:
			s.finalize("forced")
			return
		case <-s.cancelCh:
			s.terminate(Result{Err: &CaptureError{Reason: "canceled", Err: shared.ErrCanceled}})
			return
		}
	}
}

func (s *Session) process(f *pixel.Frame) {
	if s.reference == nil {
		s.reference = f
	} else if s.aligner != nil {
		if aligned, err := s.aligner.Align(f, s.reference); err == nil {
			f = aligned
		} else {
			s.log.Debug("alignment failed, stacking unaligned", "error", err)
		}
	}

	weight := weighting.NeutralWeight
	m, err := scene.Sample(f)
	if err != nil {
		// The frame still joins the stack; only its weight is
		// approximated.
		s.fallbacks++
		s.log.Debug("metrics sampling failed, using neutral weight", "error", err)
	} else {
		weight = s.policy.Weight(m)
		s.metrics = append(s.metrics, m)
	}

	if err := s.acc.Add(f, weight); err != nil {
		s.log.Warn("frame rejected by accumulator", "error", err)
		return
	}

	if s.onProgress != nil {
		s.onProgress(s.snapshot())
	}
}

func (s *Session) snapshot() Progress {
	p := Progress{
		State:       StateIngesting,
		Frames:      s.acc.FrameCount(),
		TotalWeight: s.acc.TotalWeight(),
		Elapsed:     s.elapsed(),
	}
	if len(s.metrics) > 0 {
		var sum float64
		for _, m := range s.metrics {
			sum += m.Luminance
		}
		p.MeanLuminance = sum / float64(len(s.metrics))
	}
	return p
}

func (s *Session) stopReached() bool {
	if s.maxFrames > 0 && s.acc.FrameCount() >= s.maxFrames {
		return true
	}
	return s.elapsed() >= s.target
}

func (s *Session) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

func (s *Session) remaining() time.Duration {
	r := s.target - s.elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// beginFinalize is the idempotent gate: the natural deadline, the safety
// timer, and an external force can all fire, but only the first one wins.
func (s *Session) beginFinalize() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return false
	}
	s.finalized = true
	s.state = StateFinalizing
	return true
}

func (s *Session) finalize(reason string) {
	if !s.beginFinalize() {
		return
	}
	s.safety.Stop()
	elapsed := s.elapsed()

	s.log.Info("finalizing capture",
		"reason", reason,
		"frames", s.acc.FrameCount(),
		"total_weight", s.acc.TotalWeight(),
		"fallback_frames", s.fallbacks)

	composite, err := s.acc.Normalize()
	if err != nil {
		s.deliver(Result{
			Err:     &CaptureError{Reason: "no frames accumulated", Err: err},
			Elapsed: elapsed,
		})
		return
	}

	summary := scene.Summarize(s.metrics)
	plan := tone.Reconstruct(composite, summary, s.settings.NoiseReduction)

	colorgrade.NewCorrection(summary.AvgColor).Apply(composite)
	colorgrade.Saturate(composite, colorgrade.AdaptiveSaturation(s.settings.ColorSaturation, summary))
	colorgrade.ExposureBias(composite, s.settings.ExposureBias)

	data, err := s.encoder.Encode(composite)
	if err != nil {
		s.deliver(Result{
			Err:         &CaptureError{Reason: "encoding failed", Err: err},
			FrameCount:  s.acc.FrameCount(),
			TotalWeight: s.acc.TotalWeight(),
			Elapsed:     elapsed,
			Summary:     summary,
			Plan:        plan,
		})
		return
	}

	s.deliver(Result{
		Bytes:       data,
		FrameCount:  s.acc.FrameCount(),
		TotalWeight: s.acc.TotalWeight(),
		Elapsed:     elapsed,
		Summary:     summary,
		Plan:        plan,
	})
}

// terminate is the cancel path: it claims the gate and reports the given
// failure without touching the accumulator.
func (s *Session) terminate(res Result) {
	if !s.beginFinalize() {
		return
	}
	s.safety.Stop()
	res.Elapsed = s.elapsed()
	s.deliver(res)
}

func (s *Session) deliver(res Result) {
	s.mu.Lock()
	s.state = StateDone
	s.mu.Unlock()
	s.done <- res
}
