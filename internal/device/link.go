package device

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024 * 1024
)

// Hello is the first message a device sends after connecting: its
// identity and calibration bounds.
type Hello struct {
	DeviceID      string  `json:"device_id"`
	MinISO        float64 `json:"min_iso"`
	MaxISO        float64 `json:"max_iso"`
	MinExposureMs int64   `json:"min_exposure_ms"`
	MaxExposureMs int64   `json:"max_exposure_ms"`
}

func (h Hello) Limits() capture.DeviceLimits {
	lim := capture.DeviceLimits{
		MinISO:      h.MinISO,
		MaxISO:      h.MaxISO,
		MinExposure: time.Duration(h.MinExposureMs) * time.Millisecond,
		MaxExposure: time.Duration(h.MaxExposureMs) * time.Millisecond,
	}
	if lim.MinISO <= 0 || lim.MaxISO < lim.MinISO || lim.MinExposure <= 0 || lim.MaxExposure < lim.MinExposure {
		return capture.DefaultLimits()
	}
	return lim
}

// FrameHandler receives each decoded frame in arrival order.
type FrameHandler func(deviceID string, f *pixel.Frame)

// Link is one connected device. The read pump decodes binary frame
// payloads and hands them to the frame handler; text messages are ignored
// after the hello.
type Link struct {
	deviceID  string
	limits    capture.DeviceLimits
	ws        *websocket.Conn
	shortSide int
	handler   FrameHandler
	log       *slog.Logger

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

type LinkConfig struct {
	Hello     Hello
	Conn      *websocket.Conn
	ShortSide int
	Handler   FrameHandler
	Logger    *slog.Logger
}

func NewLink(cfg LinkConfig) *Link {
	if cfg.ShortSide <= 0 {
		cfg.ShortSide = pixel.DefaultShortSide
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Link{
		deviceID:  cfg.Hello.DeviceID,
		limits:    cfg.Hello.Limits(),
		ws:        cfg.Conn,
		shortSide: cfg.ShortSide,
		handler:   cfg.Handler,
		log:       cfg.Logger.With("component", "device_link", "device_id", cfg.Hello.DeviceID),
		done:      make(chan struct{}),
	}
}

func (l *Link) DeviceID() string {
	return l.deviceID
}

func (l *Link) Limits() capture.DeviceLimits {
	return l.limits
}

// ReadPump blocks until the connection drops, decoding frames as they
// arrive. Frames that fail to decode are skipped; the device keeps
// streaming.
func (l *Link) ReadPump() {
	defer l.Close()

	l.ws.SetReadLimit(maxMessageSize)
	l.ws.SetReadDeadline(time.Now().Add(pongWait))
	l.ws.SetPongHandler(func(string) error {
		l.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go l.pingLoop()

	for {
		msgType, data, err := l.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				l.log.Warn("device link dropped", "error", err)
			}
			return
		}

		if msgType != websocket.BinaryMessage {
			continue
		}

		frame, err := DecodeFrame(data, l.shortSide)
		if err != nil {
			l.log.Debug("frame decode failed", "error", err)
			continue
		}

		if l.handler != nil {
			l.handler(l.deviceID, frame)
		}
	}
}

func (l *Link) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			if l.closed {
				l.mu.Unlock()
				return
			}
			l.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := l.ws.WriteMessage(websocket.PingMessage, nil)
			l.mu.Unlock()
			if err != nil {
				return
			}
		case <-l.done:
			return
		}
	}
}

// SendJSON writes a control message to the device.
func (l *Link) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return l.ws.WriteMessage(websocket.TextMessage, data)
}

func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.done)
	return l.ws.Close()
}
