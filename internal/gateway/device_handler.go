package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/device"
	"github.com/eleven-am/nightstack/internal/dto"
	"github.com/eleven-am/nightstack/internal/pixel"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const helloWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// DeviceHandler owns the device-facing surface: the frame-delivery
// WebSocket and the capability query.
type DeviceHandler struct {
	registry  *device.Registry
	manager   *capture.Manager
	shortSide int
	logger    *slog.Logger
}

func NewDeviceHandler(registry *device.Registry, manager *capture.Manager, shortSide int, logger *slog.Logger) *DeviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandler{
		registry:  registry,
		manager:   manager,
		shortSide: shortSide,
		logger:    logger.With("component", "device_handler"),
	}
}

func (h *DeviceHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/frames", h.Connect)
	g.GET("/:id/capabilities", h.Capabilities)
}

// Connect upgrades the device connection. The device must send its hello
// first; after that every binary message is a frame in capture order.
func (h *DeviceHandler) Connect(c echo.Context) error {
	deviceID := c.Param("id")
	if deviceID == "" {
		return shared.BadRequest("missing_device", "device id is required")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "device_id", deviceID, "error", err)
		return err
	}

	hello, err := readHello(ws)
	if err != nil {
		h.logger.Warn("device hello failed", "device_id", deviceID, "error", err)
		ws.Close()
		return nil
	}
	hello.DeviceID = deviceID

	link := device.NewLink(device.LinkConfig{
		Hello:     hello,
		Conn:      ws,
		ShortSide: h.shortSide,
		Handler:   h.ingest,
		Logger:    h.logger,
	})

	h.registry.Register(link)
	link.ReadPump()
	h.registry.Unregister(link)
	return nil
}

func (h *DeviceHandler) ingest(deviceID string, f *pixel.Frame) {
	h.manager.Ingest(deviceID, f)
}

func (h *DeviceHandler) Capabilities(c echo.Context) error {
	deviceID := c.Param("id")

	link, err := h.registry.Get(deviceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("device_offline", "device is not connected")
		}
		return shared.InternalError("capabilities_failed", "failed to query device")
	}

	lim := link.Limits()
	return c.JSON(http.StatusOK, dto.CapabilitiesResponse{
		DeviceID:      deviceID,
		MinISO:        lim.MinISO,
		MaxISO:        lim.MaxISO,
		MinExposureMs: lim.MinExposure.Milliseconds(),
		MaxExposureMs: lim.MaxExposure.Milliseconds(),
	})
}

func readHello(ws *websocket.Conn) (device.Hello, error) {
	ws.SetReadDeadline(time.Now().Add(helloWait))
	defer ws.SetReadDeadline(time.Time{})

	msgType, data, err := ws.ReadMessage()
	if err != nil {
		return device.Hello{}, err
	}
	if msgType != websocket.TextMessage {
		return device.Hello{}, errors.New("expected hello message before frames")
	}

	var hello device.Hello
	if err := json.Unmarshal(data, &hello); err != nil {
		return device.Hello{}, err
	}
	return hello, nil
}
