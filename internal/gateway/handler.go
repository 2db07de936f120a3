package gateway

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/device"
	"github.com/eleven-am/nightstack/internal/dto"
	"github.com/eleven-am/nightstack/internal/progress"
	"github.com/eleven-am/nightstack/internal/shared"
	"github.com/eleven-am/nightstack/internal/storage"
	"github.com/labstack/echo/v4"
)

// Handler exposes the capture control surface.
type Handler struct {
	manager  *capture.Manager
	store    *storage.Store
	sink     *storage.PhotoSink
	progress *progress.Store
	registry *device.Registry
	logger   *slog.Logger
}

func NewHandler(manager *capture.Manager, store *storage.Store, sink *storage.PhotoSink, progressStore *progress.Store, registry *device.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		manager:  manager,
		store:    store,
		sink:     sink,
		progress: progressStore,
		registry: registry,
		logger:   logger.With("component", "capture_handler"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Start)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/finish", h.Finish)
	g.POST("/:id/cancel", h.Cancel)
	g.GET("/:id/image", h.Image)
}

func (h *Handler) Start(c echo.Context) error {
	var req dto.StartCaptureRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_body", "invalid request body")
	}
	if req.DeviceID == "" {
		return shared.BadRequest("missing_device", "device_id is required")
	}
	if req.TargetDurationMs <= 0 {
		return shared.BadRequest("invalid_duration", "target_duration_ms must be positive")
	}

	link, err := h.registry.Get(req.DeviceID)
	if err != nil {
		return shared.BadRequest("device_offline", "device is not connected")
	}

	session, err := h.manager.Start(c.Request().Context(), capture.StartRequest{
		DeviceID: req.DeviceID,
		Settings: capture.ExposureSettings{
			ISO:             req.Settings.ISO,
			Duration:        time.Duration(req.Settings.DurationMs) * time.Millisecond,
			NoiseReduction:  req.Settings.NoiseReduction,
			Aperture:        req.Settings.Aperture,
			ExposureBias:    req.Settings.ExposureBias,
			AutoISO:         req.Settings.AutoISO,
			ColorSaturation: req.Settings.ColorSaturation,
		},
		Limits:         link.Limits(),
		TargetDuration: time.Duration(req.TargetDurationMs) * time.Millisecond,
		MaxFrames:      req.MaxFrames,
		Align:          req.Align,
	})
	if err != nil {
		var cfgErr *capture.ConfigError
		switch {
		case errors.Is(err, shared.ErrBusy):
			return shared.Conflict("capture_busy", "a capture is already running on this device")
		case errors.As(err, &cfgErr):
			return shared.BadRequest("invalid_settings", cfgErr.Error())
		default:
			h.logger.Error("capture start failed", "device_id", req.DeviceID, "error", err)
			return shared.InternalError("start_failed", "failed to start capture")
		}
	}

	if err := link.SendJSON(dto.CaptureControlMessage{
		Type:             "capture_started",
		CaptureID:        session.ID(),
		TargetDurationMs: req.TargetDurationMs,
		MaxFrames:        req.MaxFrames,
	}); err != nil {
		h.logger.Warn("failed to notify device", "device_id", req.DeviceID, "error", err)
	}

	return c.JSON(http.StatusAccepted, dto.StartCaptureResponse{
		CaptureID: session.ID(),
		DeviceID:  req.DeviceID,
		Status:    string(storage.StatusRunning),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id := c.Param("id")

	rec, err := h.store.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("capture_not_found", "capture not found")
		}
		return shared.InternalError("get_failed", "failed to load capture")
	}

	resp := recordToResponse(rec)
	if rec.Status == storage.StatusRunning && h.progress != nil {
		if snap, err := h.progress.Get(c.Request().Context(), id); err == nil {
			resp.Progress = &dto.ProgressResponse{
				State:         snap.State,
				Frames:        snap.Frames,
				TotalWeight:   snap.TotalWeight,
				ElapsedMs:     snap.ElapsedMs,
				MeanLuminance: snap.MeanLuminance,
			}
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// List returns a device's capture history, newest first.
func (h *Handler) List(c echo.Context) error {
	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return shared.BadRequest("missing_device", "device_id query parameter is required")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	recs, err := h.store.ListByDevice(c.Request().Context(), deviceID, limit)
	if err != nil {
		return shared.InternalError("list_failed", "failed to list captures")
	}

	resp := make([]dto.CaptureResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, recordToResponse(rec))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Finish(c echo.Context) error {
	if err := h.manager.Finish(c.Param("id")); err != nil {
		return h.activeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) Cancel(c echo.Context) error {
	if err := h.manager.Cancel(c.Param("id")); err != nil {
		return h.activeError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) activeError(c echo.Context, err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		// Distinguish "never existed" from "already terminal".
		if _, getErr := h.store.GetByID(c.Request().Context(), c.Param("id")); getErr == nil {
			return shared.Conflict("capture_terminal", "capture already reached a terminal state")
		}
		return shared.NotFound("capture_not_found", "capture not found")
	}
	return shared.InternalError("capture_control_failed", "failed to control capture")
}

func (h *Handler) Image(c echo.Context) error {
	id := c.Param("id")

	rec, err := h.store.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("capture_not_found", "capture not found")
		}
		return shared.InternalError("get_failed", "failed to load capture")
	}

	if rec.Status != storage.StatusSucceeded || rec.OutputPath == "" {
		return shared.Conflict("capture_not_ready", "capture has no finished image")
	}

	data, err := h.sink.Open(rec.OutputPath)
	if err != nil {
		h.logger.Error("failed to open photo", "capture_id", id, "error", err)
		return shared.InternalError("image_unavailable", "failed to read image")
	}

	return c.Blob(http.StatusOK, "image/jpeg", data)
}

func recordToResponse(rec *storage.CaptureRecord) dto.CaptureResponse {
	return dto.CaptureResponse{
		CaptureID:     rec.ID,
		DeviceID:      rec.DeviceID,
		Status:        string(rec.Status),
		FrameCount:    rec.FrameCount,
		TotalWeight:   rec.TotalWeight,
		MeanLuminance: rec.MeanLuminance,
		ToneBand:      rec.ToneBand,
		ElapsedMs:     rec.ElapsedMs,
		Error:         rec.Error,
		CreatedAt:     rec.CreatedAt,
		FinishedAt:    rec.FinishedAt,
	}
}
