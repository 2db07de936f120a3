package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/device"
	"github.com/eleven-am/nightstack/internal/gateway"
	"github.com/eleven-am/nightstack/internal/health"
	"github.com/eleven-am/nightstack/internal/progress"
	"github.com/eleven-am/nightstack/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideCaptureHandler(
	manager *capture.Manager,
	store *storage.Store,
	sink *storage.PhotoSink,
	progressStore *progress.Store,
	registry *device.Registry,
	log *slog.Logger,
) *gateway.Handler {
	return gateway.NewHandler(manager, store, sink, progressStore, registry, log)
}

func ProvideDeviceHandler(
	registry *device.Registry,
	manager *capture.Manager,
	cfg *Config,
	log *slog.Logger,
) *gateway.DeviceHandler {
	return gateway.NewDeviceHandler(registry, manager, cfg.DownscaleShortSide, log)
}

func ProvideHealthHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	registry *device.Registry,
	manager *capture.Manager,
	cfg *Config,
) *health.Handler {
	return health.NewHandler(db, redisClient, registry, manager, cfg.Version)
}

type HandlerParams struct {
	fx.In

	CaptureHandler *gateway.Handler
	DeviceHandler  *gateway.DeviceHandler
	HealthHandler  *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")

	params.CaptureHandler.RegisterRoutes(api.Group("/captures"))
	params.DeviceHandler.RegisterRoutes(api.Group("/devices"))
	params.HealthHandler.RegisterRoutes(e)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideCaptureHandler,
		ProvideDeviceHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
