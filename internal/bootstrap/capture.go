package bootstrap

import (
	"context"
	"log/slog"

	"github.com/eleven-am/nightstack/internal/capture"
	"github.com/eleven-am/nightstack/internal/device"
	"github.com/eleven-am/nightstack/internal/encode"
	"github.com/eleven-am/nightstack/internal/progress"
	"github.com/eleven-am/nightstack/internal/storage"
	"go.uber.org/fx"
)

func ProvideDeviceRegistry(lc fx.Lifecycle, log *slog.Logger) *device.Registry {
	registry := device.NewRegistry(log)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return registry.Close()
		},
	})
	return registry
}

func ProvideCaptureManager(
	lc fx.Lifecycle,
	cfg *Config,
	store *storage.Store,
	sink *storage.PhotoSink,
	progressStore *progress.Store,
	log *slog.Logger,
) *capture.Manager {
	manager := capture.NewManager(capture.ManagerConfig{
		Recorder: store,
		Progress: progressStore,
		Photos:   sink,
		Encoder:  encode.NewJPEG(cfg.EncodeQuality),
		Logger:   log,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close()
		},
	})

	return manager
}

var CaptureModule = fx.Options(
	fx.Provide(
		ProvideDeviceRegistry,
		ProvideCaptureManager,
	),
)
