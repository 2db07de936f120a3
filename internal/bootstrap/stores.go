package bootstrap

import (
	"github.com/eleven-am/nightstack/internal/progress"
	"github.com/eleven-am/nightstack/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideCaptureStore(db *gorm.DB) *storage.Store {
	return storage.NewStore(db)
}

func ProvidePhotoSink(cfg *Config) (*storage.PhotoSink, error) {
	return storage.NewPhotoSink(cfg.PhotoDir)
}

func ProvideProgressStore(redisClient *redis.Client) *progress.Store {
	return progress.NewStore(redisClient)
}

func RunMigrations(captureStore *storage.Store) error {
	return captureStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideCaptureStore,
		ProvidePhotoSink,
		ProvideProgressStore,
	),
	fx.Invoke(RunMigrations),
)
