package bootstrap

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr string
	Version    string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PhotoDir string

	// DownscaleShortSide bounds incoming frames before analysis and
	// stacking.
	DownscaleShortSide int
	EncodeQuality      int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		Version:    getEnv("VERSION", "dev"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		PhotoDir: getEnv("PHOTO_DIR", "./photos"),

		DownscaleShortSide: getEnvInt("DOWNSCALE_SHORT_SIDE", 1080),
		EncodeQuality:      getEnvInt("ENCODE_QUALITY", 92),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
