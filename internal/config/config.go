// Package config reads photobooth settings from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr        string
	StaticDir   string
	AssetsDir   string
	FramesPath  string
	AppName     string
	RenderWidth int

	UploadProvider string
	UploadDir      string
	PublicURL      string
	GCSBucket      string
	GCSCredentials string
	MediaCloud     string
	MediaPreset    string

	LedgerDir string

	Camera         string
	HotFolder      string
	SessionTTL     time.Duration
	ShutterTimeout time.Duration
}

// FromEnv reads PHOTOBOOTH_* variables, falling back to defaults.
func FromEnv() Config {
	return Config{
		Addr:        getenv("PHOTOBOOTH_ADDR", ":8888"),
		StaticDir:   getenv("PHOTOBOOTH_STATIC_DIR", "static"),
		AssetsDir:   getenv("PHOTOBOOTH_ASSETS_DIR", "static/assets"),
		FramesPath:  os.Getenv("PHOTOBOOTH_FRAMES"),
		AppName:     getenv("PHOTOBOOTH_APP_NAME", "inferno-photobox"),
		RenderWidth: getInt("PHOTOBOOTH_RENDER_WIDTH", 1020),

		UploadProvider: getenv("PHOTOBOOTH_UPLOAD_PROVIDER", "local"),
		UploadDir:      getenv("PHOTOBOOTH_UPLOAD_DIR", "static/uploads"),
		PublicURL:      getenv("PHOTOBOOTH_PUBLIC_URL", "http://localhost:8888"),
		GCSBucket:      os.Getenv("PHOTOBOOTH_GCS_BUCKET"),
		GCSCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		MediaCloud:     os.Getenv("PHOTOBOOTH_MEDIA_CLOUD"),
		MediaPreset:    os.Getenv("PHOTOBOOTH_MEDIA_PRESET"),

		LedgerDir: os.Getenv("PHOTOBOOTH_LEDGER_DIR"),

		Camera:         getenv("PHOTOBOOTH_CAMERA", "browser"),
		HotFolder:      os.Getenv("PHOTOBOOTH_HOT_FOLDER"),
		SessionTTL:     getDuration("PHOTOBOOTH_SESSION_TTL", 30*time.Minute),
		ShutterTimeout: getDuration("PHOTOBOOTH_SHUTTER_TIMEOUT", 10*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", v)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration setting", "key", key, "value", v)
		return fallback
	}
	return d
}
