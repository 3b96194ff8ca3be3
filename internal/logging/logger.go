package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"medibox-agent/internal/config"
)

// New returns the agent logger writing to stdout.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, cfg, version, appName)
}

// NewWithWriter builds a colored console logger for dev builds and a JSON
// logger otherwise. Every record carries the app and device identity.
func NewWithWriter(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	attrs := []any{"app", appName, "device_id", cfg.DeviceID}

	var h slog.Handler
	if version == "dev" {
		h = tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.LogLevel})
		attrs = append(attrs, "version", version, "env", cfg.AppEnv)
	}
	return slog.New(h).With(attrs...)
}
