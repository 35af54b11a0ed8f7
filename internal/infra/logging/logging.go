package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig enables a rotating copy of the log stream. Path empty means
// stdout only.
type FileConfig struct {
	Path       string `env:"APP_LOG_FILE" envDefault:""`
	MaxSizeMB  int    `env:"APP_LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"APP_LOG_MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"APP_LOG_MAX_AGE_DAYS" envDefault:"14"`
}

// SetupJSON sets slog's default logger to use JSON output at the given
// level. When file.Path is set, records are also written to a rotating
// file; the returned closer releases it.
func SetupJSON(level slog.Level, file FileConfig) io.Closer {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)

	if file.Path != "" {
		rotating := &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    file.MaxSizeMB,
			MaxBackups: file.MaxBackups,
			MaxAge:     file.MaxAgeDays,
			Compress:   true,
		}
		out = io.MultiWriter(os.Stdout, rotating)
		closer = rotating
	}

	slog.SetDefault(New(out, level))

	return closer
}

// New builds a JSON logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
