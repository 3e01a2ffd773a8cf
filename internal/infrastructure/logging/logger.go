package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/eco-green-group4/evmarket-web/internal/infrastructure/config"
)

// ServiceName is the "service" field on every entry.
const ServiceName = "evmarket-web"

// redacted replaces the value of any attribute named in secretKeys.
const redacted = "[redacted]"

// secretKeys are attribute names whose values never reach the output.
var secretKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"refreshtoken":  true,
	"password":      true,
	"authorization": true,
}

// Logger is the application logger. It is safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New returns a Logger writing to cfg.Output (stdout unless "stderr").
func New(cfg config.LoggingConfig, version string) *Logger {
	w := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		w = os.Stderr
	}
	return NewWithWriter(w, cfg, version)
}

// NewWithWriter returns a Logger writing to w. cfg.Output is ignored.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLevel(cfg.Level),
		ReplaceAttr: redact,
	}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{Logger: slog.New(h).With("service", ServiceName, "version", version)}
}

// redact blanks credential attributes, matched by key case-insensitively.
func redact(_ []string, a slog.Attr) slog.Attr {
	if secretKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, redacted)
	}
	return a
}

// parseLevel maps a config level to slog. Unknown values are info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger carrying args on every entry.
//
//	log.With("component", "gate").Debug("redirect", "to", "/login")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the logger used until the configuration is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Discard drops every entry.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}
