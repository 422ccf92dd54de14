package cli

import (
	"io"
	"log/slog"
	"net/url"
	"strings"
)

var sensitiveKeys = []string{"password", "token", "secret", "apikey", "credential", "authorization"}

// newLogger builds the process logger. verbose forces debug level.
func newLogger(w io.Writer, level, format string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: redactAttr}
	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// redactAttr hides values logged under credential-like keys and strips
// userinfo from URLs.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	if a.Value.Kind() == slog.KindString {
		if v := a.Value.String(); strings.Contains(v, "://") && strings.Contains(v, "@") {
			return slog.String(a.Key, redactURL(v))
		}
	}
	return a
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("REDACTED")
	return u.String()
}
