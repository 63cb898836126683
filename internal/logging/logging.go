package logging

import (
	"io"
	log "log/slog"
	"time"

	"github.com/lmittmann/tint"
)

var levelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// Setup installs a tint handler writing to w as the default slog logger.
// Unknown level names fall back to info.
func Setup(w io.Writer, level string) {
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
	})))
}

func ParseLevel(level string) log.Level {
	if l, ok := levelMap[level]; ok {
		return l
	}
	return log.LevelInfo
}
