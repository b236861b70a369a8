package observability

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog Logger at the given level (info when empty or
// unknown). APP_ENV=dev (or development) uses a human-friendly console writer.
func NewLogger(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "dev" || env == "development" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return l.Level(lvl)
}
