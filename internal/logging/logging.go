// Package logging builds the process zerolog logger from configuration.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger initialization.
type Config struct {
	Format     string // "console" or "json"
	Level      string // "trace", "debug", "info", "warn", "error"
	Component  string // optional component name
	FilePath   string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const defaultMaxSizeMB = 50

// New returns a logger writing to w and, when FilePath is set, to a rotating
// file as well. The returned closer releases the file and is never nil.
func New(cfg Config, w io.Writer) (zerolog.Logger, io.Closer) {
	if w == nil {
		w = os.Stderr
	}
	writer := selectWriter(cfg.Format, w)
	var closer io.Closer = nopCloser{}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err == nil {
			maxSize := cfg.MaxSizeMB
			if maxSize <= 0 {
				maxSize = defaultMaxSizeMB
			}
			file := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    maxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				LocalTime:  true,
			}
			// Files always get JSON so they stay machine readable.
			writer = zerolog.MultiLevelWriter(writer, file)
			closer = file
		}
	}

	ctx := zerolog.New(writer).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if c := strings.TrimSpace(cfg.Component); c != "" {
		ctx = ctx.Str("component", c)
	}
	return ctx.Logger(), closer
}

// Nop returns a disabled logger for callers that do not care.
func Nop() zerolog.Logger { return zerolog.Nop() }

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func selectWriter(format string, w io.Writer) io.Writer {
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return w
	}
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: !isTerminal(w)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
