// Package logging builds the root zerolog logger from configuration.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/mpcompat/internal/config"
)

// Logger is the root logger plus the log file it may own.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New builds a logger writing to out, and additionally to cfg.File when set.
// Console format is only applied to out; the file always receives JSON.
func New(cfg config.Log, out io.Writer) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var console io.Writer = out
	if cfg.Format == config.FormatConsole {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}

	writer := console
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writer = zerolog.MultiLevelWriter(console, file)
	}

	return &Logger{
		Logger: zerolog.New(writer).Level(level).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Verbose lowers the level to debug.
func (l *Logger) Verbose() {
	l.Logger = l.Logger.Level(zerolog.DebugLevel)
}
