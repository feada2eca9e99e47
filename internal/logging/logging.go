// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level and outputs.
type Options struct {
	Level string
	// Verbose forces debug level.
	Verbose bool
	// File, when set, also writes JSON lines to a rotated log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console overrides the console writer, mainly for tests.
	Console io.Writer
}

// ParseLevel maps a level name to zerolog, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Setup replaces log.Logger and makes it the default context logger. The
// returned closer flushes the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = zerolog.DebugLevel
	}

	console := opts.Console
	if console == nil {
		if isatty.IsTerminal(os.Stderr.Fd()) {
			console = zerolog.NewConsoleWriter()
		} else {
			console = os.Stderr
		}
	}

	writers := []io.Writer{console}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, err
		}
		rotated := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10), // MB
			MaxBackups: orDefault(opts.MaxBackups, 2),
			MaxAge:     orDefault(opts.MaxAgeDays, 28), // days
			Compress:   true,
		}
		writers = append(writers, rotated)
		closer = rotated
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
