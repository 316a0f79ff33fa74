package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	charm "github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps a config string onto a Level. Unknown values are INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn, "WARNING":
		return LevelWarn
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// Options configures the global logger.
type Options struct {
	Level Level
	// File, when set, receives a rotated copy of every line in addition to
	// stderr.
	File string
}

var (
	mu     sync.Mutex
	logger *charm.Logger
	closer io.Closer
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() *charm.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = newLogger(os.Stderr, LevelInfo)
	}
	return logger
}

func newLogger(w io.Writer, level Level) *charm.Logger {
	return charm.NewWithOptions(w, charm.Options{
		ReportTimestamp: true,
		Prefix:          "trackmyevents",
		Level:           charmLevel(level),
	})
}

func charmLevel(l Level) charm.Level {
	switch l {
	case LevelDebug:
		return charm.DebugLevel
	case LevelWarn:
		return charm.WarnLevel
	case LevelError:
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

// Init replaces the global logger. It is safe to call more than once; a
// previously opened log file is closed.
func Init(opts Options) error {
	var w io.Writer = os.Stderr
	var fileWriter *lumberjack.Logger
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return err
		}
		fileWriter = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, fileWriter)
	}

	mu.Lock()
	defer mu.Unlock()
	if closer != nil {
		_ = closer.Close()
		closer = nil
	}
	logger = newLogger(w, opts.Level)
	if fileWriter != nil {
		closer = fileWriter
	}
	return nil
}

// SetOutput redirects the global logger, keeping its level.
func SetOutput(w io.Writer) {
	initLogger().SetOutput(w)
}

func SetLevel(l Level) {
	initLogger().SetLevel(charmLevel(l))
}

// Close flushes and releases the log file opened by Init, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func Debug(msg string, kv ...any) {
	initLogger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	initLogger().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	initLogger().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	initLogger().Error(msg, extended...)
}
