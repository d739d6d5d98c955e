package botlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	lock    sync.Mutex
	root    = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).With().Timestamp().Logger()
	started = time.Now()
)

// Setup configures the root logger. Lines go to stderr and, if logDir is
// non-empty, to a timestamped file under logDir. Every line carries the
// seconds since start-up.
func Setup(level string, logDir string) (io.Closer, error) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"},
	}
	var file *os.File
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}
		name := filepath.Join(logDir, started.Format("2006-01-02_15-04-05")+".txt")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true})
	}

	lock.Lock()
	root = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger().
		Hook(zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
			e.Str("up", fmt.Sprintf("%09.3f", time.Since(started).Seconds()))
		}))
	lock.Unlock()

	l := For("botlog")
	l.Debug().Str("level", zerolog.GlobalLevel().String()).Msg("Logging set up")
	if file == nil {
		return io.NopCloser(nil), nil
	}
	return file, nil
}

// ParseLevel maps a config string onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// For returns a logger tagged with the given component name.
func For(component string) zerolog.Logger {
	lock.Lock()
	defer lock.Unlock()
	return root.With().Str("component", component).Logger()
}

// SetOutput replaces the root logger's writer; used by tests to capture lines.
func SetOutput(w io.Writer) {
	lock.Lock()
	defer lock.Unlock()
	root = zerolog.New(w).With().Timestamp().Logger()
}
