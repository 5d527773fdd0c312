// Package logging builds the component loggers used across todosync.
//
// Every component logs through a stdlib *log.Logger with a bracketed prefix
// such as "[worker] ". They all share one output: stderr, a size-rotated
// file, or nothing when quiet.
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/BodaDayo/TODO-Mobile/internal/config"
)

// Factory hands out loggers that write to a shared output.
type Factory struct {
	out    io.Writer
	closer io.Closer

	mu      sync.Mutex
	loggers map[string]*log.Logger
}

// New builds a factory from log configuration.
func New(cfg config.LogConfig) (*Factory, error) {
	f := &Factory{loggers: make(map[string]*log.Logger)}

	switch {
	case cfg.Quiet:
		f.out = io.Discard
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		f.out = rotator
		f.closer = rotator
	default:
		f.out = os.Stderr
	}
	return f, nil
}

// Discard returns a factory whose loggers drop everything.
func Discard() *Factory {
	return &Factory{out: io.Discard, loggers: make(map[string]*log.Logger)}
}

// Logger returns the logger for component, prefixed "[component] ".
// Repeated calls return the same logger.
func (f *Factory) Logger(component string) *log.Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if l, ok := f.loggers[component]; ok {
		return l
	}
	l := log.New(f.out, "["+component+"] ", log.LstdFlags)
	f.loggers[component] = l
	return l
}

// Writer returns the shared output.
func (f *Factory) Writer() io.Writer {
	return f.out
}

// Close closes the log file, if any.
func (f *Factory) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
