// Leveled logging shared by the skirtrun packages.
//
// A Logger can be injected where testability matters; the package-level
// functions print on a process-wide default logger that writes to stderr.

package status

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

var levelTags = map[Level]string{
	LevelDebug:   "debug",
	LevelInfo:    "info",
	LevelWarning: "warning",
	LevelError:   "error",
}

// Loggers are safe for concurrent use.

type Logger struct {
	mu    sync.Mutex
	level Level
	out   io.Writer
}

func NewLogger(out io.Writer, level Level) *Logger {
	return &Logger{level: level, out: out}
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) SetOutput(out io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
}

func (l *Logger) logf(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || l.out == nil {
		return
	}
	fmt.Fprintf(l.out, "%s: %s\n", levelTags[level], fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Warningf(format string, args ...any) {
	l.logf(LevelWarning, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

// MT: Constant after initialization, thread-safe.
var defaultLogger = NewLogger(os.Stderr, LevelInfo)

func Default() *Logger {
	return defaultLogger
}

func SetLevel(level Level) {
	defaultLogger.SetLevel(level)
}

func Debugf(format string, args ...any) {
	defaultLogger.Debugf(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Infof(format, args...)
}

func Warningf(format string, args ...any) {
	defaultLogger.Warningf(format, args...)
}

func Errorf(format string, args ...any) {
	defaultLogger.Errorf(format, args...)
}
