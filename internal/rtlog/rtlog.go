// Package rtlog provides structured, leveled diagnostics for the runtime,
// colorized on a terminal the same way cmd/ailang/main.go builds its
// green/red/yellow/cyan/bold SprintFuncs from github.com/fatih/color,
// falling back to plain text when color.NoColor is set (non-TTY output).
package rtlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelLabel = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

var (
	debugColor = color.New(color.FgHiBlack).SprintFunc()
	infoColor  = color.New(color.FgCyan).SprintFunc()
	warnColor  = color.New(color.FgYellow).SprintFunc()
	errorColor = color.New(color.FgRed, color.Bold).SprintFunc()
)

func colorFor(level Level) func(a ...interface{}) string {
	switch level {
	case LevelDebug:
		return debugColor
	case LevelWarn:
		return warnColor
	case LevelError:
		return errorColor
	default:
		return infoColor
	}
}

// Logger writes level-prefixed lines to an output stream.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	min    Level
	now    func() time.Time
}

// New constructs a Logger writing to w at or above min severity.
func New(w io.Writer, min Level) *Logger {
	return &Logger{out: w, min: min, now: time.Now}
}

// Default writes to stderr at LevelInfo, the runtime's standard logger.
func Default() *Logger { return New(os.Stderr, LevelInfo) }

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	label := colorFor(level)(levelLabel[level])
	fmt.Fprintf(l.out, "%s [%s] %s\n", l.now().Format(time.RFC3339), label, msg)
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args...) }
