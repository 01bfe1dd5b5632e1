package logger

import (
	"fmt"
	"log"
	"os"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Logger is a named, leveled console logger.
type Logger struct {
	name string
	out  *log.Logger
}

// New creates a logger whose lines are prefixed with the given component name.
func New(name string) *Logger {
	return &Logger{
		name: name,
		out:  log.New(os.Stdout, "", log.LstdFlags),
	}
}

func (l *Logger) print(color, level, format string, args ...interface{}) {
	l.out.Printf("%s[%s]%s [%s] %s", color, level, colorReset, l.name, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.print(colorCyan, "INFO", format, args...)
}

func (l *Logger) Success(format string, args ...interface{}) {
	l.print(colorGreen, "OK", format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.print(colorYellow, "WARN", format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.print(colorGray, "DEBUG", format, args...)
}

// Error logs the message with its cause and returns an error wrapping both,
// so handlers can `return log.Error("...", err)`.
func (l *Logger) Error(msg string, err error) error {
	if err == nil {
		l.print(colorRed, "ERROR", "%s", msg)
		return fmt.Errorf("%s", msg)
	}
	l.print(colorRed, "ERROR", "%s: %v", msg, err)
	return fmt.Errorf("%s: %w", msg, err)
}
