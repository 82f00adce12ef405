// Package lunarislog wraps the standard library logger with the leveled,
// prefix-scoped helpers tinySQL's cmd/server and cmd/repl binaries reach
// for (log.Printf/log.Fatalf) rather than a structured logging dependency.
package lunarislog

import (
	"fmt"
	"log"
	"os"
)

// Logger is a thin, leveled wrapper around *log.Logger.
type Logger struct {
	std    *log.Logger
	prefix string
}

// New creates a Logger writing to stderr with the given scope prefix
// (e.g. a connection's session id) prepended to every line.
func New(prefix string) *Logger {
	return &Logger{
		std:    log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds),
		prefix: prefix,
	}
}

// With returns a derived Logger scoped under an additional prefix segment.
func (l *Logger) With(scope string) *Logger {
	p := scope
	if l.prefix != "" {
		p = l.prefix + " " + scope
	}
	return &Logger{std: l.std, prefix: p}
}

func (l *Logger) line(level, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	if l.prefix == "" {
		return fmt.Sprintf("[%s] %s", level, msg)
	}
	return fmt.Sprintf("[%s] %s %s", level, l.prefix, msg)
}

func (l *Logger) Infof(format string, args ...any)  { l.std.Print(l.line("INFO", format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.std.Print(l.line("WARN", format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.std.Print(l.line("ERROR", format, args...)) }
func (l *Logger) Fatalf(format string, args ...any) { l.std.Fatal(l.line("FATAL", format, args...)) }
