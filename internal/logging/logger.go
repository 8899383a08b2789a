package logging

import (
	"fmt"
	"io"
	"os"
	"reflect"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Logger defines a minimal, printf-style logging contract.
//
// Components depend on this interface instead of a concrete logger so sinks
// can be swapped (console, test capture, fan-out) without touching call sites.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// IsNil reports whether logger is nil or wraps a nil pointer receiver.
func IsNil(logger Logger) bool {
	if logger == nil {
		return true
	}
	val := reflect.ValueOf(logger)
	switch val.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if IsNil(logger) {
		return Nop()
	}
	return logger
}

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errorColor = color.New(color.FgRed)
)

type consoleLogger struct {
	mu        sync.Mutex
	component string
	out       io.Writer
	debug     bool
}

// NewComponentLogger returns a console logger scoped to a component.
// Debug output is enabled via the DEEPGRAPH_DEBUG environment variable.
func NewComponentLogger(component string) Logger {
	return &consoleLogger{
		component: component,
		out:       os.Stderr,
		debug:     os.Getenv("DEEPGRAPH_DEBUG") != "",
	}
}

// NewComponentLoggerTo returns a component logger writing to the given writer,
// mainly for tests.
func NewComponentLoggerTo(component string, out io.Writer) Logger {
	return &consoleLogger{component: component, out: out, debug: true}
}

func (l *consoleLogger) log(c *color.Color, level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(l.out, "%s %s [%s] %s\n", ts, c.Sprint(level), l.component, msg)
}

func (l *consoleLogger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.log(debugColor, "DEBUG", format, args...)
}

func (l *consoleLogger) Info(format string, args ...any) {
	l.log(infoColor, "INFO", format, args...)
}

func (l *consoleLogger) Warn(format string, args ...any) {
	l.log(warnColor, "WARN", format, args...)
}

func (l *consoleLogger) Error(format string, args ...any) {
	l.log(errorColor, "ERROR", format, args...)
}

type multiLogger struct {
	loggers []Logger
}

// Multi returns a logger fan-out that calls every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	flattened := make([]Logger, 0, len(loggers))
	for _, logger := range loggers {
		if IsNil(logger) {
			continue
		}
		if ml, ok := logger.(*multiLogger); ok {
			flattened = append(flattened, ml.loggers...)
			continue
		}
		flattened = append(flattened, logger)
	}
	if len(flattened) == 0 {
		return Nop()
	}
	if len(flattened) == 1 {
		return flattened[0]
	}
	return &multiLogger{loggers: flattened}
}

func (l *multiLogger) Debug(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Debug(format, args...)
	}
}

func (l *multiLogger) Info(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Info(format, args...)
	}
}

func (l *multiLogger) Warn(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Warn(format, args...)
	}
}

func (l *multiLogger) Error(format string, args ...any) {
	for _, logger := range l.loggers {
		logger.Error(format, args...)
	}
}
