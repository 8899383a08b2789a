package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentLoggerOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewComponentLoggerTo("worker", &buf)

	logger.Info("task %s done", "gather")
	logger.Warn("slow store: %dms", 250)

	out := buf.String()
	assert.Contains(t, out, "[worker]")
	assert.Contains(t, out, "task gather done")
	assert.Contains(t, out, "slow store: 250ms")
}

func TestOrNopHandlesNilInterface(t *testing.T) {
	assert.NotPanics(t, func() {
		OrNop(nil).Info("ignored")
	})

	var typedNil *consoleLogger
	assert.True(t, IsNil(Logger(typedNil)))
	assert.NotPanics(t, func() {
		OrNop(Logger(typedNil)).Error("also ignored")
	})
}

func TestMultiFansOut(t *testing.T) {
	var a, b bytes.Buffer
	logger := Multi(NewComponentLoggerTo("x", &a), nil, NewComponentLoggerTo("x", &b))

	logger.Info("hello")
	assert.Contains(t, a.String(), "hello")
	assert.Contains(t, b.String(), "hello")
}

func TestMultiFlattensNested(t *testing.T) {
	var buf bytes.Buffer
	inner := Multi(NewComponentLoggerTo("x", &buf), Nop())
	outer := Multi(inner, Nop())

	outer.Info("once")
	assert.Equal(t, 1, strings.Count(buf.String(), "once"))
}
