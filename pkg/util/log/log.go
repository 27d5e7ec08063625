// Package log provides the leveled logger used across r2i. It mirrors the
// glog/klog verbosity model so packages can write log.V(3).Infof(...) and the
// CLI can control output with --loglevel.
package log

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// Logger is a simple interface that is roughly equivalent to klog.
type Logger interface {
	Is(level int32) bool
	V(level int32) VerboseLogger
	Infof(format string, args ...interface{})
	Info(args ...interface{})
	Warningf(format string, args ...interface{})
	Warning(args ...interface{})
	Errorf(format string, args ...interface{})
	Error(args ...interface{})
	Fatalf(format string, args ...interface{})
	Fatal(args ...interface{})
}

// VerboseLogger is roughly equivalent to klog's Verbose.
type VerboseLogger interface {
	Infof(format string, args ...interface{})
	Info(args ...interface{})
}

// StderrLog is the default logger, writing through klog to stderr.
var StderrLog Logger = &klogger{}

// None implements the Logger interface but does nothing with the log output.
var None Logger = discard{}

type klogger struct{}

// Is returns true if the current verbosity is at or above level.
func (klogger) Is(level int32) bool {
	return bool(klog.V(klog.Level(level)).Enabled())
}

// V returns a VerboseLogger that writes only when the verbosity is at or
// above level.
func (klogger) V(level int32) VerboseLogger {
	return klog.V(klog.Level(level))
}

func (klogger) Infof(format string, args ...interface{}) {
	klog.InfoDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Info(args ...interface{}) {
	klog.InfoDepth(1, args...)
}

func (klogger) Warningf(format string, args ...interface{}) {
	klog.WarningDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Warning(args ...interface{}) {
	klog.WarningDepth(1, args...)
}

func (klogger) Errorf(format string, args ...interface{}) {
	klog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Error(args ...interface{}) {
	klog.ErrorDepth(1, args...)
}

func (klogger) Fatalf(format string, args ...interface{}) {
	klog.FatalDepth(1, fmt.Sprintf(format, args...))
}

func (klogger) Fatal(args ...interface{}) {
	klog.FatalDepth(1, args...)
}

type discard struct{}

func (discard) Is(level int32) bool                         { return false }
func (discard) V(level int32) VerboseLogger                 { return discard{} }
func (discard) Infof(format string, args ...interface{})    {}
func (discard) Info(args ...interface{})                    {}
func (discard) Warningf(format string, args ...interface{}) {}
func (discard) Warning(args ...interface{})                 {}
func (discard) Errorf(format string, args ...interface{})   {}
func (discard) Error(args ...interface{})                   {}
func (discard) Fatalf(format string, args ...interface{})   {}
func (discard) Fatal(args ...interface{})                   {}

// NewWriter returns an io.Writer that emits every complete line written to it
// through logFn. It is used to forward build and container output into the
// logger.
func NewWriter(logFn func(args ...interface{})) io.Writer {
	return &lineWriter{logFn: logFn}
}

type lineWriter struct {
	mu    sync.Mutex
	buf   strings.Builder
	logFn func(args ...interface{})
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			w.logFn(w.buf.String())
			w.buf.Reset()
			continue
		}
		w.buf.WriteByte(b)
	}
	return len(p), nil
}
