// Package logging provides the leveled, tag-scoped logger used throughout
// this module. Every package derives its own logger:
//
//	var log = logging.DefaultLogger.WithTag("vdma")
//
// Verbosity is controlled per tag with the LOGLEVEL environment variable,
// e.g. LOGLEVEL=warn,vdma=debug,vidf=9.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// Messages above this level are discarded.
	Level

	// Tag identifying the subsystem, used for LOGLEVEL filtering.
	Tag string

	out io.Writer

	// Shared by all derived loggers so lines from different goroutines
	// never interleave.
	mu *sync.Mutex
}

// DefaultLogger writes to stderr. Packages derive from it via WithTag.
var DefaultLogger = &Logger{defaultLevel, "", os.Stderr, new(sync.Mutex)}

// SetOutput redirects this logger. Derived loggers keep the writer they
// were created with, so redirect before deriving.
func (log *Logger) SetOutput(out io.Writer) {
	log.out = out
}

// WithTag derives a logger for the given subsystem tag. The level is looked
// up from the LOGLEVEL directives, falling back to the parent's level.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{levelForTag(tag, log.Level), tag, log.out, log.mu}
}

// WithDefaultLevel derives a logger whose level is 'level' unless LOGLEVEL
// overrides it for this tag.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{levelForTag(log.Tag, level), log.Tag, log.out, log.mu}
}

// line is a []byte that implements io.Writer, cheaper than bytes.Buffer for
// assembling a single log line.
type line []byte

func (b *line) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

func (b *line) writeByte(c byte) {
	*b = append(*b, c)
}

// Shared across all loggers. 256 bytes covers most lines without growing.
var linePool = sync.Pool{
	New: func() interface{} {
		return make(line, 0, 256)
	},
}

// Log formats a message at the given level, annotated with the file and line
// 'calldepth' frames up the stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		return
	}

	buf := linePool.Get().(line)
	defer linePool.Put(buf[:0])

	buf.Write(ansiDim)
	buf = time.Now().AppendFormat(buf, timestampFormat)

	fmt.Fprintf(&buf, " %s%c/%s", level.color(), level.letter(), log.Tag)

	_, file, lineno, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}
	fmt.Fprintf(&buf, "[%s:%d] %s", filepath.Base(file), lineno, ansiReset)

	fmt.Fprintf(&buf, format, a...)

	if n := len(format); n == 0 || format[n-1] != '\n' {
		buf.writeByte('\n')
	}

	log.mu.Lock()
	log.out.Write(buf)
	log.mu.Unlock()
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

// Trace logs at a numeric verbosity level between Debug+1 and MaxLevel.
func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}

// Fatalf logs at Error level and exits. Intended for cmd main functions only.
func (log *Logger) Fatalf(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
	os.Exit(1)
}
