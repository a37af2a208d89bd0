// Package logging provides the leveled logger driven by the --log flag. The teacher writes directly
// to io.Writer fields via fmt.Fprintln gated by a verbose bool (trustydns-proxy/main.go,
// trustydns-server/server.go's logClientIn/Out gates); no third-party logging library appears
// anywhere in the retrieved pack, so this wraps the same ambient pattern around stdlib log.Logger
// rather than introducing one, per SPEC_FULL.md's ambient-stack note.
package logging

import (
	"fmt"
	"io"
	"log"
)

// Level is one of the four severities --log accepts.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// ParseLevel maps a --log flag value to a Level, defaulting to Info on an unrecognized string.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Logger gates *log.Logger output at a minimum severity, the way the teacher's verbose bool gates
// fmt.Fprintln calls, generalized from a single on/off switch to four severities.
type Logger struct {
	min Level
	log *log.Logger
}

// New constructs a Logger writing to w at the given minimum level. Timestamps are omitted; the
// teacher's own output carries no per-line timestamp either.
func New(w io.Writer, min Level) *Logger {
	return &Logger{min: min, log: log.New(w, "", 0)}
}

func (l *Logger) log2(level Level, format string, args ...interface{}) {
	if level < l.min {
		return
	}
	l.log.Print(level.String() + ": " + fmt.Sprintf(format, args...))
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log2(Debug, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log2(Info, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log2(Warn, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log2(Error, format, args...) }
