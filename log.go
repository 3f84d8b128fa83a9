package osal

import "log"

// Logger is the debug-log sink error handling design (SPEC_FULL.md §2)
// calls for: internal, non-recoverable host failures are logged at
// debug level and never surface except as a Result. Swappable the same
// way the teacher keeps its own logging behind the stdlib log package
// rather than a framework (fuse/misc.go, fuse/fsconnector.go).
type Logger interface {
	Debugf(format string, args ...any)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) Debugf(format string, args ...any) { l.Printf(format, args...) }

// DefaultLogger wraps the standard library's default logger.
var DefaultLogger Logger = stdLogger{log.Default()}
