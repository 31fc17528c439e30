package engine

import (
	"io"

	"github.com/goliatone/go-logger/glog"
)

// NewLogger creates a structured JSON logger, which writes entries of the given level and above to w.
func NewLogger(w io.Writer, level string) glog.Logger {
	return glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	)
}
