package hooks

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// contextHook adds a "file:line" field pointing at the log callsite, so
// per-partition output lines can be traced back to the component that
// emitted them.
type contextHook struct {
}

func NewContextHook() contextHook {
	return contextHook{}
}

func (hook contextHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (hook contextHook) Fire(entry *logrus.Entry) error {
	// Skip past logrus and this hook's own frames to the first caller
	// outside the logging machinery.
	pcs := make([]uintptr, 16)
	n := runtime.Callers(4, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "sirupsen/logrus") &&
			!strings.Contains(frame.File, "context_hook.go") {
			short := frame.File
			if idx := strings.LastIndex(short, "gaussian-splatting-lightning/"); idx >= 0 {
				short = short[idx+len("gaussian-splatting-lightning/"):]
			}
			entry.Data["file:line"] = fmt.Sprintf("%s:%d", short, frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}
