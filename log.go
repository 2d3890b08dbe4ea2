package lambert

import (
	"io"
	"strings"

	kitlog "github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// NewLogger returns a logfmt logger writing to w, filtered at the provided level
// (debug, info, warn or error; info if unknown).
func NewLogger(w io.Writer, lvl string) kitlog.Logger {
	klog := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w))
	var opt level.Option
	switch strings.ToLower(lvl) {
	case "debug":
		opt = level.AllowDebug()
	case "warn", "warning":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "none":
		opt = level.AllowNone()
	default:
		opt = level.AllowInfo()
	}
	klog = level.NewFilter(klog, opt)
	return kitlog.With(klog, "ts", kitlog.DefaultTimestampUTC)
}
