package fdm

import (
	"io"
	"os"

	kitlog "github.com/go-kit/kit/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a logfmt logger writing to w, stdout if w is nil. It is safe for
// concurrent use.
func NewLogger(w io.Writer) kitlog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return kitlog.With(kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(w)), "ts", kitlog.DefaultTimestampUTC)
}

// NewFileLogger returns a logger writing to the file at path, rotated every 32 MB with a
// single compressed backup. Close the returned closer when done.
func NewFileLogger(path string) (kitlog.Logger, io.Closer) {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    32, // MB
		MaxBackups: 1,
		Compress:   true,
	}
	return NewLogger(w), w
}
