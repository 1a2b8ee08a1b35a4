// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Setup sets the level and destination of the standard logger.
// Unknown levels fall back to info; a nil writer means stderr.
func Setup(level string, w io.Writer) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	if w == nil {
		w = os.Stderr
	}

	logrus.SetLevel(lvl)
	logrus.SetOutput(w)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		DisableColors:   w != os.Stderr,
		TimestampFormat: "15:04:05.000",
	})
}

// WithModule returns a logger entry tagged with the module name.
func WithModule(module string) *logrus.Entry {
	return logrus.WithField("module", module)
}

// Discard returns an entry that drops everything, for tests and library callers that pass no logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
