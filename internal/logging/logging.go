// Package logging builds the logr.Logger shared by every component.
package logging

import (
	"io"

	"github.com/bombsimon/logrusr/v3"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing text lines to w. Verbosity 0 logs info and
// errors; each step above enables one more V level.
func New(w io.Writer, verbosity int) logr.Logger {
	if verbosity < 0 {
		verbosity = 0
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:    true,
		FullTimestamp:    true,
		QuoteEmptyFields: true,
	})
	l.SetLevel(logrus.Level(int(logrus.InfoLevel) + verbosity))
	return logrusr.New(l)
}
