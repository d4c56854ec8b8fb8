package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logrus logger configured for console use. Probe outcomes are
// data, not log events; the logger carries operational messages only.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(logrus.InfoLevel)
	return log
}
