package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process-wide logger from the Log section.
// Unknown levels fall back to info rather than failing startup.
func NewLogger(cfg Log) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	if cfg.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return l
}
