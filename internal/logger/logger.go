// Package logger configures the logrus logger used by a dicom2xml run.
package logger

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to out at the given level and format
// ("text" or "json").
func New(out io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: true,
			DisableColors:    true,
		})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}

	if level == "" {
		level = "info"
	}
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(logLevel)

	return log, nil
}

// WithRun tags every entry of a run with a fresh run ID and the input file.
func WithRun(log logrus.FieldLogger, input string) *logrus.Entry {
	return log.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"input":  input,
	})
}

// Discard returns a logger that drops everything; tests use it.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
