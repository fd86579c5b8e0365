package main

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger builds the process logger. Logs go to cfg.File when set. The
// TUI owns the terminal, so without a file interactive runs discard logs
// and print mode writes them to stderr. The returned close function
// releases the log file.
func newLogger(cfg LogConfig, interactive bool, stderr io.Writer) (*logrus.Logger, func() error, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})

	switch {
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		logger.SetFormatter(&logrus.TextFormatter{
			DisableColors: true,
			FullTimestamp: true,
		})
		return logger, f.Close, nil
	case interactive:
		logger.SetOutput(io.Discard)
	default:
		logger.SetOutput(stderr)
	}
	return logger, func() error { return nil }, nil
}
