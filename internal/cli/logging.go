package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// newLogger builds the process logger. Diagnostics go to errOut as text;
// with a log file configured they go there instead, JSON-formatted and
// rotated by lumberjack.
func newLogger(errOut io.Writer, level, logFile string) (*logrus.Logger, error) {
	if level == "" {
		level = "warning"
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	logger := logrus.New()
	logger.SetLevel(parsed)
	logger.SetOutput(errOut)

	if logFile != "" {
		logger.SetOutput(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			LocalTime:  true,
		})
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	return logger, nil
}
