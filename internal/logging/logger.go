package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely libkit logs.
type Options struct {
	Level      string
	FilePath   string
	MaxSize    int
	MaxBackups int
	Compress   bool
	// Stderr sends console output to stderr instead of stdout.
	Stderr bool
}

// InitLogger builds a JSON logger. Without a file path it writes to the
// console, stdout unless Stderr is set; a file that cannot be prepared falls
// back to the console with a warning.
func InitLogger(opts Options) (*logrus.Logger, error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	output, outErr := buildOutput(opts)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   opts.FilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

func buildOutput(opts Options) (io.Writer, error) {
	var console io.Writer = os.Stdout
	if opts.Stderr {
		console = os.Stderr
	}
	if opts.FilePath == "" {
		return console, nil
	}

	dir := filepath.Dir(opts.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return console, fmt.Errorf("create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSize,
		MaxBackups: opts.MaxBackups,
		Compress:   opts.Compress,
		LocalTime:  true,
	}, nil
}
