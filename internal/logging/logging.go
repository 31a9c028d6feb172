package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "report-service.log"

// Logger writes leveled logs to stdout and to a rotating file.
type Logger struct {
	*logrus.Logger
	file *lumberjack.Logger
}

// New creates a Logger writing to dir/report-service.log. An empty dir logs to stdout only.
func New(dir, level string) (*Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := &Logger{Logger: logrus.New()}
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if dir == "" {
		l.SetOutput(os.Stdout)
		return l, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create logs folder failed: %w", err)
	}
	l.file = &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	l.SetOutput(io.MultiWriter(os.Stdout, l.file))
	return l, nil
}

// NewWriter creates a Logger that writes to w only.
func NewWriter(w io.Writer) *Logger {
	l := &Logger{Logger: logrus.New()}
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	return l
}

// Close flushes and closes the log file.
func (l *Logger) Close() {
	if l.file == nil {
		return
	}
	if err := l.file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close log file: %v\n", err)
	}
}
