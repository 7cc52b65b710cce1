package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	log    *logrus.Logger
	logDir string
	files  map[logrus.Level]*os.File
	mu     sync.Mutex
}

// NewLogger creates a Logger writing to logDir and ensures the directory exists.
func NewLogger(logDir, level string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	l := &Logger{
		log:    logrus.New(),
		logDir: logDir,
		files:  make(map[logrus.Level]*os.File),
	}

	for lvl, name := range levelFiles() {
		file, err := l.openLogFile(filepath.Join(logDir, name))
		if err != nil {
			l.Close()
			return nil, err
		}
		l.files[lvl] = file
	}

	l.log.SetLevel(lvl)
	l.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.log.SetOutput(io.Discard)
	l.log.AddHook(&levelHook{logger: l})

	return l, nil
}

func levelFiles() map[logrus.Level]string {
	return map[logrus.Level]string{
		logrus.InfoLevel:  InfoFile,
		logrus.WarnLevel:  WarningFile,
		logrus.ErrorLevel: ErrorFile,
	}
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.log.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.log.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.log.Errorf(format, v...)
}

// Debug writes a formatted debug-level entry to stdout only.
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log.Debugf(format, v...)
}

// WithFields returns an entry carrying structured fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.log.WithFields(fields)
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if err := l.truncate(fileName); err != nil {
		return err
	}
	l.log.Infof("Log file %s has been cleared", fileName)
	return nil
}

func (l *Logger) truncate(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, file := range l.files {
		if filepath.Base(file.Name()) == fileName {
			if err := file.Truncate(0); err != nil {
				return fmt.Errorf("failed to truncate %s: %w", fileName, err)
			}
			return nil
		}
	}
	return fmt.Errorf("unknown log file: %s", fileName)
}

// Dir returns the directory holding the log files.
func (l *Logger) Dir() string {
	return l.logDir
}

// Close releases the log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for lvl, file := range l.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, lvl)
	}
	return firstErr
}

// levelHook mirrors every entry to the console and to the file of its level.
type levelHook struct {
	logger *Logger
}

func (h *levelHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *levelHook) Fire(entry *logrus.Entry) error {
	line, err := entry.Bytes()
	if err != nil {
		return err
	}

	h.logger.mu.Lock()
	defer h.logger.mu.Unlock()

	console := io.Writer(os.Stdout)
	if entry.Level <= logrus.ErrorLevel {
		console = os.Stderr
	}
	if _, err := console.Write(line); err != nil {
		return err
	}

	fileLevel := entry.Level
	if fileLevel < logrus.ErrorLevel {
		fileLevel = logrus.ErrorLevel
	}
	if file, ok := h.logger.files[fileLevel]; ok {
		_, err = file.Write(line)
	}
	return err
}
