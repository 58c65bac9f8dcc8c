package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
)

// LevelEnvVar selects the log level when set (DEBUG, INFO, WARN, ERROR).
const LevelEnvVar = "CAPSULECHECK_LOG_LEVEL"

var (
	logger  *slog.Logger
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

// SetupLogger sends log records as text to stderr and as JSON to the file
// at logFilePath.
func SetupLogger(logFilePath string, level slog.Level) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger = newFanout(os.Stderr, logFile, level)
	logger.Info("capsulecheck log started", "at", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// SetupLoggerWithWriters installs a logger writing text to stderr and JSON to
// file. Used by tests.
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()

	logger = newFanout(stderr, file, level)
	isSetup = true
}

func newFanout(stderr, file io.Writer, level slog.Level) *slog.Logger {
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	jsonHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(textHandler, jsonHandler))
}

// CloseLogger closes the log file and drops the installed logger.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		logger.Info("capsulecheck log closed", "at", time.Now().Format(time.RFC3339))
	}
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = nil
	isSetup = false
}

// ParseLevel maps a level name to a slog.Level, defaulting to Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromEnv reads LevelEnvVar.
func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv(LevelEnvVar))
}

// Logger returns the installed logger, or slog.Default when none is set up.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if logger != nil {
		return logger
	}
	return slog.Default()
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// DebugLog logs a message if a logger has been set up
func DebugLog(format string, args ...interface{}) {
	mu.Lock()
	l := logger
	mu.Unlock()

	if l != nil {
		l.Debug(fmt.Sprintf(format, args...))
	}
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// LogImageProcessed logs the outcome of one classified pair
func LogImageProcessed(path string, success bool, errMsg string) {
	if success {
		Logger().Debug("processed", "path", path)
	} else {
		Logger().Warn("failed", "path", path, "error", errMsg)
	}
}
