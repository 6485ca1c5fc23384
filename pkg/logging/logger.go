package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a component-scoped logger for soulcore. Every component of a
// process writes into the same session file under ~/.soulcore/logs/ unless
// Configure points the directory elsewhere.
type Logger struct {
	sessionID string
	component string
	file      *os.File
	sugar     *zap.SugaredLogger
	logPath   string
	closeOnce sync.Once
}

var (
	sessionID     string
	sessionIDOnce sync.Once

	mu sync.Mutex

	// logDir is the directory where log files are stored
	logDir string

	// configuredDir overrides the default ~/.soulcore/logs location
	configuredDir string

	initOnce sync.Once
	initErr  error

	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Configure sets the log directory and minimum level. It must be called
// before the first NewLogger to change the directory; the level can be
// changed at any time. Empty arguments keep the current setting.
func Configure(dir, lvl string) error {
	if lvl != "" {
		var l zapcore.Level
		if err := l.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
			return fmt.Errorf("invalid log level %q: %w", lvl, err)
		}
		level.SetLevel(l)
	}
	if dir != "" {
		mu.Lock()
		configuredDir = dir
		initOnce = sync.Once{}
		initErr = nil
		mu.Unlock()
	}
	return nil
}

func getSessionID() string {
	sessionIDOnce.Do(func() {
		sessionID = uuid.New().String()
	})
	return sessionID
}

func initLogDirectory() error {
	mu.Lock()
	defer mu.Unlock()
	initOnce.Do(func() {
		dir := configuredDir
		if dir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				initErr = fmt.Errorf("failed to get home directory: %w", err)
				return
			}
			dir = filepath.Join(homeDir, ".soulcore", "logs")
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			initErr = fmt.Errorf("failed to create log directory: %w", err)
			return
		}
		logDir = dir
	})
	return initErr
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.NameKey = "component"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	return cfg
}

// NewLogger creates a logger for component writing to
// <log dir>/<session-id>-soulcore.log.
//
// When the directory or file cannot be opened a logger writing to stderr is
// returned together with the error, so callers may keep going.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	sessID := getSessionID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-soulcore.log", sessID))

	// Append mode: every component shares the session file.
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		err = fmt.Errorf("failed to open log file: %w", err)
		return newFallbackLogger(component, err), err
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(file), level)
	return &Logger{
		sessionID: sessID,
		component: component,
		file:      file,
		sugar:     zap.New(core).Named(component).Sugar(),
		logPath:   logPath,
	}, nil
}

func newFallbackLogger(component string, err error) *Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.Lock(os.Stderr), level)
	sugar := zap.New(core).Named(component).Sugar()
	sugar.Warnf("failed to initialize file logging: %v", err)
	sugar.Warn("falling back to stderr logging")

	return &Logger{
		sessionID: getSessionID(),
		component: component,
		sugar:     sugar,
	}
}

// Nop returns a logger that discards everything. Components use it when the
// caller does not provide one.
func Nop(component string) *Logger {
	return &Logger{
		sessionID: getSessionID(),
		component: component,
		sugar:     zap.NewNop().Sugar(),
	}
}

// Printf logs at info level.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.sugar.Debugf(format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Zap exposes the underlying structured logger, for libraries that want a
// *zap.Logger or a bridged *log.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

// SessionID returns the current session ID
func (l *Logger) SessionID() string {
	return l.sessionID
}

// LogPath returns the path to the log file, empty for stderr and nop loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close flushes and closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = l.sugar.Sync()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetSessionID returns the current global session ID
func GetSessionID() string {
	return getSessionID()
}

// GetLogDirectory returns the directory where logs are stored, creating it
// if needed.
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}
