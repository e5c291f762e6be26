package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes LogLevel satisfy the fmt.Stringer interface.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ZapLevel maps the level onto zap's levels. Unknown levels map to info.
func (l LogLevel) ZapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel parses a case-insensitive level name such as "debug" or "WARN".
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Options configures the process logger.
type Options struct {
	Level LogLevel

	// Development selects the human readable console encoder instead of JSON.
	Development bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	ctrlOnce sync.Once
)

// delegatingCore forwards to whichever logger is current, so loggers handed
// out before a re-Init keep writing to the active sink.
type delegatingCore struct{}

func (delegatingCore) Enabled(l zapcore.Level) bool { return current().Core().Enabled(l) }

func (delegatingCore) With(fields []zapcore.Field) zapcore.Core {
	return current().Core().With(fields)
}

func (delegatingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return current().Core().Check(ent, ce)
}

func (delegatingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return current().Core().Write(ent, fields)
}

func (delegatingCore) Sync() error { return current().Core().Sync() }

// Init builds the process logger and installs it as the controller-runtime
// logger so that client-go and controller-runtime output shares one sink.
// It should be called once at startup.
func Init(opts Options) {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	var encoder zapcore.Encoder
	if opts.Development {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	}

	level.SetLevel(opts.Level.ZapLevel())
	core := zapcore.NewCore(encoder, zapcore.AddSync(output), level)

	mu.Lock()
	logger = zap.New(core)
	mu.Unlock()

	// controller-runtime only accepts the first SetLogger call.
	ctrlOnce.Do(func() {
		ctrl.SetLogger(Logr())
	})
}

// InitForCLI initializes console logging at the given level.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	Init(Options{Level: filterLevel, Development: true, Output: output})
}

// SetLevel changes the minimum level of the running logger.
func SetLevel(l LogLevel) {
	level.SetLevel(l.ZapLevel())
}

// Logr returns a logr.Logger backed by the process logger.
func Logr() logr.Logger {
	return zapr.NewLogger(zap.New(delegatingCore{}))
}

// Zap returns the underlying zap logger, named after the subsystem.
func Zap(subsystem string) *zap.Logger {
	return current().Named(subsystem)
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func logInternal(lvl LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	l := current()
	if !l.Core().Enabled(lvl.ZapLevel()) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}

	fields := []zap.Field{zap.String("subsystem", subsystem)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if ce := l.Check(lvl.ZapLevel(), msg); ce != nil {
		ce.Write(fields...)
	}
}

// Debug logs a debug message.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an informational message.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warning message.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error message.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}

// InitForTest installs a console logger on stderr for package tests.
func InitForTest(filterLevel LogLevel) {
	Init(Options{Level: filterLevel, Development: true, Output: os.Stderr})
}
