// Package logger provides the leveled zap logger used across remoteify.
//
// Initialise the global logger once, typically from the CLI:
//
//	opts := logger.DefaultOptions()
//	opts.ConsoleLevel = logger.DebugLevel
//	logger.Init(opts)
//	defer logger.SyncGlobal()
//
// Backends take a scoped child with logger.Get().With("host", host).
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level controls verbosity.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	// SuccessLevel is logged at zap's info level with its own console prefix.
	SuccessLevel
	WarnLevel
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case SuccessLevel:
		return "success"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", l)
	}
}

// CapitalString is the console prefix text of the level.
func (l Level) CapitalString() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case SuccessLevel:
		return "SUCCESS"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", l)
	}
}

func (l Level) ToZapLevel() zapcore.Level {
	switch l {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel, SuccessLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel accepts the lowercase names produced by Level.String.
func ParseLevel(s string) (Level, error) {
	for _, l := range []Level{DebugLevel, InfoLevel, SuccessLevel, WarnLevel, ErrorLevel} {
		if l.String() == s {
			return l, nil
		}
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// Options holds configuration for the logger.
type Options struct {
	ConsoleLevel  Level
	FileLevel     Level
	ConsoleOutput bool
	// ConsoleWriter defaults to os.Stderr so library logs never mix with command output.
	ConsoleWriter io.Writer
	ColorConsole  bool
	FileOutput    bool
	LogFilePath   string
	// MaxSizeMB and MaxBackups bound the rotated log files.
	MaxSizeMB       int
	MaxBackups      int
	TimestampFormat string
}

func DefaultOptions() Options {
	return Options{
		ConsoleLevel:    InfoLevel,
		FileLevel:       DebugLevel,
		ConsoleOutput:   true,
		ColorConsole:    true,
		FileOutput:      false,
		LogFilePath:     "remoteify.log",
		MaxSizeMB:       50,
		MaxBackups:      3,
		TimestampFormat: time.RFC3339,
	}
}

// Logger wraps a zap.SugaredLogger with printf-style leveled helpers.
type Logger struct {
	*zap.SugaredLogger
	opts Options
}

var (
	globalLogger *Logger
	globalMu     sync.Mutex
)

// Init installs the global logger. Later calls replace it, which lets the CLI
// reconfigure verbosity after flags are parsed.
func Init(opts Options) {
	l, err := NewLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v. Falling back to console logging.\n", err)
		fallback := DefaultOptions()
		l, _ = NewLogger(fallback)
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// Get returns the global logger, initialising it with DefaultOptions on first use.
func Get() *Logger {
	globalMu.Lock()
	l := globalLogger
	globalMu.Unlock()
	if l == nil {
		Init(DefaultOptions())
		return Get()
	}
	return l
}

// NewLogger builds a logger from opts. With no output enabled it returns a no-op logger.
func NewLogger(opts Options) (*Logger, error) {
	if opts.TimestampFormat == "" {
		opts.TimestampFormat = time.RFC3339
	}
	var cores []zapcore.Core

	if opts.ConsoleOutput {
		w := opts.ConsoleWriter
		if w == nil {
			w = os.Stderr
		}
		encoder := newConsoleEncoder(opts)
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), opts.ConsoleLevel.ToZapLevel()))
	}

	if opts.FileOutput {
		if opts.LogFilePath == "" {
			return nil, fmt.Errorf("log file path cannot be empty when file output is enabled")
		}
		fileEncoderCfg := zap.NewProductionEncoderConfig()
		fileEncoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		fileEncoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderCfg), zapcore.AddSync(rotator), opts.FileLevel.ToZapLevel()))
	}

	if len(cores) == 0 {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), opts: opts}, nil
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zapLogger.Sugar(), opts: opts}, nil
}

func (l *Logger) Debugf(template string, args ...interface{}) {
	l.SugaredLogger.Debugf(template, args...)
}

func (l *Logger) Infof(template string, args ...interface{}) {
	l.SugaredLogger.Infof(template, args...)
}

// Successf logs at info level with the SUCCESS console prefix.
func (l *Logger) Successf(template string, args ...interface{}) {
	l.SugaredLogger.Infow(fmt.Sprintf(template, args...), successKey, true)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.SugaredLogger.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.SugaredLogger.Errorf(template, args...)
}

func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), opts: l.opts}
}

func Debug(template string, args ...interface{}) { Get().Debugf(template, args...) }
func Info(template string, args ...interface{})  { Get().Infof(template, args...) }
func Warn(template string, args ...interface{})  { Get().Warnf(template, args...) }
func Error(template string, args ...interface{}) { Get().Errorf(template, args...) }

// SyncGlobal flushes the global logger.
func SyncGlobal() error {
	return Get().Sync()
}
