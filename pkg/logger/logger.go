// Package logger wraps zap.SugaredLogger with the small custom-level and
// multi-sink conventions this module's run contexts need: a SUCCESS level
// distinct from INFO, console output through a custom color encoder, an
// optional JSON file sink, and a Tee helper for fanning one log line out to
// every logger a pipeline context and a caller's execution metadata declare.
//
//	opts := logger.DefaultOptions()
//	logger.Init(opts)
//	logger.Get().Infof("run %s starting", runID)
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is this package's log level, mapped to zapcore.Level for the
// underlying zap core. SuccessLevel is custom: zap has no equivalent, so it
// logs at InfoLevel but carries a "customlevel" field the console encoder
// uses to print it distinctively.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	SuccessLevel
	WarnLevel
	ErrorLevel
)

// String returns a lowercase representation of the Level.
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

// CapitalString returns an upper-case representation of the Level.
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

// ToZapLevel converts this Level to its zapcore.Level.
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

// Options holds logger construction configuration.
type Options struct {
	// ConsoleLevel sets the minimum level printed to the console.
	ConsoleLevel Level
	// FileLevel sets the minimum level written to the file sink.
	FileLevel Level
	// LogFilePath is where the file sink writes. Required if FileOutput is set.
	LogFilePath string
	// ConsoleOutput enables the console sink.
	ConsoleOutput bool
	// FileOutput enables the JSON file sink.
	FileOutput bool
	// ColorConsole enables ANSI colors on the console sink.
	ColorConsole bool
	// TimestampFormat is the time layout used by both sinks.
	TimestampFormat string
}

// DefaultOptions returns console-only, colored, InfoLevel logging.
func DefaultOptions() Options {
	return Options{
		ConsoleLevel:    InfoLevel,
		FileLevel:       DebugLevel,
		LogFilePath:     "app.log",
		ConsoleOutput:   true,
		FileOutput:      false,
		ColorConsole:    true,
		TimestampFormat: time.RFC3339,
	}
}

// Logger wraps zap.SugaredLogger with this package's custom levels.
type Logger struct {
	*zap.SugaredLogger
	opts Options
}

var (
	globalLogger *Logger
	once         sync.Once
)

// Init initializes the global logger. Only the first call has effect;
// later calls are no-ops, matching sync.Once semantics. A construction
// failure (e.g. an unwritable log file) falls back to a bare development
// logger on stderr rather than leaving the global logger nil.
func Init(opts Options) {
	once.Do(func() {
		l, err := NewLogger(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: init failed (%v), falling back to a basic console logger\n", err)
			cfg := zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
			dev, _ := cfg.Build(zap.AddCallerSkip(1))
			l = &Logger{SugaredLogger: dev.Sugar(), opts: Options{ConsoleOutput: true, ConsoleLevel: InfoLevel, ColorConsole: true}}
		}
		globalLogger = l
	})
}

// Get returns the global logger, initializing it with DefaultOptions if
// Init has not yet been called.
func Get() *Logger {
	if globalLogger == nil {
		Init(DefaultOptions())
	}
	return globalLogger
}

// NewLogger builds a standalone Logger from opts, independent of the
// global instance. Useful when a caller wants its own sink configuration.
func NewLogger(opts Options) (*Logger, error) {
	var cores []zapcore.Core

	if opts.TimestampFormat == "" {
		opts.TimestampFormat = time.RFC3339
	}

	if opts.ConsoleOutput {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		cfg.TimeKey = "time"
		cfg.LevelKey = "" // the console encoder prints its own level prefix
		cfg.CallerKey = "caller"
		cfg.MessageKey = "msg"

		var enc zapcore.Encoder
		if opts.ColorConsole {
			enc = NewColorConsoleEncoder(cfg, opts)
		} else {
			enc = NewPlainTextConsoleEncoder(cfg, opts)
		}

		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			if opts.ConsoleLevel == SuccessLevel {
				return lvl >= zapcore.InfoLevel
			}
			return lvl >= opts.ConsoleLevel.ToZapLevel()
		})
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), enabler))
	}

	if opts.FileOutput {
		if opts.LogFilePath == "" {
			return nil, fmt.Errorf("log file path cannot be empty when file output is enabled")
		}
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(opts.TimestampFormat)
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder

		file, err := os.OpenFile(opts.LogFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", opts.LogFilePath, err)
		}

		enabler := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			if opts.FileLevel == SuccessLevel {
				return lvl >= zapcore.InfoLevel
			}
			return lvl >= opts.FileLevel.ToZapLevel()
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(cfg), zapcore.AddSync(file), enabler))
	}

	if len(cores) == 0 {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), opts: opts}, nil
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zapLogger.Sugar(), opts: opts}, nil
}

// Tee fans a single log call out to every logger passed in, the same way
// NewLogger fans one logger's own call out across its console and file
// cores: by combining their zapcore.Core values with zapcore.NewTee. A
// zero-length call returns the global logger; a single logger is returned
// unwrapped.
func Tee(loggers ...*Logger) *Logger {
	live := make([]*Logger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil && l.SugaredLogger != nil {
			live = append(live, l)
		}
	}
	switch len(live) {
	case 0:
		return Get()
	case 1:
		return live[0]
	}

	cores := make([]zapcore.Core, len(live))
	for i, l := range live {
		cores[i] = l.Desugar().Core()
	}
	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{SugaredLogger: zapLogger.Sugar(), opts: live[0].opts}
}

// logWithLevel routes to the zap method matching level, tagging the entry
// with a "customlevel" field the console encoder reads to print SUCCESS
// distinctively from INFO.
func (l *Logger) logWithLevel(level Level, template string, args ...interface{}) {
	if l == nil || l.SugaredLogger == nil {
		fmt.Fprintf(os.Stderr, "logger: not initialized. %s "+template+"\n", level.CapitalString(), fmt.Sprintf(template, args...))
		return
	}

	msg := fmt.Sprintf(template, args...)
	field := zap.String("customlevel", level.CapitalString())
	withSkip := l.SugaredLogger.WithOptions(zap.AddCallerSkip(1))

	switch level {
	case DebugLevel:
		withSkip.Debugw(msg, field)
	case InfoLevel, SuccessLevel:
		withSkip.Infow(msg, field)
	case WarnLevel:
		withSkip.Warnw(msg, field)
	case ErrorLevel:
		withSkip.Errorw(msg, field)
	default:
		withSkip.Infow(msg, field)
	}
}

// Debugf logs a message at DebugLevel.
func (l *Logger) Debugf(template string, args ...interface{}) { l.logWithLevel(DebugLevel, template, args...) }

// Infof logs a message at InfoLevel.
func (l *Logger) Infof(template string, args ...interface{}) { l.logWithLevel(InfoLevel, template, args...) }

// Successf logs a message at SuccessLevel; the console encoder prints it
// distinctively from a plain Infof.
func (l *Logger) Successf(template string, args ...interface{}) {
	l.logWithLevel(SuccessLevel, template, args...)
}

// Warnf logs a message at WarnLevel.
func (l *Logger) Warnf(template string, args ...interface{}) { l.logWithLevel(WarnLevel, template, args...) }

// Errorf logs a message at ErrorLevel.
func (l *Logger) Errorf(template string, args ...interface{}) { l.logWithLevel(ErrorLevel, template, args...) }

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.SugaredLogger == nil {
		return nil
	}
	return l.SugaredLogger.Sync()
}

// With returns a Logger carrying args as structured fields on every
// subsequent call, the same as zap's With.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), opts: l.opts}
}
