package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger shared by every component of the service.
// It wraps a zap SugaredLogger so call sites can pass loosely typed key/value pairs.
type Logger struct {
	*zap.SugaredLogger

	level zapcore.Level
}

// Production returns a JSON logger at INFO level.
func Production() *Logger {
	return New(false)
}

// Nop returns a logger that discards everything. Intended for tests.
func Nop() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		level:         zapcore.FatalLevel,
	}
}

// New builds a logger. Debug mode switches to the development encoder and DEBUG level.
func New(debug bool) *Logger {
	var config zap.Config
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(level)

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.StacktraceKey = "stacktrace"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	baseLogger, err := config.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1), // skip the wrapper methods below
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		baseLogger = zap.NewExample()
	}

	return &Logger{
		SugaredLogger: baseLogger.Sugar(),
		level:         level,
	}
}

// WithFields returns a child logger carrying the given key/value pairs.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		SugaredLogger: l.With(fields...),
		level:         l.level,
	}
}

// WithError returns a child logger with an "error" field, or l itself when err is nil.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithFields("error", err.Error())
}

func (l *Logger) Debug(msg string, fields ...any) {
	if l.level <= zapcore.DebugLevel {
		l.Debugw(msg, fields...)
	}
}

func (l *Logger) Info(msg string, fields ...any) {
	if l.level <= zapcore.InfoLevel {
		l.Infow(msg, fields...)
	}
}

func (l *Logger) Warn(msg string, fields ...any) {
	if l.level <= zapcore.WarnLevel {
		l.Warnw(msg, fields...)
	}
}

// Error logs at ERROR level; production loggers attach a stack trace.
func (l *Logger) Error(msg string, fields ...any) {
	if l.level <= zapcore.ErrorLevel {
		l.Errorw(msg, fields...)
	}
}

// Fatal logs and exits the process.
func (l *Logger) Fatal(msg string, fields ...any) {
	l.Fatalw(msg, fields...)
}

// Sync flushes buffered entries. Call it before the process exits.
func (l *Logger) Sync() error {
	return l.SugaredLogger.Sync()
}
