// internal/platform/logx/logx.go
package logx

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, kv ...any)
	With(kv ...any) Logger
	SetLevel(lvl Level)
}

// Options configura el backend zap.
type Options struct {
	Level    Level
	Encoding string // "console" (default) o "json"
	Output   []string
}

type zapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel // compartido con los loggers derivados por With
}

// New crea un logger de consola con el nivel de RECONX_LOG_LEVEL.
func New() Logger {
	return NewWithOptions(Options{Level: ParseLevel(os.Getenv("RECONX_LOG_LEVEL"))})
}

// NewWithLevel creates a logger with a specific log level
func NewWithLevel(lvl Level) Logger {
	return NewWithOptions(Options{Level: lvl})
}

// NewSilent creates a logger that only outputs errors
func NewSilent() Logger {
	return NewWithLevel(LevelError)
}

// NewNop crea un logger que descarta todo (tests).
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar(), level: zap.NewAtomicLevelAt(zapcore.FatalLevel)}
}

// NewWithOptions construye el logger zap; si la construcción falla cae en un logger nop.
func NewWithOptions(opts Options) Logger {
	level := zap.NewAtomicLevelAt(toZapLevel(opts.Level))

	encoding := opts.Encoding
	if encoding != "json" {
		encoding = "console"
	}
	output := opts.Output
	if len(output) == 0 {
		output = []string{"stderr"}
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	if encoding == "json" {
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	cfg := zap.Config{
		Level:            level,
		Encoding:         encoding,
		OutputPaths:      output,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderCfg,
	}

	zl, err := cfg.Build()
	if err != nil {
		return NewNop()
	}
	return &zapLogger{sugar: zl.Sugar(), level: level}
}

// NewFromZap envuelve un *zap.Logger existente (útil con zaptest/observer).
func NewFromZap(zl *zap.Logger, lvl Level) Logger {
	return &zapLogger{sugar: zl.Sugar(), level: zap.NewAtomicLevelAt(toZapLevel(lvl))}
}

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...), level: l.level}
}

func (l *zapLogger) SetLevel(lvl Level) {
	l.level.SetLevel(toZapLevel(lvl))
}

func (l *zapLogger) Debug(msg string, kv ...any) {
	if l.level.Enabled(zapcore.DebugLevel) {
		l.sugar.Debugw(msg, kv...)
	}
}

func (l *zapLogger) Info(msg string, kv ...any) {
	if l.level.Enabled(zapcore.InfoLevel) {
		l.sugar.Infow(msg, kv...)
	}
}

func (l *zapLogger) Warn(msg string, kv ...any) {
	if l.level.Enabled(zapcore.WarnLevel) {
		l.sugar.Warnw(msg, kv...)
	}
}

func (l *zapLogger) Err(err error, kv ...any) {
	if err == nil {
		return
	}
	if l.level.Enabled(zapcore.ErrorLevel) {
		l.sugar.Errorw(err.Error(), kv...)
	}
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel convierte un nombre de nivel en Level (info por defecto).
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "dbg":
		return LevelDebug
	case "info", "inf", "":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "err", "error":
		return LevelError
	default:
		return LevelInfo
	}
}
