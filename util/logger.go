// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// zap has no level below Debug, so trace-style output gets its own.
const (
	zapVerbose = zapcore.DebugLevel
	zapDebug   = zapcore.DebugLevel - 1
)

// Logger is a levelled front end over zap.  Verbosity follows the -v
// count: 0 = errors only, 1 = normal, 2 = verbose, 3 = debug.
type Logger struct {
	level      LogLevel
	output     zapcore.WriteSyncer
	json       bool
	timestamps bool
	name       string
	base       *zap.Logger
}

// NewLogger returns a console Logger writing to stderr.
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     zapcore.Lock(os.Stderr),
		timestamps: verbosity >= 3,
	}
	l.rebuild()
	return l
}

// NewJSONLogger returns a Logger using zap's production JSON encoding.
func NewJSONLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     zapcore.Lock(os.Stderr),
		json:       true,
		timestamps: true,
	}
	l.rebuild()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.timestamps = on
	l.rebuild()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = zapcore.AddSync(w)
	l.rebuild()
}

// Level returns the current log level.
func (l *Logger) Level() LogLevel { return l.level }

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(name string) *Logger {
	child := *l
	child.base = l.base.Named(name)
	if l.name != "" {
		child.name = l.name + "." + name
	} else {
		child.name = name
	}
	return &child
}

// Zap exposes the underlying zap logger for middleware that wants one.
func (l *Logger) Zap() *zap.Logger { return l.base }

// Sync flushes buffered output.
func (l *Logger) Sync() error { return l.base.Sync() }

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(zapcore.InfoLevel, format, args...)
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(zapcore.WarnLevel, format, args...)
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.write(zapVerbose, format, args...)
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(zapDebug, format, args...)
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(zapcore.ErrorLevel, format, args...)
}

func (l *Logger) write(lvl zapcore.Level, format string, args ...interface{}) {
	if ce := l.base.Check(lvl, fmt.Sprintf(format, args...)); ce != nil {
		ce.Write()
	}
}

func (l *Logger) rebuild() {
	encCfg := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		NameKey:        "logger",
		EncodeLevel:    shortLevel,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
	if l.timestamps {
		encCfg.TimeKey = "ts"
	}

	var enc zapcore.Encoder
	if l.json {
		encCfg.EncodeLevel = jsonLevel
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.ConsoleSeparator = " "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	// The core does the filtering so Zap() honours -q and -v too.
	core := zapcore.NewCore(enc, l.output, minLevel(l.level))
	l.base = zap.New(core)
	if l.name != "" {
		l.base = l.base.Named(l.name)
	}
}

// minLevel maps verbosity onto the lowest zap level that is written.
// zap's own Debug lands on the verbose tier.
func minLevel(v LogLevel) zap.LevelEnablerFunc {
	floor := zapcore.ErrorLevel
	switch {
	case v >= LogDebug:
		floor = zapDebug
	case v >= LogVerbose:
		floor = zapVerbose
	case v >= LogNormal:
		floor = zapcore.InfoLevel
	}
	return func(lvl zapcore.Level) bool { return lvl >= floor }
}

func shortLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + levelLabel(lvl) + "]")
}

func jsonLevel(lvl zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	switch lvl {
	case zapVerbose:
		enc.AppendString("verbose")
	case zapDebug:
		enc.AppendString("debug")
	default:
		enc.AppendString(lvl.String())
	}
}

func levelLabel(lvl zapcore.Level) string {
	switch lvl {
	case zapcore.ErrorLevel:
		return "ERR"
	case zapcore.WarnLevel:
		return "WRN"
	case zapcore.InfoLevel:
		return "INF"
	case zapVerbose:
		return "VRB"
	case zapDebug:
		return "DBG"
	default:
		return lvl.CapitalString()
	}
}
