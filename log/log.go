// Package log builds the zap loggers used by delivery components and holds
// the field helpers for the message model.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

const (
	ConsoleEncoder = "console"
	JSONEncoder    = "json"
)

// Config holds the logging settings of a process.
type Config struct {
	Level   string `mapstructure:"level"`
	Encoder string `mapstructure:"encoder"`

	// Modules overrides the level for named loggers, e.g. ordering=debug.
	Modules map[string]string `mapstructure:"modules"`
}

func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Encoder: ConsoleEncoder,
	}
}

// ParseLevel parses a textual level such as "debug" or "WARN".
func ParseLevel(lvl string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(lvl))); err != nil {
		return level, fmt.Errorf("parse log level %q: %w", lvl, err)
	}
	return level, nil
}

// NewEncoder returns the zap encoder registered under name.
func NewEncoder(name string) (zapcore.Encoder, error) {
	switch name {
	case "", ConsoleEncoder:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	case JSONEncoder:
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	default:
		return nil, fmt.Errorf("unknown log encoder %q", name)
	}
}

// New creates a named logger writing to stdout with the fixed level.
//
// The io core itself accepts every level so that Module can lower the level
// of a single module below the root one.
func New(name string, level zapcore.Level, encoder zapcore.Encoder, hooks ...func(zapcore.Entry) error) *zap.Logger {
	core := zapcore.NewCore(encoder, zapcore.AddSync(logWriter), zapcore.DebugLevel)
	if len(hooks) > 0 {
		core = zapcore.RegisterHooks(core, hooks...)
	}
	return zap.New(core, withLevel(zap.NewAtomicLevelAt(level))).Named(name)
}

// FromConfig creates the root logger described by cfg.
func FromConfig(name string, cfg Config) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	encoder, err := NewEncoder(cfg.Encoder)
	if err != nil {
		return nil, err
	}
	return New(name, level, encoder), nil
}

// Module returns a named child of logger. A level configured for the module
// in cfg replaces the inherited one.
func Module(logger *zap.Logger, cfg Config, module string) (*zap.Logger, error) {
	lgr := logger.Named(module)
	lvl, ok := cfg.Modules[module]
	if !ok {
		return lgr, nil
	}
	level, err := ParseLevel(lvl)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", module, err)
	}
	return lgr.WithOptions(withLevel(zap.NewAtomicLevelAt(level))), nil
}

func withLevel(level zap.AtomicLevel) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		if leveled, ok := core.(*coreWithLevel); ok {
			core = leveled.Core
		}
		return &coreWithLevel{
			Core: core,
			lvl:  level,
		}
	})
}

type coreWithLevel struct {
	zapcore.Core
	lvl zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level)
}

func (c *coreWithLevel) Level() zapcore.Level {
	return c.lvl.Level()
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{Core: c.Core.With(fields), lvl: c.lvl}
}
