package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the process logger is built.
type Config struct {
	Level       string   // debug, info, warn, error
	Format      string   // json, console
	EnableColor bool     // console only
	Outputs     []string // zap sink URLs, stdout when empty
}

const coloredConsole = "bridge-console"

var (
	mu      sync.RWMutex
	current *zap.Logger
	level   = zap.NewAtomicLevel()

	registerEncoder sync.Once
)

// DefaultConfig reads LOG_LEVEL, LOG_FORMAT, LOG_COLOR and NO_COLOR.
func DefaultConfig() Config {
	return Config{
		Level:       envOr("LOG_LEVEL", "info"),
		Format:      envOr("LOG_FORMAT", "console"),
		EnableColor: colorWanted(),
	}
}

func (cfg Config) encoder() (string, zapcore.EncoderConfig) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	if cfg.Format != "console" {
		return cfg.Format, ec
	}

	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	if !cfg.EnableColor {
		return "console", ec
	}

	registerEncoder.Do(func() {
		_ = zap.RegisterEncoder(coloredConsole, func(ec zapcore.EncoderConfig) (zapcore.Encoder, error) {
			return NewColoredConsoleEncoder(ec), nil
		})
	})
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return coloredConsole, ec
}

// New builds a standalone logger. The returned level can be changed at runtime.
func New(cfg Config, opts ...zap.Option) (*zap.Logger, zap.AtomicLevel, error) {
	lvl := zap.NewAtomicLevelAt(levelOf(cfg.Level))
	return build(cfg, lvl, opts...)
}

func build(cfg Config, lvl zap.AtomicLevel, opts ...zap.Option) (*zap.Logger, zap.AtomicLevel, error) {
	encoding, ec := cfg.encoder()

	outputs := cfg.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zc := zap.Config{
		Level:             lvl,
		Encoding:          encoding,
		EncoderConfig:     ec,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: lvl.Level() > zapcore.DebugLevel && lvl.Level() < zapcore.ErrorLevel,
	}

	l, err := zc.Build(opts...)
	if err != nil {
		return nil, lvl, err
	}
	return l, lvl, nil
}

// Initialize installs the process logger. Later calls are no-ops.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if current != nil {
		return
	}

	level.SetLevel(levelOf(cfg.Level))
	l, _, err := build(cfg, level)
	if err != nil {
		panic("logger: " + err.Error())
	}
	current = l
}

// Get returns the process logger, initializing it from the environment on first use.
func Get() *zap.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}

	Initialize(DefaultConfig())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func SetLevel(lvl string) {
	level.SetLevel(levelOf(lvl))
}

func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if current != nil {
		_ = current.Sync()
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.ToLower(v)
	}
	return fallback
}

// levelOf falls back to info for anything zap does not recognise.
func levelOf(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// colorWanted honours https://no-color.org before LOG_COLOR.
func colorWanted() bool {
	if _, off := os.LookupEnv("NO_COLOR"); off {
		return false
	}
	switch os.Getenv("LOG_COLOR") {
	case "", "1", "true":
		return true
	default:
		return false
	}
}
