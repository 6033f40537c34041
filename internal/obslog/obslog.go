package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger, console and/or file. Console goes to stderr so command
// output on stdout stays machine-readable.
var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L returns the global logger.
func L() *zap.Logger { return globalLogger }

// Options select level, encoding and sinks.
type Options struct {
	Level     string `env:"LOG_LEVEL" yaml:"level"`
	Format    string `env:"LOG_FORMAT" yaml:"format"` // legacy | json | console
	ToConsole bool   `env:"LOG_TO_CONSOLE" yaml:"to_console"`
	ToFile    bool   `env:"LOG_TO_FILE" yaml:"to_file"`
	File      string `env:"LOG_FILE" yaml:"file"`
	Caller    bool   `env:"LOG_CALLER" yaml:"caller"`
}

func DefaultOptions() Options {
	return Options{
		Level:     "warn",
		Format:    "console",
		ToConsole: true,
		File:      filepath.Join("logs", "kamictl.log"),
	}
}

// Init builds a logger from opts and installs it as the global logger.
func Init(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// New builds a logger without touching the global one.
func New(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level)
	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format != "legacy" && format != "json" && format != "console" {
		format = "legacy"
	}

	var cores []zapcore.Core
	if opts.ToConsole {
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(os.Stderr), level))
	}

	if opts.ToFile {
		filePath := strings.TrimSpace(opts.File)
		if filePath == "" {
			filePath = DefaultOptions().File
		}
		if err := ensureDir(filepath.Dir(filePath)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoderFor(format), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opts.Caller || format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	return logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func encoderFor(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	switch format {
	case "json":
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		return zapcore.NewConsoleEncoder(cfg)
	default:
		// legacy: "2006-01-02 15:04:05 | INFO | caller | msg"
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.DateTime)
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	return nil
}

// parseLevel falls back to info on unknown input.
func parseLevel(s string) zapcore.Level {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "warning" {
		v = "warn"
	}
	lvl, err := zapcore.ParseLevel(v)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
