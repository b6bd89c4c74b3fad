// Package logging builds the zap loggers used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is the log file written next to the generated code
const DefaultFile = "codegen.log"

// Options configures New
type Options struct {
	// Level is a zap level name: debug, info, warn or error. Empty means info.
	Level string
	// File receives JSON records at every level. Empty disables the file.
	File string
	// Console receives human-readable records at Level. Nil means stderr.
	Console io.Writer
	// Quiet turns the console output off.
	Quiet bool
}

// New builds a logger that tees a console encoder and a JSON file encoder.
// The returned close function flushes and closes the file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	var (
		cores   []zapcore.Core
		closers []func() error
	)

	if !opts.Quiet {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.TimeKey = ""
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.AddSync(console),
			level,
		))
	}

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		closers = append(closers, f.Close)
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(f),
			zapcore.DebugLevel,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop(), func() error { return nil }, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	closeFn := func() error {
		_ = logger.Sync()
		var err error
		for _, c := range closers {
			if cerr := c(); cerr != nil && err == nil {
				err = cerr
			}
		}
		return err
	}
	return logger, closeFn, nil
}
