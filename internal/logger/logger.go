// Package logger builds the zap logger shared by every herd-top component.
//
// The TUI owns the terminal, so log output only ever goes to a file. With no
// path configured a no-op logger is returned.
package logger

import (
	"os"
	"path/filepath"

	"github.com/nixlim/herd-top/internal/config"
	"github.com/nixlim/herd-top/internal/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a sugared logger writing to cfg.Path. The returned cleanup
// flushes and closes the file.
func New(cfg config.LogConfig) (*zap.SugaredLogger, func(), error) {
	if cfg.Path == "" {
		return zap.NewNop().Sugar(), func() {}, nil
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "parsing log level %q", cfg.Level)
	}

	path := config.ExpandTilde(cfg.Path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, errors.Wrap(err, "creating log directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening log file")
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(f), level)
	log := zap.New(core).Sugar()

	cleanup := func() {
		_ = log.Sync()
		_ = f.Close()
	}
	return log, cleanup, nil
}
