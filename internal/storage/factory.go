package storage

import (
	"github.com/nixlim/herd-top/internal/config"
	"go.uber.org/zap"
)

// NewKV opens the SQLite store for cfg.Scope, falling back to memory when
// the database cannot be opened. persistent reports which one was returned.
func NewKV(cfg config.StorageConfig, logger *zap.SugaredLogger, opts ...Option) (kv KV, persistent bool) {
	if cfg.DBPath == "" {
		return NewMemoryKV(), false
	}

	dbPath := config.ExpandTilde(cfg.DBPath)

	store, err := NewSQLiteKV(dbPath, cfg.Scope, cfg.RetentionDays, logger, opts...)
	if err != nil {
		logger.Warnw("SQLite storage unavailable, falling back to in-memory store",
			"path", dbPath,
			"error", err,
		)
		return NewMemoryKV(), false
	}

	return store, true
}
