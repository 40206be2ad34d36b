package storage

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	"github.com/nixlim/herd-top/internal/errors"
	"go.uber.org/zap"
)

// SQLiteKV stores rows of one namespace in the kv table.
type SQLiteKV struct {
	db              *sql.DB
	namespace       string
	logger          *zap.SugaredLogger
	closed          atomic.Bool
	cancelMaint     context.CancelFunc
	maintenanceDone chan struct{}
	pinned          []string
}

type Option func(*SQLiteKV)

// WithPinnedPrefixes exempts keys starting with any of prefixes from
// retention pruning.
func WithPinnedPrefixes(prefixes ...string) Option {
	return func(s *SQLiteKV) { s.pinned = append(s.pinned, prefixes...) }
}

func NewSQLiteKV(dbPath, namespace string, retentionDays int, logger *zap.SugaredLogger, opts ...Option) (*SQLiteKV, error) {
	if namespace == "" {
		return nil, errors.New("storage namespace must not be empty")
	}

	db, err := OpenDB(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	kv := &SQLiteKV{
		db:              db,
		namespace:       namespace,
		logger:          logger,
		cancelMaint:     cancel,
		maintenanceDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(kv)
	}

	// Expired rows from earlier runs are dropped before anything reads them.
	if _, err := kv.pruneExpired(retentionDays); err != nil {
		logger.Warnw("initial storage prune failed", "error", err)
	}
	kv.startMaintenance(ctx, retentionDays)

	return kv, nil
}

func (s *SQLiteKV) Get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(
		"SELECT value FROM kv WHERE namespace = ? AND key = ?",
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "reading key %q", key)
	}
	return value, true, nil
}

func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.namespace, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrapf(err, "writing key %q", key)
	}
	return nil
}

func (s *SQLiteKV) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE namespace = ? AND key = ?", s.namespace, key)
	if err != nil {
		return errors.Wrapf(err, "deleting key %q", key)
	}
	return nil
}

func (s *SQLiteKV) Keys(prefix string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT key FROM kv WHERE namespace = ? AND substr(key, 1, length(?)) = ? ORDER BY key",
		s.namespace, prefix, prefix,
	)
	if err != nil {
		return nil, errors.Wrap(err, "listing keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errors.Wrap(err, "scanning key")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close stops maintenance and closes the database. Safe to call twice.
func (s *SQLiteKV) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancelMaint()
	<-s.maintenanceDone
	return s.db.Close()
}
