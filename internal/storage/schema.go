package storage

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/nixlim/herd-top/internal/errors"
	_ "modernc.org/sqlite"
)

const currentSchemaVersion = 1

func OpenDB(dbPath string) (*sql.DB, error) {
	parentDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(parentDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "creating parent directories")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enabling WAL mode")
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "setting busy timeout")
	}

	if err := migrateSchema(db, dbPath); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func migrateSchema(db *sql.DB, dbPath string) error {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	var currentVersion int
	if errors.Is(err, sql.ErrNoRows) {
		currentVersion = 0
	} else if err != nil {
		return errors.Wrap(err, "checking schema_version table")
	} else {
		err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&currentVersion)
		if errors.Is(err, sql.ErrNoRows) {
			currentVersion = 0
		} else if err != nil {
			return errors.Wrap(err, "reading schema version")
		}
	}

	if currentVersion > currentSchemaVersion {
		return errors.WithHintf(
			errors.Newf("database schema version %d is newer than this herd-top supports (max: %d)", currentVersion, currentSchemaVersion),
			"upgrade herd-top or delete %s to start fresh", dbPath,
		)
	}

	if currentVersion < currentSchemaVersion {
		if err := applyMigrations(db, currentVersion); err != nil {
			return errors.Wrap(err, "applying migrations")
		}
	}

	return nil
}

func applyMigrations(db *sql.DB, fromVersion int) error {
	if fromVersion == 0 {
		if err := migrateV0ToV1(db); err != nil {
			return errors.Wrap(err, "migration v0→v1")
		}
	}

	return nil
}

func migrateV0ToV1(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(err, "creating schema_version table")
	}

	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (1)")
	if err != nil {
		return errors.Wrap(err, "inserting schema version")
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)
	`)
	if err != nil {
		return errors.Wrap(err, "creating kv table")
	}

	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_kv_updated ON kv(updated_at)")
	if err != nil {
		return errors.Wrap(err, "creating idx_kv_updated")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	return nil
}
