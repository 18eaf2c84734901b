package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/kulturbot/internal/profile"
	"github.com/hrygo/kulturbot/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect with some sane settings:
	// - No foreign key constraints: explicit to prevent surprises on SQLite upgrades.
	// - Busy timeout: avoid spurious SQLITE_BUSY under the single-writer ledger.
	// - Journal mode set to WAL: the recommended journal mode for most applications.
	//
	// Note: when using the `modernc.org/sqlite` driver, each pragma must be
	// prefixed with `_pragma=`.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite with WAL performs best over a single connection.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	return &DB{db: sqliteDB, profile: profile}, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS owner (
	id TEXT PRIMARY KEY,
	request_max_symbols INTEGER NOT NULL DEFAULT 110,
	total_requests INTEGER NOT NULL DEFAULT 0,
	embedding_tokens INTEGER NOT NULL DEFAULT 0,
	synthesis_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS worker (
	code TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	created_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS worker_message (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	worker_code TEXT NOT NULL,
	body TEXT NOT NULL,
	created_ts INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS request_record (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	topic TEXT NOT NULL,
	kind TEXT NOT NULL,
	embedding_tokens INTEGER NOT NULL DEFAULT 0,
	synthesis_tokens INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_worker_message_owner ON worker_message (owner_id, created_ts);
CREATE INDEX IF NOT EXISTS idx_request_record_owner ON request_record (owner_id, ts);
`

func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
