// Package store implements the embedded relational persistence layer:
// a single SQLite file holding tasks, labels, dependency edges,
// git-refs, the repo catalog, and an FTS5 index, behind a single
// writer lane with bounded reader parallelism.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const driverName = "sqlite3_grns"

// registerOnce installs a SQLite driver variant that exposes a REGEXP
// function backed by Go's regexp package, used by the Query Engine's
// spec-regex filter.
var registerOnce sync.Once

func registerDriver() {
	registerOnce.Do(func() {
		sql.Register(driverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("regexp", func(pattern, s string) (bool, error) {
					re, err := regexp.Compile(pattern)
					if err != nil {
						return false, err
					}
					return re.MatchString(s), nil
				}, true)
			},
		})
	})
}

// DB wraps the SQLite connection pool and the single-writer lane.
type DB struct {
	sqlx    *sqlx.DB
	logger  *logrus.Logger
	writeMu sync.Mutex
}

// Open connects to (creating if absent) the SQLite file at path and
// applies the schema. Foreign keys and WAL mode are enabled; IMMEDIATE
// transaction locking is requested so that the application's
// writeMu and SQLite's native write lock stay in lockstep.
func Open(path string, logger *logrus.Logger) (*DB, error) {
	registerDriver()

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_fk=1", path)
	conn, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// Reads and writes share one pool of at most 8 connections; writes
	// are serialized by the app-level writeMu, not by a dedicated
	// connection.
	conn.SetMaxOpenConns(8)

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := conn.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{sqlx: conn, logger: logger}
	if err := d.migrate(); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}
	return d, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	return d.sqlx.Close()
}

func (d *DB) migrate() error {
	_, err := d.sqlx.Exec(schema)
	return err
}

// maxWriteRetries bounds retries against SQLite's transient "database
// is locked" condition before a write is surfaced as internal.
const maxWriteRetries = 5

// WriteTx serializes fn against the single writer lane, running it
// inside an IMMEDIATE transaction. fn's error aborts the transaction;
// a nil return commits. Transient SQLITE_BUSY errors are retried a
// bounded number of times before surfacing as a failure. ctx
// cancellation aborts pending work before commit.
func (d *DB) WriteTx(ctx context.Context, fn func(*Tx) error) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := d.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return fmt.Errorf("write lane exhausted retries: %w", lastErr)
}

func (d *DB) runOnce(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := d.sqlx.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func isBusy(err error) bool {
	sqliteErr, ok := err.(sqlite3.Error)
	if !ok {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}
