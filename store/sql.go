package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	defense "github.com/jassus213/go-defense"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS defense_counters (
		counter_key TEXT PRIMARY KEY,
		value       INTEGER NOT NULL,
		expires_at  INTEGER NOT NULL
	)`

	// addSQL restarts an expired row from the delta instead of adding to it.
	// expires_at is unix nanoseconds, 0 means never.
	addSQL = `INSERT INTO defense_counters (counter_key, value, expires_at) VALUES (?1, ?2, ?3)
		ON CONFLICT(counter_key) DO UPDATE SET
			value = CASE
				WHEN expires_at != 0 AND expires_at <= ?4 THEN excluded.value
				ELSE value + excluded.value
			END,
			expires_at = excluded.expires_at
		RETURNING value`

	getSQL = `SELECT value, expires_at FROM defense_counters WHERE counter_key = ?`

	setSQL = `INSERT INTO defense_counters (counter_key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(counter_key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`

	removeSQL = `DELETE FROM defense_counters WHERE counter_key = ?`

	sweepSQL = `DELETE FROM defense_counters WHERE expires_at != 0 AND expires_at <= ?`
)

// SQLStore implements defense.CounterStore on a single SQL table.
//
// Increase and Decrease are one upsert statement each, which makes them
// atomic on SQLite. Expired rows read as absent and are physically removed
// by Sweep.
type SQLStore struct {
	db   *sql.DB
	opts options
}

var _ defense.CounterStore = (*SQLStore)(nil)

// NewSQL creates a SQLStore over db. Call Migrate before first use.
func NewSQL(db *sql.DB, opts ...Option) *SQLStore {
	return &SQLStore{db: db, opts: newOptions(opts)}
}

// OpenSQLite opens (or creates) the SQLite database at dsn and migrates it.
//
// Example:
//
//	st, err := store.OpenSQLite(ctx, "file:defense.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := NewSQL(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the counters table when missing.
func (s *SQLStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create defense_counters: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Increase adds step to the counter at key and refreshes its TTL.
func (s *SQLStore) Increase(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(ctx, "increase", key, step, timeout)
}

// Decrease subtracts step from the counter at key and refreshes its TTL.
func (s *SQLStore) Decrease(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error) {
	if err := defense.ValidateStep(step); err != nil {
		return 0, err
	}
	return s.add(ctx, "decrease", key, -step, timeout)
}

func (s *SQLStore) add(ctx context.Context, op, key string, delta int64, timeout time.Duration) (int64, error) {
	now := s.opts.now()
	row := s.db.QueryRowContext(ctx, addSQL, s.opts.key(key), delta, unixNano(s.opts.expiry(now, timeout)), now.UnixNano())

	var value int64
	if err := row.Scan(&value); err != nil {
		return 0, classifySQL(ctx, op, key, err)
	}
	return value, nil
}

// Get returns the counter at key, or ok == false when it is missing or expired.
func (s *SQLStore) Get(ctx context.Context, key string) (int64, bool, error) {
	var value, expiresAt int64
	err := s.db.QueryRowContext(ctx, getSQL, s.opts.key(key)).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classifySQL(ctx, "get", key, err)
	}

	if expiresAt != 0 && expiresAt <= s.opts.now().UnixNano() {
		return 0, false, nil
	}
	return value, true, nil
}

// Set overwrites the counter at key and applies timeout.
func (s *SQLStore) Set(ctx context.Context, key string, value int64, timeout time.Duration) error {
	expiresAt := unixNano(s.opts.expiry(s.opts.now(), timeout))
	if _, err := s.db.ExecContext(ctx, setSQL, s.opts.key(key), value, expiresAt); err != nil {
		return classifySQL(ctx, "set", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *SQLStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, removeSQL, s.opts.key(key)); err != nil {
		return classifySQL(ctx, "remove", key, err)
	}
	return nil
}

// Sweep deletes expired rows and returns how many were removed.
func (s *SQLStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, sweepSQL, s.opts.now().UnixNano())
	if err != nil {
		return 0, classifySQL(ctx, "sweep", "", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classifySQL(ctx, "sweep", "", err)
	}
	return n, nil
}

// RunSweeper calls Sweep every interval until ctx is done. Sweep failures
// are ignored; the next tick retries.
func (s *SQLStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// classifySQL maps database/sql failures onto backend error kinds. Scan
// conversion failures are protocol errors, everything else is treated as
// the database being unavailable. A cancellation by the caller is returned
// as is.
func classifySQL(ctx context.Context, op, key string, err error) error {
	if canceledByCaller(ctx, err) {
		return err
	}
	if isScanError(err) {
		return defense.NewBackendError(defense.KindProtocol, op, key, err)
	}
	return defense.NewBackendError(defense.KindUnavailable, op, key, err)
}

// database/sql reports conversion failures as plain fmt errors prefixed "sql: Scan error".
func isScanError(err error) bool {
	return strings.HasPrefix(err.Error(), "sql: Scan error")
}
