package throttle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS throttle (
	key         TEXT PRIMARY KEY,
	last_action INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_writes (
	day     TEXT NOT NULL,
	subject TEXT NOT NULL,
	count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (day, subject)
);`

// SQLiteStore persists throttle state in a SQLite file so cooldowns and
// quotas survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open throttle db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize throttle schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LastAction implements Store.
func (s *SQLiteStore) LastAction(ctx context.Context, key string) (time.Time, bool, error) {
	var nanos int64
	err := s.db.QueryRowContext(ctx, `SELECT last_action FROM throttle WHERE key = ?`, key).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos), true, nil
}

// MarkAction implements Store.
func (s *SQLiteStore) MarkAction(ctx context.Context, key string, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO throttle (key, last_action) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET last_action = MAX(last_action, excluded.last_action)`,
		key, t.UnixNano())
	return err
}

// DailyCount implements Store.
func (s *SQLiteStore) DailyCount(ctx context.Context, day, subject string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM daily_writes WHERE day = ? AND subject = ?`, day, subject).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// IncrementDaily implements Store.
func (s *SQLiteStore) IncrementDaily(ctx context.Context, day, subject string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM daily_writes WHERE day < ?`, day); err != nil {
		return 0, err
	}
	var n int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO daily_writes (day, subject, count) VALUES (?, ?, 1)
		ON CONFLICT(day, subject) DO UPDATE SET count = count + 1
		RETURNING count`, day, subject).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
