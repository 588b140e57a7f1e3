package usage

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS usage_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    INTEGER NOT NULL,
		user_name  TEXT,
		kind       TEXT NOT NULL,
		amount     INTEGER NOT NULL DEFAULT 0,
		cost       REAL NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_events(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Add(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_events (user_id, user_name, kind, amount, cost, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.UserName, string(e.Kind), e.Amount, e.Cost, e.At.Unix(),
	)
	if err != nil {
		return fmt.Errorf("unable to record usage: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Sum(ctx context.Context, userID int64, from, to time.Time) (Totals, error) {
	lo, hi := int64(math.MinInt64), int64(math.MaxInt64)
	if !from.IsZero() {
		lo = from.Unix()
	}
	if !to.IsZero() {
		hi = to.Unix()
	}

	var (
		t      Totals
		tokens  int64
		images  int64
		seconds int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind = ? THEN amount ELSE 0 END), 0),
			COALESCE(SUM(cost), 0.0)
		 FROM usage_events
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?`,
		string(KindChatTokens), string(KindImages), string(KindTranscription), userID, lo, hi,
	).Scan(&tokens, &images, &seconds, &t.Cost)
	if err != nil {
		return Totals{}, fmt.Errorf("unable to sum usage: %w", err)
	}

	t.Tokens = int(tokens)
	t.Images = int(images)
	t.TranscriptionSeconds = int(seconds)
	return t, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
