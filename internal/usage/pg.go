package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// openEnd bounds open time ranges in Postgres queries.
var openEnd = time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)

// PGStore implements Store on Postgres. The pool is owned by the caller.
type PGStore struct {
	conn *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{conn: pool}
}

// Migrate creates the usage table if needed.
func (s *PGStore) Migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS usage_events (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL,
		user_name  TEXT,
		kind       TEXT NOT NULL,
		amount     INTEGER NOT NULL DEFAULT 0,
		cost       DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_events(user_id, created_at);
	`

	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("usage migration failed: %w", err)
	}
	return nil
}

func (s *PGStore) Add(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	query := `INSERT INTO usage_events (user_id, user_name, kind, amount, cost, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.conn.Exec(ctx, query, e.UserID, e.UserName, string(e.Kind), e.Amount, e.Cost, e.At); err != nil {
		return fmt.Errorf("unable to record usage: %w", err)
	}
	return nil
}

func (s *PGStore) Sum(ctx context.Context, userID int64, from, to time.Time) (Totals, error) {
	if to.IsZero() {
		to = openEnd
	}

	query := `SELECT
			COALESCE(SUM(CASE WHEN kind = $2 THEN amount ELSE 0 END), 0)::bigint,
			COALESCE(SUM(CASE WHEN kind = $3 THEN amount ELSE 0 END), 0)::bigint,
			COALESCE(SUM(CASE WHEN kind = $4 THEN amount ELSE 0 END), 0)::bigint,
			COALESCE(SUM(cost), 0)::float8
		FROM usage_events
		WHERE user_id = $1 AND created_at >= $5 AND created_at < $6`

	var (
		t       Totals
		tokens  int64
		images  int64
		seconds int64
	)
	err := s.conn.QueryRow(ctx, query, userID,
		string(KindChatTokens), string(KindImages), string(KindTranscription), from, to).
		Scan(&tokens, &images, &seconds, &t.Cost)
	if err != nil {
		return Totals{}, fmt.Errorf("unable to sum usage: %w", err)
	}

	t.Tokens = int(tokens)
	t.Images = int(images)
	t.TranscriptionSeconds = int(seconds)
	return t, nil
}

// Close is a no-op, the pool is closed by its owner.
func (s *PGStore) Close() error {
	return nil
}
