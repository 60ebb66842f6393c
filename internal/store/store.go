// Package store persists finished calls, their turns, and the generated
// journal entries in Postgres.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/voice-diary-lab/internal/conversation"
	"github.com/voice-diary-lab/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a Postgres-backed journal store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres, applies pending migrations, and returns the
// store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if err := migrate(dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logging.Infow("journal store ready")
	return &Store{pool: pool}, nil
}

func migrate(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// SaveJournal records one finished call in a single transaction: the call
// row, its ordered non-system turns, and the journal entry.
func (s *Store) SaveJournal(ctx context.Context, callID string, convo *conversation.Context, entry conversation.DiaryEntry) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO calls (external_id, started_at, ended_at, transcript)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE
			SET ended_at = EXCLUDED.ended_at, transcript = EXCLUDED.transcript
		RETURNING id`,
		callID, convo.StartedAt, time.Now().UTC(), convo.Transcript(),
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}

	seq := 0
	for _, t := range convo.Turns() {
		if t.Role == conversation.RoleSystem {
			continue
		}
		seq++
		if _, err := tx.Exec(ctx, `
			INSERT INTO turns (call_id, seq, role, content, spoken_at)
			VALUES ($1, $2, $3, $4, $5)`,
			id, seq, t.Role, t.Content, t.Timestamp,
		); err != nil {
			return fmt.Errorf("insert turn %d: %w", seq, err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO journals (call_id, title, body, mood, key_points, gratitude_items,
		                      follow_up_intention, topics, sentiment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, entry.Title, entry.Body, entry.Mood, entry.KeyPoints, entry.GratitudeItems,
		entry.FollowUpIntention, entry.Topics, entry.Sentiment,
	); err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logging.Infow("journal saved", "call.id", callID, "turns", seq)
	return nil
}
