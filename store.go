package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable marks a backing store that is not configured or
// not reachable. Callers degrade to offline mode instead of failing.
var ErrStoreUnavailable = errors.New("score store unavailable")

// ScoreStore is the shared persistence surface: aggregate stats per
// username, upserted by unique key and queryable in rank order.
type ScoreStore interface {
	// FetchPlayer returns the persisted aggregate for a username, or
	// (nil, nil) when the player has never saved a score.
	FetchPlayer(ctx context.Context, username string) (*PlayerStats, error)
	// ApplyScore adds a finished game to a player's aggregate.
	ApplyScore(ctx context.Context, username string, pointsDelta int, won bool) error
	// TopPlayers returns up to limit players ranked by points descending.
	TopPlayers(ctx context.Context, limit int) ([]PlayerStats, error)
}

// PostgresStore backs the leaderboard with a Postgres pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and bootstraps the schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.ensureSchema(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (ps *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := ps.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leaderboard (
			username        TEXT PRIMARY KEY,
			points          BIGINT NOT NULL DEFAULT 0,
			total_games     BIGINT NOT NULL DEFAULT 0,
			correct_guesses BIGINT NOT NULL DEFAULT 0
		)`)
	if err != nil {
		return fmt.Errorf("creating leaderboard table: %w", err)
	}
	return nil
}

// FetchPlayer loads one aggregate row.
func (ps *PostgresStore) FetchPlayer(ctx context.Context, username string) (*PlayerStats, error) {
	var stats PlayerStats
	err := ps.pool.QueryRow(ctx,
		`SELECT username, points, total_games, correct_guesses FROM leaderboard WHERE username = $1`,
		username,
	).Scan(&stats.Username, &stats.Points, &stats.TotalGames, &stats.CorrectGuesses)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching player %s: %w", username, err)
	}
	return &stats, nil
}

// ApplyScore folds one finished game into the aggregate. This is a
// read-modify-write with no distributed lock: two concurrent games by
// the same user can race the window and the last write wins. Accepted
// weakness, the counters are best-effort.
func (ps *PostgresStore) ApplyScore(ctx context.Context, username string, pointsDelta int, won bool) error {
	current, err := ps.FetchPlayer(ctx, username)
	if err != nil {
		return err
	}
	next := PlayerStats{Username: username}
	if current != nil {
		next = *current
	}
	next.Points += pointsDelta
	next.TotalGames++
	if won {
		next.CorrectGuesses++
	}

	_, err = ps.pool.Exec(ctx, `
		INSERT INTO leaderboard (username, points, total_games, correct_guesses)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET
			points = EXCLUDED.points,
			total_games = EXCLUDED.total_games,
			correct_guesses = EXCLUDED.correct_guesses`,
		next.Username, next.Points, next.TotalGames, next.CorrectGuesses)
	if err != nil {
		return fmt.Errorf("upserting score for %s: %w", username, err)
	}
	return nil
}

// TopPlayers runs the ranked query behind the leaderboard cache.
func (ps *PostgresStore) TopPlayers(ctx context.Context, limit int) ([]PlayerStats, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT username, points, total_games, correct_guesses FROM leaderboard ORDER BY points DESC, username ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var players []PlayerStats
	for rows.Next() {
		var stats PlayerStats
		if err := rows.Scan(&stats.Username, &stats.Points, &stats.TotalGames, &stats.CorrectGuesses); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		players = append(players, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading leaderboard rows: %w", err)
	}
	return players, nil
}

// Close releases the pool.
func (ps *PostgresStore) Close() {
	ps.pool.Close()
}
