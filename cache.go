package main

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
)

// RankCache is the process-wide, time-bounded snapshot of the
// leaderboard and of the current top player. Many requests read it,
// few refresh it; last write wins. Staleness inside the TTL window is
// a product property, not a bug.
type RankCache struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	board        []LeaderboardRow
	boardFetched time.Time

	topUser    string
	topPoints  int
	topFetched time.Time
}

// NewRankCache builds an empty cache with the given TTL.
func NewRankCache(ttl time.Duration) *RankCache {
	return &RankCache{ttl: ttl, now: time.Now}
}

// Leaderboard serves the ranked snapshot, refreshing from the store
// when the TTL has lapsed. Within the TTL window the exact same
// rendered rows are returned even if the store's data changed. On an
// unreachable store the last good snapshot is served if there is one;
// otherwise ErrStoreUnavailable is returned for the caller to render
// as a marker, not a failure.
func (rc *RankCache) Leaderboard(ctx context.Context, store ScoreStore, limit int) ([]LeaderboardRow, error) {
	rc.mu.Lock()
	if rc.board != nil && rc.now().Sub(rc.boardFetched) < rc.ttl {
		board := rc.board
		rc.mu.Unlock()
		return board, nil
	}
	rc.mu.Unlock()

	if store == nil {
		return rc.staleBoard()
	}
	players, err := store.TopPlayers(ctx, limit)
	if err != nil {
		logger.Warn().Err(err).Msg("leaderboard refresh failed, serving stale snapshot if any")
		return rc.staleBoard()
	}

	board := lo.Map(players, func(p PlayerStats, rank int) LeaderboardRow {
		title := playerTitle(p.Points)
		if rank == 0 {
			theOne := TitleTheOne
			title = &theOne
		}
		return LeaderboardRow{Username: p.Username, Points: p.Points, Title: title}
	})

	rc.mu.Lock()
	rc.board = board
	rc.boardFetched = rc.now()
	// A full fetch's first row doubles as a fresh top-player observation.
	if len(players) > 0 {
		rc.topUser = players[0].Username
		rc.topPoints = players[0].Points
		rc.topFetched = rc.boardFetched
	}
	rc.mu.Unlock()
	return board, nil
}

func (rc *RankCache) staleBoard() ([]LeaderboardRow, error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.board != nil {
		return rc.board, nil
	}
	return nil, ErrStoreUnavailable
}

// IsTopPlayer reports whether the named player currently holds rank 1.
// A user whose locally-known points exceed the cached top score is
// treated as provisionally the one: an optimistic read that masks
// propagation lag of the async score writes. Eventual-consistency
// compromise, not a correctness guarantee; ties resolve to the cached
// holder.
func (rc *RankCache) IsTopPlayer(ctx context.Context, store ScoreStore, username string, knownPoints int) bool {
	rc.mu.Lock()
	fresh := rc.topUser != "" && rc.now().Sub(rc.topFetched) < rc.ttl
	topUser, topPoints := rc.topUser, rc.topPoints
	rc.mu.Unlock()

	if fresh {
		if knownPoints > topPoints {
			return true
		}
		return topUser == username
	}

	if store == nil {
		return false
	}
	players, err := store.TopPlayers(ctx, 1)
	if err != nil {
		logger.Warn().Err(err).Msg("top player refresh failed")
		if topUser != "" {
			return topUser == username || knownPoints > topPoints
		}
		return false
	}
	if len(players) == 0 {
		return false
	}

	rc.mu.Lock()
	rc.topUser = players[0].Username
	rc.topPoints = players[0].Points
	rc.topFetched = rc.now()
	rc.mu.Unlock()

	if knownPoints > players[0].Points {
		return true
	}
	return players[0].Username == username
}
