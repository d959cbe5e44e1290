package main

import (
	"context"
	"time"
)

// scoreUpdate is one finished game waiting to be folded into the
// shared store.
type scoreUpdate struct {
	Username string
	Points   int
	Won      bool
}

// ScoreWriter applies score updates to the store off the request
// path. A bounded channel plus a single worker replaces a goroutine
// per write, so a burst of wins cannot fan out into unbounded
// concurrent store calls. Writes are at-most-once: a full queue drops
// the update, a failed write is logged and never retried.
type ScoreWriter struct {
	store   ScoreStore
	queue   chan scoreUpdate
	done    chan struct{}
	timeout time.Duration
}

// NewScoreWriter starts the background worker.
func NewScoreWriter(store ScoreStore, queueSize int) *ScoreWriter {
	if queueSize <= 0 {
		queueSize = 1
	}
	sw := &ScoreWriter{
		store:   store,
		queue:   make(chan scoreUpdate, queueSize),
		done:    make(chan struct{}),
		timeout: 5 * time.Second,
	}
	go sw.run()
	return sw
}

// Enqueue hands a finished game to the worker without blocking the
// response. Returns false when the update was dropped.
func (sw *ScoreWriter) Enqueue(u scoreUpdate) bool {
	select {
	case sw.queue <- u:
		return true
	default:
		logger.Warn().Str("username", u.Username).Int("points", u.Points).Msg("score queue full, dropping update")
		return false
	}
}

func (sw *ScoreWriter) run() {
	defer close(sw.done)
	for u := range sw.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sw.timeout)
		err := sw.store.ApplyScore(ctx, u.Username, u.Points, u.Won)
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("username", u.Username).Msg("background score save failed")
			continue
		}
		logger.Debug().Str("username", u.Username).Int("points", u.Points).Bool("won", u.Won).Msg("score saved")
	}
}

// Stop drains the queue and waits for the worker to finish. Updates
// still in flight when the process dies anyway are simply lost.
func (sw *ScoreWriter) Stop() {
	close(sw.queue)
	select {
	case <-sw.done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("score writer did not drain in time")
	}
}
