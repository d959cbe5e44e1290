package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrNoActiveGame is the state error for a guess without a started game.
var ErrNoActiveGame = errors.New("game not started")

// ErrSecretCompromised is returned when the session's sealed token no
// longer verifies. The game cannot be trusted and is terminated.
var ErrSecretCompromised = errors.New("session secret token failed verification")

// difficultyFor resolves the session's active difficulty setting,
// falling back to the default for unknown values.
func difficultyFor(s *Session) DifficultySetting {
	if settings, ok := DifficultySettings[s.Difficulty]; ok {
		return settings
	}
	return DifficultySettings[DefaultDifficulty]
}

// drawTarget draws a uniform random integer in [1, max].
func drawTarget(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		logger.Warn().Err(err).Msg("error drawing random target, using fallback")
		return 1
	}
	return int(n.Int64()) + 1
}

// recordOutcome finishes a game: the session mirror is bumped
// synchronously so the very next response sees it, then the same
// delta is handed to the background writer. Offline sessions skip
// persistence entirely.
func (app *App) recordOutcome(s *Session, pointsDelta int, won bool) {
	s.Points += pointsDelta
	s.TotalGames++
	if won {
		s.CorrectGuesses++
	}
	if app.Scores != nil && !s.OfflineMode {
		app.Scores.Enqueue(scoreUpdate{Username: s.Username, Points: pointsDelta, Won: won})
	}
}

// forfeitIfActive records an abandoned game as a zero-point loss and
// drops back to idle. No-op when idle.
func (app *App) forfeitIfActive(s *Session) {
	if !s.Playing() {
		return
	}
	logger.Info().Str("username", s.Username).Msg("active game forfeited")
	app.recordOutcome(s, 0, false)
	s.Game = nil
}

// startGame transitions idle -> playing. A still-running game is
// forfeited first, then a fresh target is drawn and sealed.
func (app *App) startGame(s *Session) (DifficultySetting, error) {
	app.forfeitIfActive(s)

	settings := difficultyFor(s)
	target := drawTarget(settings.MaxNumber)
	token, err := app.Codec.Seal(target)
	if err != nil {
		return settings, fmt.Errorf("sealing target number: %w", err)
	}
	s.Game = &ActiveGame{
		SecretToken:  token,
		AttemptsUsed: 0,
		StartedAt:    time.Now().Unix(),
		GuessHistory: []int{},
	}
	return settings, nil
}

// evaluateGuess runs one guess through the state machine. Terminal
// outcomes collapse the session back to idle; the outcome payload is
// the only trace of them.
func (app *App) evaluateGuess(s *Session, guess int) (GuessOutcome, error) {
	if !s.Playing() {
		return GuessOutcome{}, ErrNoActiveGame
	}
	settings := difficultyFor(s)

	// Out-of-range guesses are a warning: no attempt consumed, no
	// state change.
	if guess < 1 || guess > settings.MaxNumber {
		return GuessOutcome{
			Status:       StatusWarning,
			Message:      fmt.Sprintf("Pick a number between 1 and %d.", settings.MaxNumber),
			AttemptsLeft: settings.MaxAttempts - s.Game.AttemptsUsed,
			History:      s.Game.GuessHistory,
		}, nil
	}

	target, err := app.Codec.Unseal(s.Game.SecretToken)
	if err != nil {
		// Forged or foreign token: trust in this game is gone.
		logger.Warn().Str("username", s.Username).Msg("security alert: invalid secret token in session")
		s.Game = nil
		return GuessOutcome{}, ErrSecretCompromised
	}

	s.Game.GuessHistory = append(s.Game.GuessHistory, guess)
	s.Game.AttemptsUsed++

	switch {
	case guess == target:
		elapsed := time.Now().Unix() - s.Game.StartedAt
		app.recordOutcome(s, settings.Points, true)
		s.Game = nil
		return GuessOutcome{
			Status:        StatusWin,
			Message:       fmt.Sprintf("✅ The number was %d (%ds).", target, elapsed),
			PointsAwarded: settings.Points,
			Won:           true,
			Finished:      true,
		}, nil

	case s.Game.AttemptsUsed >= settings.MaxAttempts:
		app.recordOutcome(s, 0, false)
		s.Game = nil
		return GuessOutcome{
			Status:   StatusLose,
			Message:  fmt.Sprintf("❌ Game Over! The number was %d.", target),
			Finished: true,
		}, nil

	default:
		direction := "⬆️ Higher"
		if guess > target {
			direction = "⬇️ Lower"
		}
		return GuessOutcome{
			Status:       StatusContinue,
			Message:      "❌ Wrong. " + direction,
			AttemptsLeft: settings.MaxAttempts - s.Game.AttemptsUsed,
			History:      s.Game.GuessHistory,
		}, nil
	}
}
