package main

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func playingSession(t *testing.T, app *App, difficulty string, target int) *Session {
	t.Helper()
	token, err := app.Codec.Seal(target)
	if err != nil {
		t.Fatalf("Seal(%d): %v", target, err)
	}
	return &Session{
		Username:    TestUserPlayer,
		Difficulty:  difficulty,
		OfflineMode: true,
		Game: &ActiveGame{
			SecretToken:  token,
			GuessHistory: []int{},
		},
	}
}

// TestDrawTargetInRange checks the draw stays inside [1, max] for
// every difficulty.
func TestDrawTargetInRange(t *testing.T) {
	for name, settings := range DifficultySettings {
		for range 200 {
			n := drawTarget(settings.MaxNumber)
			if n < 1 || n > settings.MaxNumber {
				t.Fatalf("%s: drew %d, want within [1, %d]", name, n, settings.MaxNumber)
			}
		}
	}
}

// TestStartGameSealsTarget checks start produces a playing session
// whose sealed target is in range.
func TestStartGameSealsTarget(t *testing.T) {
	app := newTestApp(t, nil)
	s := &Session{Username: TestUserPlayer, Difficulty: "hard", OfflineMode: true}

	settings, err := app.startGame(s)
	if err != nil {
		t.Fatalf("startGame: %v", err)
	}
	if settings.MaxNumber != 1000 {
		t.Errorf("hard max_number = %d, want 1000", settings.MaxNumber)
	}
	if !s.Playing() {
		t.Fatal("session is not playing after start")
	}
	if s.Game.AttemptsUsed != 0 || len(s.Game.GuessHistory) != 0 {
		t.Errorf("fresh game has attempts=%d history=%d, want zero", s.Game.AttemptsUsed, len(s.Game.GuessHistory))
	}
	if s.Game.StartedAt == 0 {
		t.Error("fresh game has no start timestamp")
	}
	target, err := app.Codec.Unseal(s.Game.SecretToken)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if target < 1 || target > settings.MaxNumber {
		t.Errorf("sealed target %d outside [1, %d]", target, settings.MaxNumber)
	}
}

// TestStartGameForfeitsActive checks re-starting while playing
// records exactly one zero-point loss first.
func TestStartGameForfeitsActive(t *testing.T) {
	app := newTestApp(t, nil)
	s := &Session{Username: TestUserPlayer, Difficulty: "easy", OfflineMode: true}

	if _, err := app.startGame(s); err != nil {
		t.Fatalf("first startGame: %v", err)
	}
	if _, err := app.startGame(s); err != nil {
		t.Fatalf("second startGame: %v", err)
	}
	if s.TotalGames != 1 {
		t.Errorf("total_games = %d after forfeit, want 1", s.TotalGames)
	}
	if s.Points != 0 || s.CorrectGuesses != 0 {
		t.Errorf("forfeit changed points=%d correct=%d, want zero", s.Points, s.CorrectGuesses)
	}
	if !s.Playing() {
		t.Error("session should be playing after the restart")
	}
}

// TestEvaluateGuessWin checks a correct guess awards exactly the
// configured reward and collapses back to idle.
func TestEvaluateGuessWin(t *testing.T) {
	app := newTestApp(t, nil)
	s := playingSession(t, app, "easy", 5)

	outcome, err := app.evaluateGuess(s, 5)
	if err != nil {
		t.Fatalf("evaluateGuess: %v", err)
	}
	if outcome.Status != StatusWin {
		t.Fatalf("status = %s, want %s", outcome.Status, StatusWin)
	}
	if outcome.PointsAwarded != 3 {
		t.Errorf("awarded %d points, want 3", outcome.PointsAwarded)
	}
	if s.Points != 3 || s.TotalGames != 1 || s.CorrectGuesses != 1 {
		t.Errorf("mirror after win = {%d %d %d}, want {3 1 1}", s.Points, s.TotalGames, s.CorrectGuesses)
	}
	if s.Playing() {
		t.Error("session still playing after win")
	}

	// A retry after the terminal outcome is a state error, never a
	// second award.
	if _, err := app.evaluateGuess(s, 5); !errors.Is(err, ErrNoActiveGame) {
		t.Errorf("guess after win: got %v, want ErrNoActiveGame", err)
	}
	if s.Points != 3 {
		t.Errorf("points double-counted: %d", s.Points)
	}
}

// TestEvaluateGuessOutOfRange checks out-of-range guesses warn
// without consuming an attempt or touching state.
func TestEvaluateGuessOutOfRange(t *testing.T) {
	app := newTestApp(t, nil)
	s := playingSession(t, app, "easy", 5)

	for _, guess := range []int{0, -3, 11, 99999} {
		outcome, err := app.evaluateGuess(s, guess)
		if err != nil {
			t.Fatalf("evaluateGuess(%d): %v", guess, err)
		}
		if outcome.Status != StatusWarning {
			t.Errorf("guess %d: status = %s, want %s", guess, outcome.Status, StatusWarning)
		}
	}
	if s.Game.AttemptsUsed != 0 || len(s.Game.GuessHistory) != 0 {
		t.Errorf("warnings consumed attempts=%d history=%d", s.Game.AttemptsUsed, len(s.Game.GuessHistory))
	}
	if !s.Playing() {
		t.Error("warning changed game state")
	}
}

// TestEvaluateGuessDirectionalHints checks the higher/lower hint and
// the attempt countdown.
func TestEvaluateGuessDirectionalHints(t *testing.T) {
	app := newTestApp(t, nil)
	s := playingSession(t, app, "medium", 50)

	outcome, err := app.evaluateGuess(s, 10)
	if err != nil {
		t.Fatalf("evaluateGuess: %v", err)
	}
	if outcome.Status != StatusContinue || !strings.Contains(outcome.Message, "Higher") {
		t.Errorf("low guess: got %q (%s), want Higher hint", outcome.Message, outcome.Status)
	}
	if outcome.AttemptsLeft != 7 {
		t.Errorf("attempts_left = %d, want 7", outcome.AttemptsLeft)
	}

	outcome, err = app.evaluateGuess(s, 80)
	if err != nil {
		t.Fatalf("evaluateGuess: %v", err)
	}
	if !strings.Contains(outcome.Message, "Lower") {
		t.Errorf("high guess: got %q, want Lower hint", outcome.Message)
	}
	if got := len(s.Game.GuessHistory); got != 2 {
		t.Errorf("history length = %d, want 2", got)
	}
}

// TestEvaluateGuessExhaustsAttempts checks the attempt budget ends
// the game with a loss, never a continue.
func TestEvaluateGuessExhaustsAttempts(t *testing.T) {
	app := newTestApp(t, nil)
	s := playingSession(t, app, "easy", 5) // 3 attempts

	for i, guess := range []int{1, 2} {
		outcome, err := app.evaluateGuess(s, guess)
		if err != nil {
			t.Fatalf("guess %d: %v", i, err)
		}
		if outcome.Status != StatusContinue {
			t.Fatalf("guess %d: status = %s, want %s", i, outcome.Status, StatusContinue)
		}
	}

	outcome, err := app.evaluateGuess(s, 3)
	if err != nil {
		t.Fatalf("final guess: %v", err)
	}
	if outcome.Status != StatusLose {
		t.Fatalf("status after exhausting attempts = %s, want %s", outcome.Status, StatusLose)
	}
	if s.Points != 0 || s.TotalGames != 1 || s.CorrectGuesses != 0 {
		t.Errorf("mirror after loss = {%d %d %d}, want {0 1 0}", s.Points, s.TotalGames, s.CorrectGuesses)
	}
	if s.Playing() {
		t.Error("session still playing after loss")
	}
}

// TestEvaluateGuessNoGame checks guessing while idle is a state error.
func TestEvaluateGuessNoGame(t *testing.T) {
	app := newTestApp(t, nil)
	s := &Session{Username: TestUserPlayer, Difficulty: "easy", OfflineMode: true}
	if _, err := app.evaluateGuess(s, 1); !errors.Is(err, ErrNoActiveGame) {
		t.Errorf("got %v, want ErrNoActiveGame", err)
	}
}

// TestEvaluateGuessTamperedToken checks a forged token terminates the
// game without recording a score.
func TestEvaluateGuessTamperedToken(t *testing.T) {
	app := newTestApp(t, nil)
	s := playingSession(t, app, "easy", 5)
	s.Game.SecretToken = "bm90LWEtcmVhbC10b2tlbg"

	_, err := app.evaluateGuess(s, 5)
	if !errors.Is(err, ErrSecretCompromised) {
		t.Fatalf("got %v, want ErrSecretCompromised", err)
	}
	if s.Playing() {
		t.Error("compromised game was not invalidated")
	}
	if s.TotalGames != 0 || s.Points != 0 {
		t.Errorf("compromised game recorded a score: {%d %d}", s.Points, s.TotalGames)
	}
}

// TestRecordOutcomePersists checks the mirror updates synchronously
// and the store receives the same delta asynchronously.
func TestRecordOutcomePersists(t *testing.T) {
	store := newFakeStore()
	app := newTestApp(t, store)
	s := &Session{Username: TestUserPlayer, Difficulty: "easy"}

	app.recordOutcome(s, 20, true)
	if s.Points != 20 || s.TotalGames != 1 || s.CorrectGuesses != 1 {
		t.Fatalf("mirror = {%d %d %d}, want {20 1 1}", s.Points, s.TotalGames, s.CorrectGuesses)
	}

	if !waitFor(t, time.Second, func() bool { return store.stats(TestUserPlayer).Points == 20 }) {
		t.Fatalf("store never saw the score: %+v", store.stats(TestUserPlayer))
	}
}

// TestRecordOutcomeOfflineSkipsStore checks offline sessions never
// touch the writer.
func TestRecordOutcomeOfflineSkipsStore(t *testing.T) {
	store := newFakeStore()
	app := newTestApp(t, store)
	s := &Session{Username: TestUserPlayer, Difficulty: "easy", OfflineMode: true}

	app.recordOutcome(s, 10, true)
	if s.Points != 10 {
		t.Fatalf("mirror points = %d, want 10", s.Points)
	}
	time.Sleep(50 * time.Millisecond)
	if got := store.applied(); got != 0 {
		t.Errorf("offline outcome reached the store %d times", got)
	}
}
