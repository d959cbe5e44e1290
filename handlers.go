package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// apiError writes the uniform {error, message} body.
func apiError(c *gin.Context, status int, kind, message string) {
	c.JSON(status, gin.H{"error": kind, "message": message})
}

// indexHandler renders the game page. Re-entering the page while a
// game is running forfeits it, the same anti-cheat rule as a
// difficulty change or logout.
func (app *App) indexHandler(c *gin.Context) {
	s := app.currentSession(c)
	if s != nil && s.Playing() {
		app.forfeitIfActive(s)
		app.issueSession(c, s)
	}

	username := ""
	var title *string
	if s != nil && s.Username != "" {
		username = s.Username
		title = playerTitle(s.Points)
		if s.IsTheOne {
			theOne := TitleTheOne
			title = &theOne
		}
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"username": username,
		"title":    title,
		"titles":   Titles,
	})
}

// loginHandler starts a session for a username and hydrates its
// counters from the store. An unreachable store is not an error: the
// player continues in offline mode and nothing persists.
func (app *App) loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, ErrKindValidation, ErrorInvalidUsername)
		return
	}
	username := strings.TrimSpace(req.Username)
	if len(username) > MaxUsernameLength {
		username = username[:MaxUsernameLength]
	}
	if !validUsername(username) {
		apiError(c, http.StatusBadRequest, ErrKindValidation, ErrorInvalidUsername)
		return
	}

	// Re-login is an abandonment like logout or a page re-entry: a
	// game still running under the previous session is counted as a
	// loss before the session is replaced.
	if prior := app.currentSession(c); prior != nil {
		app.forfeitIfActive(prior)
	}

	s := &Session{
		Username:   username,
		Difficulty: DefaultDifficulty,
	}
	var title *string

	if app.Store == nil {
		s.OfflineMode = true
	} else {
		stats, err := app.Store.FetchPlayer(c.Request.Context(), username)
		switch {
		case err != nil:
			logger.Error().Err(err).Str("username", username).Msg("login stats fetch failed, continuing offline")
			s.OfflineMode = true
		case stats != nil:
			s.Points = stats.Points
			s.TotalGames = stats.TotalGames
			s.CorrectGuesses = stats.CorrectGuesses
			if app.Cache.IsTopPlayer(c.Request.Context(), app.Store, username, s.Points) {
				theOne := TitleTheOne
				title = &theOne
				s.IsTheOne = true
			} else {
				title = playerTitle(s.Points)
			}
		}
	}

	app.issueSession(c, s)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"points":  s.Points,
		"title":   title,
		"offline": s.OfflineMode,
	})
}

// difficultyHandler switches the active difficulty. A running game is
// forfeited when the switch goes through, so it cannot be used to
// dodge a loss. Validation runs first: a rejected request must not
// forfeit, because the 400 path issues no cookie and the client's
// session would still carry the game the store just counted.
func (app *App) difficultyHandler(c *gin.Context) {
	s := sessionFromContext(c)

	var req struct {
		Difficulty string `json:"difficulty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		apiError(c, http.StatusBadRequest, ErrKindValidation, ErrorInvalidDifficulty)
		return
	}
	settings, ok := DifficultySettings[req.Difficulty]
	if !ok {
		apiError(c, http.StatusBadRequest, ErrKindValidation, ErrorInvalidDifficulty)
		return
	}

	app.forfeitIfActive(s)
	s.Difficulty = req.Difficulty
	app.issueSession(c, s)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Difficulty set to " + capitalize(req.Difficulty) + ".",
		"max_number": settings.MaxNumber,
	})
}

// startHandler transitions the session into a fresh game.
func (app *App) startHandler(c *gin.Context) {
	s := sessionFromContext(c)
	settings, err := app.startGame(s)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start game")
		apiError(c, http.StatusInternalServerError, ErrKindServer, ErrorUnexpected)
		return
	}
	app.issueSession(c, s)
	c.JSON(http.StatusOK, gin.H{
		"message":    "Game Started!",
		"game_ready": true,
		"max_number": settings.MaxNumber,
	})
}

// guessHandler feeds one guess through the state machine and maps the
// outcome onto the wire format.
func (app *App) guessHandler(c *gin.Context) {
	s := sessionFromContext(c)
	if !s.Playing() {
		apiError(c, http.StatusBadRequest, ErrKindState, ErrorGameNotStarted)
		return
	}

	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": StatusError, "error": ErrKindValidation, "message": ErrorInvalidNumber})
		return
	}
	guess, err := parseGuessValue(req["guess"])
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": StatusError, "error": ErrKindValidation, "message": ErrorInvalidNumber})
		return
	}

	outcome, err := app.evaluateGuess(s, guess)
	switch {
	case errors.Is(err, ErrNoActiveGame):
		apiError(c, http.StatusBadRequest, ErrKindState, ErrorGameNotStarted)
		return
	case errors.Is(err, ErrSecretCompromised):
		// The game was invalidated; persist the cleared state.
		app.issueSession(c, s)
		apiError(c, http.StatusBadRequest, ErrKindSecurity, ErrorInvalidToken)
		return
	case err != nil:
		logger.Error().Err(err).Msg("guess evaluation failed")
		apiError(c, http.StatusInternalServerError, ErrKindServer, ErrorUnexpected)
		return
	}

	switch outcome.Status {
	case StatusWarning:
		c.JSON(http.StatusOK, gin.H{
			"status":        StatusWarning,
			"message":       outcome.Message,
			"attempts_left": outcome.AttemptsLeft,
		})

	case StatusWin:
		var newTitle *string
		if app.Cache.IsTopPlayer(c.Request.Context(), app.Store, s.Username, s.Points) {
			theOne := TitleTheOne
			newTitle = &theOne
			s.IsTheOne = true
		} else {
			newTitle = playerTitle(s.Points)
		}
		app.issueSession(c, s)
		c.JSON(http.StatusOK, gin.H{
			"status":     StatusWin,
			"message":    outcome.Message,
			"new_points": s.Points,
			"new_title":  newTitle,
		})

	case StatusLose:
		app.issueSession(c, s)
		c.JSON(http.StatusOK, gin.H{
			"status":  StatusLose,
			"message": outcome.Message,
		})

	default:
		app.issueSession(c, s)
		c.JSON(http.StatusOK, gin.H{
			"status":        StatusContinue,
			"message":       outcome.Message,
			"attempts_left": outcome.AttemptsLeft,
			"history":       outcome.History,
		})
	}
}

// leaderboardHandler serves the cached ranked snapshot. Within the
// TTL window repeated calls return the identical payload.
func (app *App) leaderboardHandler(c *gin.Context) {
	rows, err := app.Cache.Leaderboard(c.Request.Context(), app.Store, 100)
	if err != nil {
		// Marker, not a failure: the page shows "unavailable".
		c.JSON(http.StatusOK, gin.H{"error": "db_down"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// statsHandler reports the session's local mirror of the counters.
func (app *App) statsHandler(c *gin.Context) {
	s := sessionFromContext(c)
	var title *string
	if s.IsTheOne {
		theOne := TitleTheOne
		title = &theOne
	} else {
		title = playerTitle(s.Points)
	}
	c.JSON(http.StatusOK, gin.H{
		"points":          s.Points,
		"total_games":     s.TotalGames,
		"correct_guesses": s.CorrectGuesses,
		"title":           title,
		"offline":         s.OfflineMode,
	})
}

// logoutHandler forfeits a running game, then drops the session.
func (app *App) logoutHandler(c *gin.Context) {
	if s := app.currentSession(c); s != nil {
		app.forfeitIfActive(s)
	}
	app.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// healthzHandler returns a JSON health check with server stats.
func (app *App) healthzHandler(c *gin.Context) {
	uptime := time.Since(app.StartTime)
	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"env":              map[bool]string{true: "production", false: "development"}[app.Config.IsProduction],
		"difficulties":     len(DifficultySettings),
		"store_configured": app.Store != nil,
		"uptime":           formatUptime(uptime),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

// parseGuessValue coerces the JSON guess field into an integer.
// Accepts JSON numbers with no fractional part and numeric strings;
// everything else is a validation error.
func parseGuessValue(v any) (int, error) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, errors.New("guess is not an integer")
		}
		return int(val), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, errors.New("guess is not an integer")
		}
		return n, nil
	default:
		return 0, errors.New("guess is missing or not a number")
	}
}

// capitalize uppercases the first byte of an ASCII difficulty name.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
