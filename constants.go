package main

// Guess outcome status values returned to the client
const (
	StatusWin      = "win"
	StatusLose     = "lose"
	StatusContinue = "continue"
	StatusWarning  = "warning"
	StatusError    = "error"
)

// Session configuration constants
const (
	SessionCookieName = "guessit_session"
	MaxUsernameLength = 12
)

// Route constants
const (
	RouteHome        = "/"
	RouteLogin       = "/api/login"
	RouteDifficulty  = "/api/difficulty"
	RouteStart       = "/api/start"
	RouteGuess       = "/api/guess"
	RouteLeaderboard = "/api/leaderboard"
	RouteStats       = "/api/stats"
	RouteLogout      = "/logout"
	RouteHealth      = "/healthz"
)

// Error kind labels used in the {error, message} response body
const (
	ErrKindValidation = "Validation Error"
	ErrKindState      = "State Error"
	ErrKindSecurity   = "Security Error"
	ErrKindAuth       = "Unauthorized"
	ErrKindServer     = "Server Error"
)

// Error message constants
const (
	ErrorInvalidUsername   = "Invalid username."
	ErrorInvalidDifficulty = "Invalid difficulty"
	ErrorInvalidNumber     = "Invalid number."
	ErrorGameNotStarted    = "Game not started"
	ErrorInvalidToken      = "Invalid Session Token."
	ErrorUnexpected        = "An unexpected error occurred."
)

// Special title granted to the current rank-1 player, overriding
// normal threshold resolution.
const TitleTheOne = "THE ONE"

// Context key constants
const (
	requestIDKey contextKey = "request_id"
	sessionKey              = "guessit_session_state"
)

type contextKey string
