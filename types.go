package main

// ActiveGame is the in-progress game record carried inside a session.
// Present iff the state machine is in the playing state. The target
// number itself never appears here, only its sealed token.
type ActiveGame struct {
	SecretToken  string `json:"secret_token"`
	AttemptsUsed int    `json:"attempts_used"`
	StartedAt    int64  `json:"started_at"` // unix seconds
	GuessHistory []int  `json:"guess_history"`
}

// Session is the per-player state carried in the signed session
// cookie. The counters are an optimistic local mirror of the
// persisted aggregate stats.
type Session struct {
	Username       string      `json:"username"`
	Points         int         `json:"points"`
	TotalGames     int         `json:"total_games"`
	CorrectGuesses int         `json:"correct_guesses"`
	Difficulty     string      `json:"difficulty"`
	IsTheOne       bool        `json:"is_the_one"`
	OfflineMode    bool        `json:"offline_mode"`
	Game           *ActiveGame `json:"game,omitempty"`
}

// Playing reports whether a game is in progress.
func (s *Session) Playing() bool {
	return s.Game != nil
}

// DifficultySetting maps a difficulty name to its number range,
// attempt budget and win reward.
type DifficultySetting struct {
	MaxNumber   int `json:"max_number"`
	MaxAttempts int `json:"max_attempts"`
	Points      int `json:"points"`
}

// TitleThreshold is one rung of the points-to-title ladder.
type TitleThreshold struct {
	Name      string `json:"name"`
	MinPoints int    `json:"min_points"`
}

// PlayerStats is the persisted aggregate row for one username.
type PlayerStats struct {
	Username       string `json:"username"`
	Points         int    `json:"points"`
	TotalGames     int    `json:"total_games"`
	CorrectGuesses int    `json:"correct_guesses"`
}

// LeaderboardRow is one rendered leaderboard entry as served to
// clients, title already resolved.
type LeaderboardRow struct {
	Username string  `json:"username"`
	Points   int     `json:"points"`
	Title    *string `json:"title"`
}

// GuessOutcome is the state machine's answer to a single guess.
type GuessOutcome struct {
	Status        string
	Message       string
	AttemptsLeft  int
	History       []int
	PointsAwarded int
	Won           bool
	Finished      bool
}
