package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"
)

// DifficultySettings is the static table of playable difficulties.
var DifficultySettings = map[string]DifficultySetting{
	"easy":       {MaxNumber: 10, MaxAttempts: 3, Points: 3},
	"medium":     {MaxNumber: 100, MaxAttempts: 8, Points: 10},
	"hard":       {MaxNumber: 1000, MaxAttempts: 15, Points: 20},
	"impossible": {MaxNumber: 100000, MaxAttempts: 25, Points: 45},
	"million":    {MaxNumber: 1000000, MaxAttempts: 50, Points: 150},
}

// DefaultDifficulty is used for fresh sessions.
const DefaultDifficulty = "easy"

// Titles is the points ladder, ordered ascending by threshold.
var Titles = []TitleThreshold{
	{Name: "Newbie", MinPoints: 100},
	{Name: "Rookie", MinPoints: 500},
	{Name: "Pro", MinPoints: 2500},
	{Name: "Legend", MinPoints: 5000},
	{Name: "Champion", MinPoints: 10000},
}

// playerTitle resolves the highest title whose threshold the given
// points meet. Below the lowest rung there is no title at all.
func playerTitle(points int) *string {
	for i := len(Titles) - 1; i >= 0; i-- {
		if points >= Titles[i].MinPoints {
			return &Titles[i].Name
		}
	}
	return nil
}

// Config is the process-wide configuration, loaded from the
// environment once at startup.
type Config struct {
	Port         string
	IsProduction bool

	SessionSecret  []byte
	EncryptionKey  []byte
	SessionTimeout time.Duration
	CookieMaxAge   time.Duration

	DatabaseURL string

	CacheTTL       time.Duration
	RateLimitRPS   int
	RateLimitBurst int
	ScoreQueueSize int
}

// errMissingEncryptionKey aborts startup in production; development
// falls back to an ephemeral key with a loud warning.
var errMissingEncryptionKey = errors.New("GUESS_ENCRYPTION_KEY is not set")

// loadConfig reads the configuration from the environment. godotenv
// is expected to have been loaded by the caller.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnvString("PORT", "8080"),
		IsProduction:   os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production",
		SessionTimeout: getEnvDuration("SESSION_TIMEOUT", 2*time.Hour),
		CookieMaxAge:   getEnvDuration("COOKIE_MAX_AGE", 2*time.Hour),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		CacheTTL:       getEnvDuration("CACHE_TTL", 60*time.Second),
		RateLimitRPS:   getEnvInt("RATE_LIMIT_RPS", 3),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 6),
		ScoreQueueSize: getEnvInt("SCORE_QUEUE_SIZE", 64),
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		if cfg.IsProduction {
			return nil, errors.New("SESSION_SECRET is not set")
		}
		logger.Warn().Msg("SESSION_SECRET not set, generating an ephemeral one; sessions will not survive a restart")
		secret = base64.StdEncoding.EncodeToString(randomKey())
	}
	cfg.SessionSecret = []byte(secret)

	key, err := loadEncryptionKey(cfg.IsProduction)
	if err != nil {
		return nil, err
	}
	cfg.EncryptionKey = key

	return cfg, nil
}

// loadEncryptionKey reads the codec key from GUESS_ENCRYPTION_KEY
// (base64, 32 bytes once decoded). A missing key is fatal in
// production; in development an ephemeral key is generated, which
// only invalidates games in flight since sessions are cookie-held.
func loadEncryptionKey(production bool) ([]byte, error) {
	raw := os.Getenv("GUESS_ENCRYPTION_KEY")
	if raw == "" {
		if production {
			return nil, errMissingEncryptionKey
		}
		logger.Warn().Msg("GUESS_ENCRYPTION_KEY not set, generating a temporary key; in-flight games will not survive a restart")
		return randomKey(), nil
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("GUESS_ENCRYPTION_KEY is not valid base64: %w", err)
	}
	if len(key) != encryptionKeySize {
		return nil, fmt.Errorf("GUESS_ENCRYPTION_KEY must decode to %d bytes, got %d", encryptionKeySize, len(key))
	}
	return key, nil
}
