package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims carries the whole Session inside the signed cookie.
// The sealed secret token deliberately round-trips through client
// storage; the signature keeps the counters and the token honest.
type sessionClaims struct {
	Session Session `json:"session"`
	jwt.RegisteredClaims
}

// issueSession signs the session into the cookie. Called after every
// mutation so the client always holds the latest state.
func (app *App) issueSession(c *gin.Context, s *Session) {
	now := time.Now()
	claims := sessionClaims{
		Session: *s,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(app.Config.SessionTimeout)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(app.Config.SessionSecret)
	if err != nil {
		logger.Error().Err(err).Msg("failed to sign session cookie")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, signed, int(app.Config.CookieMaxAge.Seconds()), "/", "", app.Config.IsProduction, true)
}

// currentSession parses the session cookie. Returns nil when the
// cookie is absent, expired, or fails signature verification.
func (app *App) currentSession(c *gin.Context) *Session {
	raw, err := c.Cookie(SessionCookieName)
	if err != nil || raw == "" {
		return nil
	}
	claims := &sessionClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return app.Config.SessionSecret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}
	s := claims.Session
	if s.Difficulty == "" {
		s.Difficulty = DefaultDifficulty
	}
	return &s
}

// clearSessionCookie expires the session cookie.
func (app *App) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookieName, "", -1, "/", "", app.Config.IsProduction, true)
}

// sessionFromContext returns the Session stored by the auth guard.
func sessionFromContext(c *gin.Context) *Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
