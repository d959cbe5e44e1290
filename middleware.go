package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// getLimiter returns a rate limiter for the given key (usually client IP).
func (app *App) getLimiter(key string) *rate.Limiter {
	app.LimiterMutex.Lock()
	defer app.LimiterMutex.Unlock()
	if lim, ok := app.LimiterMap[key]; ok {
		return lim
	}

	if key == "" || key == "::1" {
		logger.Warn().Str("key", key).Msg("rate limiter key is empty or loopback")
	}
	rps := app.Config.RateLimitRPS
	if rps <= 0 {
		rps = 1
	}
	lim := rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), app.Config.RateLimitBurst)
	app.LimiterMap[key] = lim
	return lim
}

// rateLimitMiddleware enforces per-client request throttling. Guess
// submissions in particular must not be brute-forceable faster than a
// few per second.
func (app *App) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !app.getLimiter(key).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "Too Many Requests",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

// requestIDMiddleware injects a request ID into the context for each request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.Request.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(c.Request.Context(), requestIDKey, reqID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", reqID)
		c.Next()
	}
}

// securityHeadersMiddleware attaches the browser security headers to
// every response, and disables caching on the API surface.
func securityHeadersMiddleware() gin.HandlerFunc {
	csp := "default-src 'self'; img-src 'self' data:; " +
		"style-src 'self' 'unsafe-inline' https://fonts.googleapis.com; " +
		"font-src 'self' https://fonts.gstatic.com; " +
		"script-src 'self' 'unsafe-inline'"
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", csp)
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "SAMEORIGIN")
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		c.Next()
	}
}

// requireSession rejects requests without a valid logged-in session
// and stores the parsed session in the gin context for handlers.
func (app *App) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := app.currentSession(c)
		if s == nil || s.Username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   ErrKindAuth,
				"message": "Login required.",
			})
			return
		}
		c.Set(sessionKey, s)
		c.Next()
	}
}

// recoveryHandler turns panics into the generic 500 body; detail goes
// to the log only.
func recoveryHandler(c *gin.Context, err any) {
	logger.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("recovered from panic")
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"error":   ErrKindServer,
		"message": ErrorUnexpected,
	})
}
