package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"golang.org/x/time/rate"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

// App owns all process-wide state: config, the secret codec, the
// score store, the rank caches and the background writer. Handlers
// hang off it so tests can build isolated instances.
type App struct {
	Config *Config
	Codec  *SecretCodec
	Store  ScoreStore
	Cache  *RankCache
	Scores *ScoreWriter

	LimiterMap   map[string]*rate.Limiter
	LimiterMutex sync.Mutex

	StartTime time.Time
}

func main() {
	_ = godotenv.Load()

	if lvl, err := zerolog.ParseLevel(getEnvString("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger.Info().Bool("production", cfg.IsProduction).Msg("starting Guess-It")

	app, err := newApp(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build application")
	}

	router := app.buildRouter()
	app.startServer(router)
}

// newApp wires the application from configuration: codec, optional
// Postgres store, caches and the bounded score writer. No configured
// store means every session runs in offline mode.
func newApp(cfg *Config) (*App, error) {
	codec, err := NewSecretCodec(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     cfg,
		Codec:      codec,
		Cache:      NewRankCache(cfg.CacheTTL),
		LimiterMap: make(map[string]*rate.Limiter),
		StartTime:  time.Now(),
	}

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, scores will not persist (offline mode)")
		return app, nil
	}
	store, err := NewPostgresStore(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Error().Err(err).Msg("score store unreachable, continuing in offline mode")
		return app, nil
	}
	logger.Info().Msg("connected to score store")
	app.Store = store
	app.Scores = NewScoreWriter(store, cfg.ScoreQueueSize)
	return app, nil
}

// buildRouter assembles the Gin engine: compression, cache headers,
// security headers, request IDs, templates and the route table.
func (app *App) buildRouter() *gin.Engine {
	if app.Config.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.CustomRecovery(recoveryHandler))

	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logger.Warn().Err(err).Msg("failed to set trusted proxies")
	}

	router.Use(app.cacheHeadersMiddleware())
	router.Use(securityHeadersMiddleware())
	router.Use(requestIDMiddleware())

	if app.Config.IsProduction && dirExists("dist") {
		logger.Info().Msg("serving assets from dist/ directory")
		router.LoadHTMLGlob("dist/templates/*.html")
		router.Static("/static", "./dist/static")
	} else {
		logger.Info().Msg("serving development assets from source directories")
		router.LoadHTMLGlob("templates/*.html")
		router.Static("/static", "./static")
	}

	app.registerRoutes(router)
	return router
}

// registerRoutes attaches the HTTP surface to the engine.
func (app *App) registerRoutes(router *gin.Engine) {
	router.GET(RouteHome, app.indexHandler)
	router.POST(RouteLogin, app.rateLimitMiddleware(), app.loginHandler)
	router.POST(RouteDifficulty, app.requireSession(), app.difficultyHandler)
	router.POST(RouteStart, app.requireSession(), app.startHandler)
	router.POST(RouteGuess, app.rateLimitMiddleware(), app.requireSession(), app.guessHandler)
	router.GET(RouteLeaderboard, app.leaderboardHandler)
	router.GET(RouteStats, app.requireSession(), app.statsHandler)
	router.GET(RouteLogout, app.logoutHandler)
	router.GET(RouteHealth, app.healthzHandler)
}

// cacheHeadersMiddleware applies cache-control: long-lived for static
// assets in production, no-store everywhere else.
func (app *App) cacheHeadersMiddleware() gin.HandlerFunc {
	staticAge := getEnvDuration("STATIC_CACHE_AGE", 5*time.Minute)
	return func(c *gin.Context) {
		if app.Config.IsProduction && len(c.Request.URL.Path) >= 8 && c.Request.URL.Path[:8] == "/static/" {
			cachecontrol.New(cachecontrol.Config{
				Public: true,
				MaxAge: cachecontrol.Duration(staticAge),
			})(c)
			c.Header("Vary", "Accept-Encoding")
			return
		}
		cachecontrol.New(cachecontrol.Config{
			NoStore:        true,
			NoCache:        true,
			MustRevalidate: true,
		})(c)
	}
}

// startServer runs the HTTP server with graceful shutdown, draining
// the score writer before exit.
func (app *App) startServer(router *gin.Engine) {
	srv := &http.Server{
		Addr:              ":" + app.Config.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		<-sigint
		logger.Info().Msg("shutdown signal received, shutting down server gracefully")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server shutdown")
		}
		close(idleConnsClosed)
	}()

	logger.Info().Str("port", app.Config.Port).Msg("server starting")
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed to start")
	}
	<-idleConnsClosed

	if app.Scores != nil {
		app.Scores.Stop()
	}
	if ps, ok := app.Store.(*PostgresStore); ok {
		ps.Close()
	}
	logger.Info().Msg("server shutdown complete")
}
