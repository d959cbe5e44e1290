package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Test constants
const (
	TestUserStudent = "Student1"
	TestUserPlayer  = "Player1"
	TestUserTop     = "TopDog"
	TestUserOther   = "Challenger"
)

// fakeStore is an in-memory ScoreStore for tests.
type fakeStore struct {
	mu           sync.Mutex
	players      map[string]PlayerStats
	applyCalls   int
	failFetch    bool
	failApply    bool
	failTop      bool
	applyGate    chan struct{} // when set, ApplyScore blocks until the gate closes
	applyStarted chan struct{} // when set, receives one signal as ApplyScore begins
}

func newFakeStore() *fakeStore {
	return &fakeStore{players: make(map[string]PlayerStats)}
}

func (fs *fakeStore) seed(stats ...PlayerStats) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for _, s := range stats {
		fs.players[s.Username] = s
	}
}

func (fs *fakeStore) FetchPlayer(_ context.Context, username string) (*PlayerStats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.failFetch {
		return nil, ErrStoreUnavailable
	}
	s, ok := fs.players[username]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (fs *fakeStore) ApplyScore(_ context.Context, username string, pointsDelta int, won bool) error {
	if fs.applyStarted != nil {
		select {
		case fs.applyStarted <- struct{}{}:
		default:
		}
	}
	if fs.applyGate != nil {
		<-fs.applyGate
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.applyCalls++
	if fs.failApply {
		return ErrStoreUnavailable
	}
	s := fs.players[username]
	s.Username = username
	s.Points += pointsDelta
	s.TotalGames++
	if won {
		s.CorrectGuesses++
	}
	fs.players[username] = s
	return nil
}

func (fs *fakeStore) TopPlayers(_ context.Context, limit int) ([]PlayerStats, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.failTop {
		return nil, ErrStoreUnavailable
	}
	all := make([]PlayerStats, 0, len(fs.players))
	for _, s := range fs.players {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].Username < all[j].Username
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (fs *fakeStore) stats(username string) PlayerStats {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.players[username]
}

func (fs *fakeStore) applied() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.applyCalls
}

// testConfig returns a development config with fixed secrets.
func testConfig() *Config {
	return &Config{
		Port:           "0",
		SessionSecret:  []byte("test-session-secret"),
		EncryptionKey:  bytes.Repeat([]byte{0x42}, encryptionKeySize),
		SessionTimeout: time.Hour,
		CookieMaxAge:   time.Hour,
		CacheTTL:       time.Minute,
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		ScoreQueueSize: 16,
	}
}

// newTestApp builds an App around the given store (nil for offline mode).
func newTestApp(t *testing.T, store ScoreStore) *App {
	t.Helper()
	cfg := testConfig()
	codec, err := NewSecretCodec(cfg.EncryptionKey)
	if err != nil {
		t.Fatalf("NewSecretCodec: %v", err)
	}
	app := &App{
		Config:     cfg,
		Codec:      codec,
		Store:      store,
		Cache:      NewRankCache(cfg.CacheTTL),
		LimiterMap: make(map[string]*rate.Limiter),
		StartTime:  time.Now(),
	}
	if store != nil {
		app.Scores = NewScoreWriter(store, cfg.ScoreQueueSize)
		t.Cleanup(app.Scores.Stop)
	}
	return app
}

// newTestRouter builds the full route table around a test App.
func newTestRouter(t *testing.T, app *App) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.LoadHTMLGlob("templates/*.html")
	router.Use(securityHeadersMiddleware())
	app.registerRoutes(router)
	return router
}

// client keeps cookies across requests, like a browser would.
type client struct {
	t       *testing.T
	router  *gin.Engine
	cookies []*http.Cookie
}

func newClient(t *testing.T, router *gin.Engine) *client {
	return &client{t: t, router: router}
}

func (cl *client) do(method, path string, body any) *httptest.ResponseRecorder {
	cl.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			cl.t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	if err != nil {
		cl.t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cl.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	cl.router.ServeHTTP(w, req)
	cl.storeCookies(w)
	return w
}

// storeCookies merges Set-Cookie responses into the jar, dropping
// cookies that were expired by the server.
func (cl *client) storeCookies(w *httptest.ResponseRecorder) {
	res := w.Result()
	for _, c := range res.Cookies() {
		kept := cl.cookies[:0]
		for _, existing := range cl.cookies {
			if existing.Name != c.Name {
				kept = append(kept, existing)
			}
		}
		cl.cookies = kept
		if c.MaxAge >= 0 && c.Value != "" {
			cl.cookies = append(cl.cookies, c)
		}
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
