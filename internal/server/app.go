package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/repositories"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
	"github.com/gorilla/websocket"
)

const ShutdownTimeout = 10 * time.Second

// Deps are the collaborators the HTTP API is built from.
//
// Spotify may be nil when credentials are absent; search then answers 503.
type Deps struct {
	Config      *shared.Config
	DB          *shared.Database
	Coordinator *party.Coordinator
	Users       *repositories.UserRepository
	Spotify     services.TrackSearcher
	Walrus      services.BlobStore
	Stats       *stats.Updater
	Logger      *log.Logger
}

// App is the amply HTTP API.
type App struct {
	cfg      *shared.Config
	db       *shared.Database
	coord    *party.Coordinator
	users    *repositories.UserRepository
	spotify  services.TrackSearcher
	walrus   services.BlobStore
	vars     *stats.Updater
	stats    stats.Recorder
	verifier *TokenVerifier
	logger   *log.Logger
	upgrader websocket.Upgrader
	router   *BasicRouter
	server   *http.Server
}

func NewApp(d Deps) *App {
	if d.Config == nil {
		d.Config = shared.DefaultConfig()
	}
	if d.Logger == nil {
		d.Logger = shared.NewLogger(nil)
	}

	a := &App{
		cfg:      d.Config,
		db:       d.DB,
		coord:    d.Coordinator,
		users:    d.Users,
		spotify:  d.Spotify,
		walrus:   d.Walrus,
		vars:     d.Stats,
		stats:    stats.Discard{},
		verifier: NewTokenVerifier(d.Config.Supabase.JWTSecret),
		logger:   d.Logger,
	}
	if d.Stats != nil {
		a.stats = d.Stats
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.checkOrigin,
	}
	a.router = a.routes()
	return a
}

// Handler returns the full handler chain.
func (a *App) Handler() http.Handler {
	return CORS(a.cfg.Server.AllowedOrigins)(a.router)
}

// Start listens on the configured address and blocks until the server stops.
func (a *App) Start() error {
	a.server = &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then closes every realtime subscription.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		err = a.server.Shutdown(ctx)
	}
	if a.coord != nil {
		a.coord.Hub().CloseAll()
	}
	return err
}

func (a *App) routes() *BasicRouter {
	r := NewBasicRouter()
	r.Use(Recover(a.logger), Logging(a.logger))

	r.HandleFunc("GET", "/api/health", a.health)
	r.HandleFunc("GET", "/api/config", a.publicConfig)
	r.HandleFunc("GET", "/api/spotify/search", a.spotifySearch)
	r.HandleFunc("PUT", "/api/walrus-proxy", a.walrusProxy)
	r.HandleFunc("GET", "/api/walrus/blobs/{id}", a.walrusBlob)

	if a.cfg.Server.Debug && a.vars != nil {
		r.Handle("GET", "/debug/vars", a.vars.Handler())
	}

	auth := RequireAuth(a.verifier, a.logger)
	protected := func(method, path string, fn http.HandlerFunc) {
		r.Handle(method, path, auth(fn))
	}

	protected("GET", "/api/users/me", a.getMe)
	protected("PUT", "/api/users/me", a.putMe)

	protected("POST", "/api/parties", a.createParty)
	protected("GET", "/api/parties", a.listParties)
	protected("GET", "/api/invites/{code}", a.getPartyByCode)
	protected("GET", "/api/parties/{id}", a.getParty)
	protected("DELETE", "/api/parties/{id}", a.deleteParty)
	protected("POST", "/api/parties/{id}/start", a.startParty)
	protected("POST", "/api/parties/{id}/end", a.endParty)
	protected("POST", "/api/parties/{id}/join", a.joinParty)
	protected("POST", "/api/parties/{id}/leave", a.leaveParty)
	protected("GET", "/api/parties/{id}/participants", a.participants)
	protected("GET", "/api/parties/{id}/messages", a.messages)
	protected("POST", "/api/parties/{id}/messages", a.postMessage)
	protected("GET", "/api/parties/{id}/queue", a.queue)
	protected("POST", "/api/parties/{id}/queue", a.addTrack)
	protected("DELETE", "/api/parties/{id}/queue/{trackId}", a.removeTrack)
	protected("GET", "/api/parties/{id}/playback", a.playback)
	protected("POST", "/api/parties/{id}/playback", a.control)
	protected("GET", "/api/parties/{id}/signals", a.drainSignals)
	protected("POST", "/api/parties/{id}/signals", a.sendSignal)
	protected("GET", "/api/parties/{id}/ws", a.partySocket)

	return r
}

func (a *App) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	if a.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(ctx); err != nil {
		a.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// publicConfig serves the values the browser client needs to talk to Supabase.
func (a *App) publicConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"supabase_url":      a.cfg.Supabase.URL,
		"supabase_anon_key": a.cfg.Supabase.AnonKey,
	})
}
