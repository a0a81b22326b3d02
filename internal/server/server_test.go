package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/repositories"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
	tu "github.com/desertthunder/amply/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

type testEnv struct {
	app      *App
	db       *shared.Database
	coord    *party.Coordinator
	catalog  *tu.MockSearcher
	verifier *TokenVerifier
}

func newTestEnv(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, shared.RunMigrations(db))
	t.Cleanup(func() { db.Close() })

	cfg := shared.DefaultConfig()
	cfg.Supabase.JWTSecret = testSecret
	cfg.Supabase.URL = "https://project.supabase.co"
	cfg.Supabase.AnonKey = "anon"

	logger := shared.NewLogger(io.Discard)
	catalog := &tu.MockSearcher{Tracks: []models.SpotifyTrack{
		{ID: "sp-1", Name: "Hyperballad", Artists: []string{"Björk"}, DurationMS: 321000},
		{ID: "sp-2", Name: "Unfinished Sympathy", Artists: []string{"Massive Attack"}, DurationMS: 308000},
		{ID: "sp-3", Name: "Glory Box", Artists: []string{"Portishead"}, DurationMS: 301000},
	}}
	coord := party.NewCoordinator(party.NewStore(db), party.NewHub(0, nil, logger), catalog, party.WithLogger(logger))

	deps := Deps{
		Config:      cfg,
		DB:          db,
		Coordinator: coord,
		Users:       repositories.NewUserRepository(db),
		Spotify:     catalog,
		Logger:      logger,
	}
	if mutate != nil {
		mutate(&deps)
	}

	return &testEnv{
		app:      NewApp(deps),
		db:       db,
		coord:    coord,
		catalog:  catalog,
		verifier: NewTokenVerifier(testSecret),
	}
}

func (e *testEnv) token(t *testing.T, user string) string {
	t.Helper()
	tok, err := e.verifier.Sign(user, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, user))
	}
	rr := httptest.NewRecorder()
	e.app.Handler().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	noDB := newTestEnv(t, func(d *Deps) { d.DB = nil })
	rr = noDB.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestPublicConfig(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/api/config", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"supabase_url":"https://project.supabase.co","supabase_anon_key":"anon"}`, rr.Body.String())
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodPost, "/api/health", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestSpotifySearch(t *testing.T) {
	t.Run("missing query", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(t, http.MethodGet, "/api/spotify/search?q=%20", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		body := decode[map[string]any](t, rr)
		assert.Equal(t, float64(400), body["status_code"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("results are limited", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rr := env.do(t, http.MethodGet, "/api/spotify/search?q=trip+hop&limit=2", "", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		body := decode[searchResponse](t, rr)
		assert.Len(t, body.Tracks, 2)
		assert.Equal(t, []string{"trip hop"}, env.catalog.Queries)
	})

	t.Run("no credentials", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Spotify = nil })
		rr := env.do(t, http.MethodGet, "/api/spotify/search?q=anything", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		body := decode[map[string]any](t, rr)
		assert.Equal(t, []any{}, body["tracks"])
		assert.Equal(t, float64(503), body["status_code"])
	})

	t.Run("upstream failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.catalog.Err = fmt.Errorf("%w: status 502", shared.ErrAPIRequest)
		rr := env.do(t, http.MethodGet, "/api/spotify/search?q=anything", "", nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decode[map[string]any](t, rr)
		assert.Equal(t, []any{}, body["tracks"])
	})
}

func TestWalrusProxy(t *testing.T) {
	var gotQuery string
	var gotBody []byte
	status := http.StatusOK
	publisher := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/v1/blobs", r.URL.Path)
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			fmt.Fprint(w, `{"error":{"message":"not enough storage"}}`)
			return
		}
		fmt.Fprint(w, `{"newlyCreated":{"blobObject":{"id":"0xobj","blobId":"blob-1","size":5,"deletable":true,"storage":{"endEpoch":12}}}}`)
	}))
	defer publisher.Close()

	walrus := services.NewWalrusService(shared.WalrusConfig{PublisherURL: publisher.URL, AggregatorURL: publisher.URL}, publisher.Client())
	env := newTestEnv(t, func(d *Deps) {
		d.Walrus = walrus
		d.Config.Server.MaxUploadBytes = 16
	})

	t.Run("relays publisher json", func(t *testing.T) {
		status = http.StatusOK
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy?deletable=true&epochs=3", "", []byte("hello"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, gotQuery, "deletable=true")
		assert.Contains(t, gotQuery, "epochs=3")
		assert.Equal(t, []byte("hello"), gotBody)

		body := decode[map[string]any](t, rr)
		assert.Contains(t, body, "newlyCreated")
	})

	t.Run("deletable defaults to false", func(t *testing.T) {
		status = http.StatusOK
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy", "", []byte("hello"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, gotQuery, "deletable=false")
	})

	t.Run("publisher error is wrapped", func(t *testing.T) {
		status = http.StatusInternalServerError
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy?deletable=false", "", []byte("hello"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)

		body := decode[map[string]any](t, rr)
		assert.Equal(t, "walrus publisher error", body["error"])
		assert.Equal(t, float64(500), body["status_code"])
		assert.NotNil(t, body["details"])
	})

	t.Run("empty body", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad deletable", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy?deletable=maybe", "", []byte("hello"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("too large", func(t *testing.T) {
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy", "", bytes.Repeat([]byte("x"), 64))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("publisher unreachable", func(t *testing.T) {
		dead := httptest.NewServer(http.NotFoundHandler())
		dead.Close()
		env := newTestEnv(t, func(d *Deps) {
			d.Walrus = services.NewWalrusService(shared.WalrusConfig{PublisherURL: dead.URL}, nil)
		})
		rr := env.do(t, http.MethodPut, "/api/walrus-proxy", "", []byte("hello"))
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})
}

func TestWalrusBlob(t *testing.T) {
	aggregator := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/blobs/blob-1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		fmt.Fprint(w, "ID3data")
	}))
	defer aggregator.Close()

	env := newTestEnv(t, func(d *Deps) {
		d.Walrus = services.NewWalrusService(shared.WalrusConfig{AggregatorURL: aggregator.URL}, aggregator.Client())
	})

	rr := env.do(t, http.MethodGet, "/api/walrus/blobs/blob-1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "audio/mpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, "ID3data", rr.Body.String())

	rr = env.do(t, http.MethodGet, "/api/walrus/blobs/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("missing token", func(t *testing.T) {
		rr := env.do(t, http.MethodGet, "/api/parties", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := NewTokenVerifier("another-secret").Sign("user-1", time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/api/parties", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		env.app.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		tok, err := env.verifier.Sign("user-1", -time.Minute)
		require.NoError(t, err)
		_, err = env.verifier.Verify(tok)
		assert.ErrorIs(t, err, shared.ErrTokenExpired)
	})

	t.Run("query token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/parties?access_token="+env.token(t, "user-1"), nil)
		rr := httptest.NewRecorder()
		env.app.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("no secret configured", func(t *testing.T) {
		env := newTestEnv(t, func(d *Deps) { d.Config.Supabase.JWTSecret = "" })
		req := httptest.NewRequest(http.MethodGet, "/api/parties", nil)
		req.Header.Set("Authorization", "Bearer whatever")
		rr := httptest.NewRecorder()
		env.app.Handler().ServeHTTP(rr, req)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestUsersMe(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/users/me", "uid-1", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/users/me", "uid-1", profileRequest{Username: "selector", AvatarURL: "https://cdn.example.com/a.png"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPut, "/api/users/me", "uid-1", profileRequest{Username: "selector2"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/users/me", "uid-1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode[models.User](t, rr)
	assert.Equal(t, "uid-1", user.ID)
	assert.Equal(t, "selector2", user.Username)

	rr = env.do(t, http.MethodPut, "/api/users/me", "uid-1", profileRequest{Username: ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPartyRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/parties", "host", party.CreateInput{Title: "Listening club", StartNow: true})
	require.Equal(t, http.StatusCreated, rr.Code)
	created := decode[models.ListeningParty](t, rr)
	assert.Equal(t, models.PartyLive, created.Status)
	base := "/api/parties/" + created.ID

	rr = env.do(t, http.MethodGet, "/api/parties?status=live", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	list := decode[map[string][]models.ListeningParty](t, rr)
	assert.Len(t, list["parties"], 1)

	rr = env.do(t, http.MethodGet, "/api/parties?status=paused", "guest", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/invites/"+created.Code, "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	detail := decode[party.Detail](t, rr)
	assert.Equal(t, created.ID, detail.Party.ID)
	assert.Equal(t, 1, detail.ParticipantCount)

	rr = env.do(t, http.MethodGet, "/api/parties/nope", "guest", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/messages", "guest", messageRequest{Content: "hi"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/join", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, base+"/participants", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]models.PartyParticipant](t, rr)["participants"], 2)

	rr = env.do(t, http.MethodPost, base+"/messages", "guest", messageRequest{Content: "hi"})
	assert.Equal(t, http.StatusCreated, rr.Code)

	rr = env.do(t, http.MethodGet, base+"/messages?limit=10", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]models.PartyMessage](t, rr)["messages"], 1)

	rr = env.do(t, http.MethodGet, base+"/messages?before=yesterday", "guest", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/queue", "guest", trackRequest{SpotifyID: "sp-2"})
	require.Equal(t, http.StatusCreated, rr.Code)
	track := decode[models.PartyTrack](t, rr)
	assert.Equal(t, "Unfinished Sympathy", track.Title)

	rr = env.do(t, http.MethodPost, base+"/queue", "guest", trackRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/playback", "guest", party.ControlInput{Action: party.ActionPlay})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/playback", "host", party.ControlInput{Action: party.ActionPlay})
	require.Equal(t, http.StatusOK, rr.Code)
	state := decode[party.Sync](t, rr)
	assert.Equal(t, track.ID, state.Playback.CurrentTrackID)
	assert.Equal(t, int64(1), state.Playback.Version)

	rr = env.do(t, http.MethodGet, base+"/playback", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[party.Sync](t, rr).Playback.IsPlaying)

	rr = env.do(t, http.MethodDelete, base+"/queue/"+track.ID, "guest", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodGet, base+"/queue", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[map[string][]models.PartyTrack](t, rr)["queue"], 1)

	rr = env.do(t, http.MethodGet, base+"/signals", "guest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"signals":[]}`, rr.Body.String())

	rr = env.do(t, http.MethodPost, base+"/signals", "guest", party.SignalInput{To: "host", Type: "offer", Payload: json.RawMessage(`{"type":"offer","sdp":"garbage"}`)})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/end", "guest", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodPost, base+"/end", "host", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.PartyEnded, decode[models.ListeningParty](t, rr).Status)

	rr = env.do(t, http.MethodPost, base+"/join", "late", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodDelete, base, "host", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestDebugVars(t *testing.T) {
	updater := stats.NewUpdater()
	updater.Run()
	defer updater.Stop()

	env := newTestEnv(t, func(d *Deps) {
		d.Stats = updater
		d.Config.Server.Debug = true
	})
	rr := env.do(t, http.MethodGet, "/debug/vars", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, decode[map[string]any](t, rr), stats.WSClients)

	off := newTestEnv(t, func(d *Deps) { d.Stats = updater })
	rr = off.do(t, http.MethodGet, "/debug/vars", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", shared.ErrInvalidInput), http.StatusBadRequest},
		{shared.ErrNotParticipant, http.StatusForbidden},
		{shared.ErrTrackNotFound, http.StatusNotFound},
		{shared.ErrPartyEnded, http.StatusConflict},
		{shared.ErrQueueEmpty, http.StatusConflict},
		{shared.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{shared.ErrUpstream, http.StatusBadGateway},
		{shared.ErrMissingCredentials, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}

	apiErr := toAPIError(errors.New("database is locked"))
	assert.Equal(t, "internal server error", apiErr.Message)
	assert.False(t, strings.Contains(apiErr.Message, "locked"))
}
