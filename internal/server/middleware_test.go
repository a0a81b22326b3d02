package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/amply/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routeHandler struct {
	hits int
}

func (h *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hits++
	w.WriteHeader(http.StatusAccepted)
}

func (h *routeHandler) Routes() []string {
	return []string{"GET /a", "POST /b"}
}

func TestBasicRouter(t *testing.T) {
	r := NewBasicRouter()

	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	r.Use(tag("outer"), tag("inner"))

	h := &routeHandler{}
	r.Handler(h)
	r.HandleFunc("get", "/items/{id}", func(w http.ResponseWriter, req *http.Request) {
		io.WriteString(w, req.PathValue("id"))
	})

	t.Run("path values", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/items/42", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "42", rr.Body.String())
		assert.Equal(t, []string{"outer", "inner"}, order)
	})

	t.Run("handler routes", func(t *testing.T) {
		for _, req := range []*http.Request{
			httptest.NewRequest(http.MethodGet, "/a", nil),
			httptest.NewRequest(http.MethodPost, "/b", nil),
		} {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusAccepted, rr.Code)
		}
		assert.Equal(t, 2, h.hits)
	})

	t.Run("wrong method", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/a", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	})
}

func TestRecover(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.JSONEq(t, `{"status_code":500,"error":"internal server error"}`, rr.Body.String())
}

func TestLogging(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestRequireAuth(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	verifier := NewTokenVerifier(testSecret)

	var seen string
	h := RequireAuth(verifier, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid bearer", func(t *testing.T) {
		tok, err := verifier.Sign("user-7", time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "user-7", seen)
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := verifier.Sign("user-7", -time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "token expired")
	})

	t.Run("malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("unconfigured", func(t *testing.T) {
		h := RequireAuth(NewTokenVerifier(""), logger)(http.NotFoundHandler())
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	})
}

func TestTokenVerifier_RequiresSubject(t *testing.T) {
	verifier := NewTokenVerifier(testSecret)
	tok, err := verifier.Sign("", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.ErrorIs(t, err, shared.ErrNotAuthenticated)
}
