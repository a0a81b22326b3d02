package server

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/gorilla/handlers"
)

// Recover turns a panic in a handler into a 500 envelope.
func Recover(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					var panicErr error
					switch e := rec.(type) {
					case error:
						panicErr = e
					default:
						panicErr = fmt.Errorf("%v", e)
					}
					logger.Error("panic", "method", r.Method, "path", r.URL.Path, "error", panicErr)
					apiErr := NewInternalServerError(panicErr)
					w.Header().Set("Connection", "close")
					writeJSON(w, apiErr.StatusCode, apiErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Hijack exposes the underlying connection for WebSocket upgrades.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Unwrap lets [http.ResponseController] reach the underlying writer, for flushing and deadlines.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Logging writes one line per request.
func Logging(logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration", time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

// CORS allows the configured web origins to call the API with bearer tokens.
func CORS(origins []string) Middleware {
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.MaxAge(600),
	)
}

// RequireAuth rejects requests without a valid Supabase access token.
// With no verifier configured every request gets a 503.
func RequireAuth(verifier *TokenVerifier, logger *log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !verifier.Configured() {
				apiErr := NewAPIError(http.StatusServiceUnavailable, "authentication is not configured")
				writeJSON(w, apiErr.StatusCode, apiErr)
				return
			}

			token := bearerToken(r)
			if token == "" {
				apiErr := NewUnauthorizedError()
				writeJSON(w, apiErr.StatusCode, apiErr)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "error", err)
				apiErr := &APIError{StatusCode: http.StatusUnauthorized, Message: "unauthorized", Err: err}
				if errors.Is(err, shared.ErrTokenExpired) {
					apiErr.Message = "token expired"
				}
				writeJSON(w, apiErr.StatusCode, apiErr)
				return
			}

			w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
