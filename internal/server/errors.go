package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/amply/internal/shared"
)

// APIError is the JSON error envelope every route answers with.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"error"`
	Details    any    `json:"details,omitempty"`
	Err        error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewAPIError(status int, message string) *APIError {
	if message == "" {
		message = lower(http.StatusText(status))
	}
	return &APIError{StatusCode: status, Message: message}
}

func NewBadRequestError(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, message)
}

func NewUnauthorizedError() *APIError {
	return NewAPIError(http.StatusUnauthorized, "")
}

func NewInternalServerError(err error) *APIError {
	return &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

// statusFor maps sentinel errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingArgument),
		errors.Is(err, shared.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden),
		errors.Is(err, shared.ErrNotParticipant):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrTrackNotFound),
		errors.Is(err, shared.ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict),
		errors.Is(err, shared.ErrPartyEnded),
		errors.Is(err, shared.ErrPartyNotLive),
		errors.Is(err, shared.ErrInvalidTransition),
		errors.Is(err, shared.ErrQueueEmpty):
		return http.StatusConflict
	case errors.Is(err, shared.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, shared.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrMissingCredentials),
		errors.Is(err, shared.ErrMissingConfig),
		errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// toAPIError converts err into the envelope. Internal errors keep a generic message.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return NewInternalServerError(err)
	}
	return &APIError{StatusCode: status, Message: err.Error(), Err: err}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (a *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	if apiErr.StatusCode >= 500 {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", apiErr.StatusCode, "error", err)
	} else {
		a.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", apiErr.StatusCode, "error", err)
	}
	writeJSON(w, apiErr.StatusCode, apiErr)
}
