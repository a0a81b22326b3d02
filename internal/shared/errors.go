package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrForbidden        = fmt.Errorf("forbidden")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUpstream           = fmt.Errorf("upstream returned an error")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrBlobNotFound       = fmt.Errorf("blob not found")

	// Persistence errors
	ErrNotFound = fmt.Errorf("not found")
	ErrConflict = fmt.Errorf("conflict")

	// Party state errors
	ErrPartyEnded        = fmt.Errorf("party has ended")
	ErrPartyNotLive      = fmt.Errorf("party is not live")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrNotParticipant    = fmt.Errorf("not a participant")
	ErrQueueEmpty        = fmt.Errorf("queue is empty")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrPayloadTooLarge = fmt.Errorf("payload too large")
)
