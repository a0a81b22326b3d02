package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
)

type searchResponse struct {
	Tracks []models.SpotifyTrack `json:"tracks"`
}

// searchError keeps the tracks field on failures so clients can always read it.
type searchError struct {
	*APIError
	Tracks []models.SpotifyTrack `json:"tracks"`
}

func (a *App) spotifySearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		apiErr := NewBadRequestError("query parameter q is required")
		writeJSON(w, apiErr.StatusCode, apiErr)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	limit = services.ClampSearchLimit(limit)

	if a.spotify == nil {
		apiErr := NewAPIError(http.StatusServiceUnavailable, "spotify credentials are not configured")
		writeJSON(w, apiErr.StatusCode, searchError{APIError: apiErr, Tracks: []models.SpotifyTrack{}})
		return
	}

	a.stats.Incr(stats.SearchRequests)
	tracks, err := a.spotify.Search(r.Context(), query, limit)
	if err != nil {
		if errors.Is(err, shared.ErrMissingCredentials) {
			apiErr := NewAPIError(http.StatusServiceUnavailable, "spotify credentials are not configured")
			writeJSON(w, apiErr.StatusCode, searchError{APIError: apiErr, Tracks: []models.SpotifyTrack{}})
			return
		}
		a.logger.Error("spotify search failed", "query", query, "error", err)
		apiErr := NewAPIError(http.StatusInternalServerError, "failed to search tracks")
		writeJSON(w, apiErr.StatusCode, searchError{APIError: apiErr, Tracks: []models.SpotifyTrack{}})
		return
	}

	if len(tracks) > limit {
		tracks = tracks[:limit]
	}
	if tracks == nil {
		tracks = []models.SpotifyTrack{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Tracks: tracks})
}

func parseStoreOptions(r *http.Request) (services.StoreOptions, error) {
	var opts services.StoreOptions
	q := r.URL.Query()

	if raw := q.Get("deletable"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%w: deletable must be true or false", shared.ErrInvalidInput)
		}
		opts.Deletable = v
	}
	if raw := q.Get("epochs"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("%w: epochs must be a positive integer", shared.ErrInvalidInput)
		}
		opts.Epochs = n
	}
	return opts, nil
}

// walrusProxy forwards the raw request body to the Walrus publisher and relays its answer.
func (a *App) walrusProxy(w http.ResponseWriter, r *http.Request) {
	if a.walrus == nil {
		a.writeError(w, r, fmt.Errorf("%w: walrus publisher", shared.ErrMissingConfig))
		return
	}

	opts, err := parseStoreOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	maxBytes := a.cfg.Server.MaxUploadBytes
	if maxBytes > 0 && r.ContentLength > maxBytes {
		a.writeError(w, r, fmt.Errorf("%w: limit is %d bytes", shared.ErrPayloadTooLarge, maxBytes))
		return
	}

	var reader io.Reader = r.Body
	if maxBytes > 0 {
		reader = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.writeError(w, r, fmt.Errorf("%w: limit is %d bytes", shared.ErrPayloadTooLarge, maxBytes))
			return
		}
		a.writeError(w, r, fmt.Errorf("%w: failed to read body: %v", shared.ErrInvalidInput, err))
		return
	}
	if len(body) == 0 {
		a.writeError(w, r, fmt.Errorf("%w: request body is empty", shared.ErrInvalidInput))
		return
	}

	result, err := a.walrus.Store(r.Context(), bytes.NewReader(body), opts)
	if result == nil {
		if errors.Is(err, shared.ErrServiceUnavailable) {
			a.logger.Error("walrus publisher unreachable", "error", err)
			writeJSON(w, http.StatusBadGateway, NewAPIError(http.StatusBadGateway, "walrus publisher unreachable"))
			return
		}
		a.writeError(w, r, err)
		return
	}
	if err != nil {
		a.logger.Warn("unexpected walrus response", "error", err)
	}

	resp := result.Response
	if !resp.OK() {
		details := any(string(resp.Body))
		if resp.IsJSON {
			details = resp.JSONData
		}
		writeJSON(w, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "walrus publisher error",
			Details:    details,
		})
		return
	}

	a.stats.Incr(stats.BlobsStored)
	if result.Blob != nil {
		a.logger.Info("blob stored", "blob_id", result.Blob.BlobID, "bytes", len(body), "certified", result.Blob.AlreadyCertified)
	}

	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

// walrusBlob streams a blob from the aggregator.
func (a *App) walrusBlob(w http.ResponseWriter, r *http.Request) {
	if a.walrus == nil {
		a.writeError(w, r, fmt.Errorf("%w: walrus aggregator", shared.ErrMissingConfig))
		return
	}

	blob, err := a.walrus.Read(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	defer blob.Body.Close()

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob.Body); err != nil {
		a.logger.Warn("blob stream interrupted", "blob_id", r.PathValue("id"), "error", err)
	}
}
