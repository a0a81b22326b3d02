package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/shared"
)

type messageRequest struct {
	Content string `json:"content"`
}

type trackRequest struct {
	SpotifyID string `json:"spotify_id"`
}

func caller(r *http.Request) string {
	id, _ := UserID(r.Context())
	return id
}

func (a *App) createParty(w http.ResponseWriter, r *http.Request) {
	var in party.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	p, err := a.coord.Create(r.Context(), caller(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (a *App) listParties(w http.ResponseWriter, r *http.Request) {
	var opts party.ListOptions
	q := r.URL.Query()
	if raw := q.Get("status"); raw != "" {
		status, err := models.ParsePartyStatus(raw)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		opts.Status = status
	}
	opts.HostID = q.Get("host_id")
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrInvalidInput))
			return
		}
		opts.Limit = n
	}

	parties, err := a.coord.List(r.Context(), opts)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if parties == nil {
		parties = []*models.ListeningParty{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"parties": parties})
}

func (a *App) getParty(w http.ResponseWriter, r *http.Request) {
	detail, err := a.coord.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *App) getPartyByCode(w http.ResponseWriter, r *http.Request) {
	detail, err := a.coord.DetailByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *App) deleteParty(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.Delete(r.Context(), r.PathValue("id"), caller(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) startParty(w http.ResponseWriter, r *http.Request) {
	p, err := a.coord.Start(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) endParty(w http.ResponseWriter, r *http.Request) {
	p, err := a.coord.End(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) joinParty(w http.ResponseWriter, r *http.Request) {
	p, err := a.coord.Join(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) leaveParty(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.Leave(r.Context(), r.PathValue("id"), caller(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) participants(w http.ResponseWriter, r *http.Request) {
	list, err := a.coord.Participants(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"participants": list})
}

// messages serves history; before is RFC 3339 and limit is capped by the repository.
func (a *App) messages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var before *time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			a.writeError(w, r, fmt.Errorf("%w: before must be an RFC 3339 timestamp", shared.ErrInvalidInput))
			return
		}
		before = &t
	}
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrInvalidInput))
			return
		}
		limit = n
	}

	msgs, err := a.coord.Messages(r.Context(), r.PathValue("id"), before, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (a *App) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	msg, err := a.coord.PostMessage(r.Context(), r.PathValue("id"), caller(r), req.Content)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (a *App) queue(w http.ResponseWriter, r *http.Request) {
	tracks, err := a.coord.Queue(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": tracks})
}

func (a *App) addTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.SpotifyID == "" {
		a.writeError(w, r, fmt.Errorf("%w: spotify_id is required", shared.ErrInvalidInput))
		return
	}
	track, err := a.coord.AddTrack(r.Context(), r.PathValue("id"), caller(r), req.SpotifyID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, track)
}

func (a *App) removeTrack(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.RemoveTrack(r.Context(), r.PathValue("id"), caller(r), r.PathValue("trackId")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) playback(w http.ResponseWriter, r *http.Request) {
	sync, err := a.coord.Playback(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sync)
}

func (a *App) control(w http.ResponseWriter, r *http.Request) {
	var in party.ControlInput
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	sync, err := a.coord.Control(r.Context(), r.PathValue("id"), caller(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sync)
}

func (a *App) drainSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := a.coord.DrainSignals(r.Context(), r.PathValue("id"), caller(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": signals})
}

func (a *App) sendSignal(w http.ResponseWriter, r *http.Request) {
	var in party.SignalInput
	if err := decodeJSON(r, &in); err != nil {
		a.writeError(w, r, err)
		return
	}
	signal, err := a.coord.SendSignal(r.Context(), r.PathValue("id"), caller(r), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signal)
}
