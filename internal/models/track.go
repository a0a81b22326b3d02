package models

import (
	"strings"
	"time"
)

// TrackStatus is where a [PartyTrack] sits in the queue.
type TrackStatus string

const (
	TrackQueued  TrackStatus = "queued"
	TrackPlaying TrackStatus = "playing"
	TrackPlayed  TrackStatus = "played"
)

// SpotifyTrack is the search result shape served to clients.
type SpotifyTrack struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Artists     []string `json:"artists"`
	Album       string   `json:"album"`
	AlbumImage  string   `json:"album_image,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
	PreviewURL  string   `json:"preview_url,omitempty"`
	URI         string   `json:"uri"`
	ExternalURL string   `json:"external_url,omitempty"`
	Explicit    bool     `json:"explicit"`
	Popularity  int      `json:"popularity"`
}

// ArtistLine joins the artist names for display.
func (t SpotifyTrack) ArtistLine() string {
	return strings.Join(t.Artists, ", ")
}

// ToPartyTrack converts a search result into a queue row.
func (t SpotifyTrack) ToPartyTrack(partyID, addedBy string) *PartyTrack {
	return &PartyTrack{
		PartyID:    partyID,
		SpotifyID:  t.ID,
		Title:      t.Name,
		Artist:     t.ArtistLine(),
		Album:      t.Album,
		ImageURL:   t.AlbumImage,
		DurationMS: t.DurationMS,
		AddedBy:    addedBy,
		Status:     TrackQueued,
		CreatedAt:  time.Now().UTC(),
	}
}

// PartyTrack is a track in a party queue. Position is 0-based and assigned on insert.
type PartyTrack struct {
	ID         string      `json:"id"`
	PartyID    string      `json:"party_id"`
	SpotifyID  string      `json:"spotify_id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Album      string      `json:"album,omitempty"`
	ImageURL   string      `json:"image_url,omitempty"`
	DurationMS int64       `json:"duration_ms"`
	AddedBy    string      `json:"added_by"`
	Position   int         `json:"position"`
	Status     TrackStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (t *PartyTrack) Key() string { return t.ID }

func (t *PartyTrack) Validate() error {
	if t.PartyID == "" || t.AddedBy == "" {
		return invalid("party_id and added_by are required")
	}
	if strings.TrimSpace(t.SpotifyID) == "" {
		return invalid("spotify_id is required")
	}
	if err := checkLength("title", t.Title, 1, 0); err != nil {
		return err
	}
	if t.DurationMS <= 0 {
		return invalid("duration_ms must be positive")
	}
	if t.Position < 0 {
		return invalid("position must not be negative")
	}
	switch t.Status {
	case TrackQueued, TrackPlaying, TrackPlayed:
	default:
		return invalid("unknown track status %q", t.Status)
	}
	return nil
}
