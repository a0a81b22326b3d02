package models

import "time"

// PlaybackState is the transport for one party.
//
// PositionMS is the position at UpdatedAt. Every change bumps Version so clients can drop stale updates.
type PlaybackState struct {
	PartyID        string    `json:"party_id"`
	CurrentTrackID string    `json:"current_track_id,omitempty"`
	PositionMS     int64     `json:"position_ms"`
	IsPlaying      bool      `json:"is_playing"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewPlaybackState returns an idle, version 0 state.
func NewPlaybackState(partyID string) *PlaybackState {
	return &PlaybackState{PartyID: partyID, UpdatedAt: time.Now().UTC()}
}

func (s *PlaybackState) Key() string { return s.PartyID }

// CurrentPosition extrapolates the live position at now.
//
// While playing it is PositionMS plus the time since UpdatedAt, clamped to durationMS when that is positive.
func (s *PlaybackState) CurrentPosition(now time.Time, durationMS int64) int64 {
	pos := s.PositionMS
	if s.IsPlaying {
		if elapsed := now.Sub(s.UpdatedAt).Milliseconds(); elapsed > 0 {
			pos += elapsed
		}
	}
	if pos < 0 {
		pos = 0
	}
	if durationMS > 0 && pos > durationMS {
		pos = durationMS
	}
	return pos
}

// HasTrack reports whether a track is loaded.
func (s *PlaybackState) HasTrack() bool { return s.CurrentTrackID != "" }

func (s *PlaybackState) touch(at time.Time) {
	s.Version++
	s.UpdatedAt = at
}

// Play resumes from positionMS.
func (s *PlaybackState) Play(at time.Time, positionMS int64) {
	s.PositionMS = max(positionMS, 0)
	s.IsPlaying = true
	s.touch(at)
}

// Pause freezes the transport at positionMS.
func (s *PlaybackState) Pause(at time.Time, positionMS int64) {
	s.PositionMS = max(positionMS, 0)
	s.IsPlaying = false
	s.touch(at)
}

// Seek moves to positionMS keeping the playing flag.
func (s *PlaybackState) Seek(at time.Time, positionMS int64) {
	s.PositionMS = max(positionMS, 0)
	s.touch(at)
}

// Load switches to trackID at position 0.
func (s *PlaybackState) Load(at time.Time, trackID string, playing bool) {
	s.CurrentTrackID = trackID
	s.PositionMS = 0
	s.IsPlaying = playing
	s.touch(at)
}

// Stop unloads the current track.
func (s *PlaybackState) Stop(at time.Time) {
	s.CurrentTrackID = ""
	s.PositionMS = 0
	s.IsPlaying = false
	s.touch(at)
}

func (s *PlaybackState) Validate() error {
	if s.PartyID == "" {
		return invalid("party_id is required")
	}
	if s.PositionMS < 0 {
		return invalid("position_ms must not be negative")
	}
	if s.Version < 0 {
		return invalid("version must not be negative")
	}
	if s.IsPlaying && s.CurrentTrackID == "" {
		return invalid("cannot be playing without a current track")
	}
	return nil
}
