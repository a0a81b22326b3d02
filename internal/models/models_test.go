package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/amply/internal/shared"
)

var (
	_ Model = (*User)(nil)
	_ Model = (*ListeningParty)(nil)
	_ Model = (*PartyParticipant)(nil)
	_ Model = (*PartyTrack)(nil)
	_ Model = (*PlaybackState)(nil)
	_ Model = (*PartyMessage)(nil)
	_ Model = (*WebRTCSignal)(nil)
)

func TestModelKeys(t *testing.T) {
	party := NewListeningParty("host", "Friday", "", nil)
	party.ID = "p1"
	party.Code = "abc123"

	track := SpotifyTrack{ID: "sp-1", Name: "Song", DurationMS: 1000}.ToPartyTrack("p1", "host")
	track.ID = "t1"

	message := NewPartyMessage("p1", "alice", "hi")
	message.ID = "m1"

	signal := NewWebRTCSignal("p1", "host", "alice", SignalOffer, json.RawMessage(`{"sdp":"v=0"}`))
	signal.ID = "s1"

	tc := []struct {
		name  string
		model Model
		want  string
	}{
		{name: "user", model: NewUser("u1", "dj"), want: "u1"},
		{name: "party", model: party, want: "p1"},
		{name: "participant", model: NewPartyParticipant("p1", "alice", RoleListener), want: "p1:alice"},
		{name: "track", model: track, want: "t1"},
		{name: "playback", model: NewPlaybackState("p1"), want: "p1"},
		{name: "message", model: message, want: "m1"},
		{name: "signal", model: signal, want: "s1"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.model.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
			if err := tt.model.Validate(); err != nil {
				t.Errorf("Validate() error: %v", err)
			}
		})
	}
}

func TestUserValidate(t *testing.T) {
	tc := []struct {
		name    string
		user    *User
		wantErr bool
	}{
		{name: "valid", user: NewUser("u1", "dj")},
		{name: "missing id", user: NewUser("", "dj"), wantErr: true},
		{name: "blank username", user: NewUser("u1", "   "), wantErr: true},
		{name: "long username", user: NewUser("u1", strings.Repeat("a", MaxUsernameLength+1)), wantErr: true},
		{name: "bad avatar", user: &User{ID: "u1", Username: "dj", AvatarURL: "ftp://x"}, wantErr: true},
		{name: "good avatar", user: &User{ID: "u1", Username: "dj", AvatarURL: "https://cdn.example.com/a.png"}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestPartyTransitions(t *testing.T) {
	allowed := map[[2]PartyStatus]bool{
		{PartyScheduled, PartyLive}:  true,
		{PartyScheduled, PartyEnded}: true,
		{PartyLive, PartyEnded}:      true,
	}
	all := []PartyStatus{PartyScheduled, PartyLive, PartyEnded}

	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]PartyStatus{from, to}] {
				t.Errorf("CanTransition(%s, %s) = %v", from, to, got)
			}
		}
	}

	t.Run("Transition stamps times", func(t *testing.T) {
		p := NewListeningParty("host", "Friday", "", nil)
		start := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)

		if err := p.Transition(PartyLive, start); err != nil {
			t.Fatalf("start: %v", err)
		}
		if p.StartedAt == nil || !p.StartedAt.Equal(start) {
			t.Errorf("started_at not stamped: %v", p.StartedAt)
		}

		end := start.Add(time.Hour)
		if err := p.Transition(PartyEnded, end); err != nil {
			t.Fatalf("end: %v", err)
		}
		if p.EndedAt == nil || !p.EndedAt.Equal(end) {
			t.Errorf("ended_at not stamped: %v", p.EndedAt)
		}
	})

	t.Run("ended is terminal", func(t *testing.T) {
		p := NewListeningParty("host", "Friday", "", nil)
		p.Status = PartyEnded
		if err := p.Transition(PartyLive, time.Now()); !errors.Is(err, shared.ErrPartyEnded) {
			t.Errorf("expected ErrPartyEnded, got %v", err)
		}
	})

	t.Run("live cannot go back", func(t *testing.T) {
		p := NewListeningParty("host", "Friday", "", nil)
		p.Status = PartyLive
		if err := p.Transition(PartyScheduled, time.Now()); !errors.Is(err, shared.ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got %v", err)
		}
	})
}

func TestPartyValidate(t *testing.T) {
	p := NewListeningParty("host", "  Late night  ", "", nil)
	p.Code = "abc"
	if p.Title != "Late night" {
		t.Errorf("title should be trimmed, got %q", p.Title)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.Title = strings.Repeat("x", MaxTitleLength+1)
	if err := p.Validate(); err == nil {
		t.Error("expected title length error")
	}

	p.Title = "ok"
	p.Status = "paused"
	if err := p.Validate(); err == nil {
		t.Error("expected status error")
	}

	if _, err := ParsePartyStatus("LIVE"); err != nil {
		t.Errorf("ParsePartyStatus should be case-insensitive: %v", err)
	}
}

func TestPlaybackCurrentPosition(t *testing.T) {
	base := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)

	t.Run("paused returns stored position", func(t *testing.T) {
		s := &PlaybackState{PartyID: "p", CurrentTrackID: "t", PositionMS: 5_000, UpdatedAt: base}
		if got := s.CurrentPosition(base.Add(10*time.Second), 200_000); got != 5_000 {
			t.Errorf("expected 5000, got %d", got)
		}
	})

	t.Run("playing extrapolates", func(t *testing.T) {
		s := &PlaybackState{PartyID: "p", CurrentTrackID: "t", PositionMS: 5_000, IsPlaying: true, UpdatedAt: base}
		if got := s.CurrentPosition(base.Add(2500*time.Millisecond), 200_000); got != 7_500 {
			t.Errorf("expected 7500, got %d", got)
		}
	})

	t.Run("clamps to duration", func(t *testing.T) {
		s := &PlaybackState{PartyID: "p", CurrentTrackID: "t", PositionMS: 190_000, IsPlaying: true, UpdatedAt: base}
		if got := s.CurrentPosition(base.Add(time.Minute), 200_000); got != 200_000 {
			t.Errorf("expected clamp to 200000, got %d", got)
		}
	})

	t.Run("clock skew never rewinds", func(t *testing.T) {
		s := &PlaybackState{PartyID: "p", CurrentTrackID: "t", PositionMS: 1_000, IsPlaying: true, UpdatedAt: base}
		if got := s.CurrentPosition(base.Add(-time.Second), 0); got != 1_000 {
			t.Errorf("expected 1000, got %d", got)
		}
	})
}

func TestPlaybackTransitionsBumpVersion(t *testing.T) {
	at := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)
	s := NewPlaybackState("p")

	s.Load(at, "t1", true)
	s.Seek(at, 30_000)
	s.Pause(at, 31_000)
	s.Play(at, -10)
	s.Stop(at)

	if s.Version != 5 {
		t.Errorf("expected version 5, got %d", s.Version)
	}
	if s.HasTrack() || s.IsPlaying || s.PositionMS != 0 {
		t.Errorf("stop should reset transport: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("stopped state should validate: %v", err)
	}

	s.IsPlaying = true
	if err := s.Validate(); err == nil {
		t.Error("playing without a track should not validate")
	}
}

func TestPartyTrackValidate(t *testing.T) {
	st := SpotifyTrack{ID: "sp1", Name: "Song", Artists: []string{"A", "B"}, DurationMS: 180_000}
	track := st.ToPartyTrack("p", "u")

	if track.Artist != "A, B" {
		t.Errorf("expected joined artists, got %q", track.Artist)
	}
	if track.Status != TrackQueued {
		t.Errorf("expected queued, got %s", track.Status)
	}
	if err := track.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	track.DurationMS = 0
	if err := track.Validate(); err == nil {
		t.Error("expected duration error")
	}
}

func TestMessageValidate(t *testing.T) {
	m := NewPartyMessage("p", "u", "  hi  ")
	if m.Content != "hi" {
		t.Errorf("content should be trimmed, got %q", m.Content)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := NewPartyMessage("p", "u", "   ").Validate(); err == nil {
		t.Error("expected empty content error")
	}
	if err := NewPartyMessage("p", "u", strings.Repeat("é", MaxMessageLength+1)).Validate(); err == nil {
		t.Error("expected length error")
	}
}

func TestSignalValidate(t *testing.T) {
	payload := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	if err := NewWebRTCSignal("p", "a", "b", SignalOffer, payload).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := NewWebRTCSignal("p", "a", "a", SignalOffer, payload).Validate(); err == nil {
		t.Error("expected self-signal error")
	}
	if err := NewWebRTCSignal("p", "a", "b", "hangup", payload).Validate(); err == nil {
		t.Error("expected type error")
	}
	if err := NewWebRTCSignal("p", "a", "b", SignalAnswer, json.RawMessage(`{`)).Validate(); err == nil {
		t.Error("expected payload error")
	}
}

func TestParticipant(t *testing.T) {
	p := NewPartyParticipant("p", "u", RoleListener)
	if !p.Active() {
		t.Error("new participant should be active")
	}
	if p.Key() != "p:u" {
		t.Errorf("unexpected key %s", p.Key())
	}
	p.Role = "dj"
	if err := p.Validate(); err == nil {
		t.Error("expected role error")
	}
}
