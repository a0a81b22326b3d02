package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/amply/internal/shared"
)

// PartyStatus is the lifecycle stage of a [ListeningParty].
type PartyStatus string

const (
	PartyScheduled PartyStatus = "scheduled"
	PartyLive      PartyStatus = "live"
	PartyEnded     PartyStatus = "ended"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
)

// ParsePartyStatus accepts the lowercase status names.
func ParsePartyStatus(s string) (PartyStatus, error) {
	switch PartyStatus(strings.ToLower(strings.TrimSpace(s))) {
	case PartyScheduled:
		return PartyScheduled, nil
	case PartyLive:
		return PartyLive, nil
	case PartyEnded:
		return PartyEnded, nil
	default:
		return "", invalid("unknown party status %q", s)
	}
}

// CanTransition reports whether a party may move from one status to another.
// Ended is terminal.
func CanTransition(from, to PartyStatus) bool {
	switch from {
	case PartyScheduled:
		return to == PartyLive || to == PartyEnded
	case PartyLive:
		return to == PartyEnded
	default:
		return false
	}
}

// ListeningParty is a shared, synchronized playback session hosted by one user.
type ListeningParty struct {
	ID           string      `json:"id"`
	Sequence     int         `json:"-"`
	Code         string      `json:"code"`
	HostID       string      `json:"host_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Status       PartyStatus `json:"status"`
	ScheduledFor *time.Time  `json:"scheduled_for,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// NewListeningParty creates a scheduled party. ID and Code are assigned on insert.
func NewListeningParty(hostID, title, description string, scheduledFor *time.Time) *ListeningParty {
	now := time.Now().UTC()
	return &ListeningParty{
		HostID:       hostID,
		Title:        strings.TrimSpace(title),
		Description:  strings.TrimSpace(description),
		Status:       PartyScheduled,
		ScheduledFor: scheduledFor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (p *ListeningParty) Key() string { return p.ID }

func (p *ListeningParty) IsLive() bool  { return p.Status == PartyLive }
func (p *ListeningParty) IsEnded() bool { return p.Status == PartyEnded }

func (p *ListeningParty) IsHost(userID string) bool {
	return userID != "" && p.HostID == userID
}

// Transition moves the party to status, stamping started_at or ended_at with at.
func (p *ListeningParty) Transition(to PartyStatus, at time.Time) error {
	if !CanTransition(p.Status, to) {
		if p.Status == PartyEnded {
			return fmt.Errorf("%w: %s", shared.ErrPartyEnded, p.ID)
		}
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, p.Status, to)
	}

	switch to {
	case PartyLive:
		p.StartedAt = &at
	case PartyEnded:
		p.EndedAt = &at
	}
	p.Status = to
	p.UpdatedAt = at
	return nil
}

func (p *ListeningParty) Validate() error {
	if p.HostID == "" {
		return invalid("host_id is required")
	}
	if err := checkLength("title", p.Title, 1, MaxTitleLength); err != nil {
		return err
	}
	if len([]rune(p.Description)) > MaxDescriptionLength {
		return invalid("description must be at most %d characters", MaxDescriptionLength)
	}
	if _, err := ParsePartyStatus(string(p.Status)); err != nil {
		return err
	}
	if p.Code == "" {
		return invalid("code is required")
	}
	return nil
}
