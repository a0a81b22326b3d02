package models

import "time"

// Role is a participant's standing in a party.
type Role string

const (
	RoleHost     Role = "host"
	RoleListener Role = "listener"
)

// PartyParticipant joins a user to a party. LeftAt is nil while the user is present.
type PartyParticipant struct {
	PartyID  string     `json:"party_id"`
	UserID   string     `json:"user_id"`
	Role     Role       `json:"role"`
	JoinedAt time.Time  `json:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty"`
}

func NewPartyParticipant(partyID, userID string, role Role) *PartyParticipant {
	return &PartyParticipant{PartyID: partyID, UserID: userID, Role: role, JoinedAt: time.Now().UTC()}
}

func (p *PartyParticipant) Key() string { return p.PartyID + ":" + p.UserID }

// Active reports whether the participant has not left.
func (p *PartyParticipant) Active() bool { return p.LeftAt == nil }

func (p *PartyParticipant) Validate() error {
	if p.PartyID == "" || p.UserID == "" {
		return invalid("party_id and user_id are required")
	}
	if p.Role != RoleHost && p.Role != RoleListener {
		return invalid("unknown role %q", p.Role)
	}
	return nil
}
