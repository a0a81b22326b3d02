package models

import (
	"strings"
	"time"
)

const MaxMessageLength = 1000

// PartyMessage is a chat line scoped to a party.
type PartyMessage struct {
	ID        string    `json:"id"`
	PartyID   string    `json:"party_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPartyMessage trims content; validation happens on insert.
func NewPartyMessage(partyID, userID, content string) *PartyMessage {
	return &PartyMessage{
		PartyID:   partyID,
		UserID:    userID,
		Content:   strings.TrimSpace(content),
		CreatedAt: time.Now().UTC(),
	}
}

func (m *PartyMessage) Key() string { return m.ID }

func (m *PartyMessage) Validate() error {
	if m.PartyID == "" || m.UserID == "" {
		return invalid("party_id and user_id are required")
	}
	return checkLength("content", m.Content, 1, MaxMessageLength)
}
