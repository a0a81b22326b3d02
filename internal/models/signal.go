package models

import (
	"encoding/json"
	"time"
)

// SignalType names a WebRTC signaling message.
type SignalType string

const (
	SignalOffer        SignalType = "offer"
	SignalAnswer       SignalType = "answer"
	SignalICECandidate SignalType = "ice-candidate"
)

// ParseSignalType accepts offer, answer and ice-candidate.
func ParseSignalType(s string) (SignalType, error) {
	switch t := SignalType(s); t {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return t, nil
	default:
		return "", invalid("unknown signal type %q", s)
	}
}

// WebRTCSignal is a signaling envelope from one participant to another.
type WebRTCSignal struct {
	ID        string          `json:"id"`
	PartyID   string          `json:"party_id"`
	FromUser  string          `json:"from_user"`
	ToUser    string          `json:"to_user"`
	Type      SignalType      `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewWebRTCSignal(partyID, from, to string, typ SignalType, payload json.RawMessage) *WebRTCSignal {
	return &WebRTCSignal{
		PartyID:   partyID,
		FromUser:  from,
		ToUser:    to,
		Type:      typ,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

func (s *WebRTCSignal) Key() string { return s.ID }

// Validate checks the envelope. Payload contents are checked by the party package.
func (s *WebRTCSignal) Validate() error {
	if s.PartyID == "" || s.FromUser == "" || s.ToUser == "" {
		return invalid("party_id, from_user and to_user are required")
	}
	if s.FromUser == s.ToUser {
		return invalid("cannot signal yourself")
	}
	if _, err := ParseSignalType(string(s.Type)); err != nil {
		return err
	}
	if len(s.Payload) == 0 || !json.Valid(s.Payload) {
		return invalid("payload must be JSON")
	}
	return nil
}
