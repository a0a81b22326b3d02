package party

import (
	"encoding/json"
	"time"

	"github.com/desertthunder/amply/internal/models"
)

// EventType names a server to client message.
type EventType string

const (
	EventState             EventType = "state"
	EventPong              EventType = "pong"
	EventChat              EventType = "chat"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventHostChanged       EventType = "host_changed"
	EventQueueUpdated      EventType = "queue_updated"
	EventPlayback          EventType = "playback"
	EventSignal            EventType = "signal"
	EventPartyEnded        EventType = "party_ended"
	EventError             EventType = "error"
)

// Event is the envelope pushed to realtime subscribers.
type Event struct {
	Type       EventType `json:"type"`
	PartyID    string    `json:"party_id"`
	Data       any       `json:"data,omitempty"`
	ServerTime time.Time `json:"server_time"`
}

// Sync is the playback snapshot clients use to correct drift.
//
// PositionMS is extrapolated to ServerTime.
type Sync struct {
	Playback   *models.PlaybackState `json:"playback"`
	Track      *models.PartyTrack    `json:"track,omitempty"`
	PositionMS int64                 `json:"position_ms"`
	ServerTime time.Time             `json:"server_time"`
}

// Detail is a party with its live playback and head count.
type Detail struct {
	Party            *models.ListeningParty `json:"party"`
	Sync             *Sync                  `json:"sync"`
	ParticipantCount int                    `json:"participant_count"`
}

// Snapshot is the full state sent to a subscriber on connect and on resync.
type Snapshot struct {
	Party        *models.ListeningParty     `json:"party"`
	Sync         *Sync                      `json:"sync"`
	Participants []*models.PartyParticipant `json:"participants"`
	Queue        []*models.PartyTrack       `json:"queue"`
}

type HostChange struct {
	PreviousHostID string `json:"previous_host_id"`
	HostID         string `json:"host_id"`
}

type Departure struct {
	UserID string `json:"user_id"`
}

type Ended struct {
	Reason string `json:"reason"`
}

// Pong answers a client ping. Times are unix milliseconds.
type Pong struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
}

type ErrorData struct {
	Message string `json:"message"`
}

// NewPong stamps the server side of a clock-offset probe.
func NewPong(clientTime int64, now time.Time) Pong {
	return Pong{ClientTime: clientTime, ServerTime: now.UnixMilli()}
}

// ErrorEvent wraps err for a single subscriber.
func ErrorEvent(partyID string, err error, now time.Time) Event {
	return Event{Type: EventError, PartyID: partyID, Data: ErrorData{Message: err.Error()}, ServerTime: now}
}

// Client frame types.
const (
	ClientSync    = "sync"
	ClientPing    = "ping"
	ClientChat    = "chat"
	ClientControl = "control"
	ClientSignal  = "signal"
)

// ClientMessage is a frame sent by a realtime client. Only the fields of its Type are read.
type ClientMessage struct {
	Type       string          `json:"type"`
	ClientTime int64           `json:"client_time,omitempty"`
	Content    string          `json:"content,omitempty"`
	Action     string          `json:"action,omitempty"`
	PositionMS *int64          `json:"position_ms,omitempty"`
	To         string          `json:"to,omitempty"`
	SignalType string          `json:"signal_type,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}
