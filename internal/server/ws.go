package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16
	handleTimeout  = 10 * time.Second
)

// wsClient is one WebSocket connection subscribed to a party.
type wsClient struct {
	app    *App
	conn   *websocket.Conn
	sub    *party.Subscription
	send   chan party.Event
	done   chan struct{}
	logger *log.Logger
}

// partySocket upgrades to a WebSocket that streams party events and accepts client frames.
func (a *App) partySocket(w http.ResponseWriter, r *http.Request) {
	partyID := r.PathValue("id")
	userID := caller(r)

	p, err := a.coord.Get(r.Context(), partyID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if p.IsEnded() {
		a.writeError(w, r, fmt.Errorf("%w: %s", shared.ErrPartyEnded, partyID))
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "party", partyID, "error", err)
		return
	}

	c := &wsClient{
		app:    a,
		conn:   conn,
		sub:    a.coord.Hub().Subscribe(partyID, userID),
		send:   make(chan party.Event, sendBuffer),
		done:   make(chan struct{}),
		logger: shared.WithLogger(a.logger, "party", partyID, "user", userID),
	}
	a.stats.Incr(stats.WSClients)
	defer a.stats.Decr(stats.WSClients)

	c.sendSnapshot(r.Context())
	go c.write()
	c.read(r.Context())
}

func (c *wsClient) queue(ev party.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		c.logger.Warn("client send buffer full")
		return false
	}
}

func (c *wsClient) sendSnapshot(ctx context.Context) {
	snap, err := c.app.coord.Snapshot(ctx, c.sub.PartyID)
	if err != nil {
		c.queue(party.ErrorEvent(c.sub.PartyID, err, c.app.coord.Now()))
		return
	}
	c.queue(party.Event{Type: party.EventState, PartyID: c.sub.PartyID, Data: snap, ServerTime: c.app.coord.Now()})
}

func (c *wsClient) write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.sub.Events():
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "party closed"))
				return
			}
			if !c.writeEvent(ev) {
				return
			}
			if c.sub.NeedsResync() {
				c.sendSnapshot(context.Background())
			}
		case ev := <-c.send:
			if !c.writeEvent(ev) {
				return
			}
		case <-c.done:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) writeEvent(ev party.Event) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(ev); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			c.logger.Warn("websocket write failed", "error", err)
		}
		return false
	}
	return true
}

func (c *wsClient) read(ctx context.Context) {
	defer func() {
		c.app.coord.Hub().Unsubscribe(c.sub)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { return c.conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg party.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.queue(party.ErrorEvent(c.sub.PartyID, fmt.Errorf("%w: invalid frame", shared.ErrInvalidInput), c.app.coord.Now()))
			continue
		}
		c.handle(ctx, msg)
	}
}

// handle applies one client frame. Broadcast results arrive through the subscription;
// only replies addressed to this client are queued directly.
func (c *wsClient) handle(ctx context.Context, msg party.ClientMessage) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	coord := c.app.coord
	partyID, userID := c.sub.PartyID, c.sub.UserID

	var err error
	switch msg.Type {
	case party.ClientPing:
		now := coord.Now()
		c.queue(party.Event{Type: party.EventPong, PartyID: partyID, Data: party.NewPong(msg.ClientTime, now), ServerTime: now})
	case party.ClientSync:
		c.sendSnapshot(ctx)
	case party.ClientChat:
		_, err = coord.PostMessage(ctx, partyID, userID, msg.Content)
	case party.ClientControl:
		_, err = coord.Control(ctx, partyID, userID, party.ControlInput{Action: msg.Action, PositionMS: msg.PositionMS})
	case party.ClientSignal:
		_, err = coord.SendSignal(ctx, partyID, userID, party.SignalInput{To: msg.To, Type: msg.SignalType, Payload: msg.Payload})
	default:
		err = fmt.Errorf("%w: unknown frame type %q", shared.ErrInvalidInput, msg.Type)
	}

	if err != nil {
		c.logger.Debug("frame rejected", "type", msg.Type, "error", err)
		c.queue(party.ErrorEvent(partyID, err, coord.Now()))
	}
}
