package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Frame is a server event with its payload left encoded until the type is known.
type Frame struct {
	Type       party.EventType `json:"type"`
	PartyID    string          `json:"party_id"`
	Data       json.RawMessage `json:"data"`
	ServerTime time.Time       `json:"server_time"`
}

// Decode unmarshals the payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s frame has no data", shared.ErrInvalidInput, f.Type)
	}
	return json.Unmarshal(f.Data, v)
}

// Conn is the party stream a watch [Model] reads from.
type Conn interface {
	// Frames is closed when the connection ends; Err then reports why.
	Frames() <-chan Frame
	Err() error
	Send(msg party.ClientMessage) error
	Close() error
}

// Client is a [Conn] over the party WebSocket.
type Client struct {
	conn   *websocket.Conn
	frames chan Frame
	done   chan struct{}

	writeMu   sync.Mutex
	errMu     sync.Mutex
	err       error
	closeOnce sync.Once
}

var _ Conn = (*Client)(nil)

// SocketURL turns an http(s) server address into the party WebSocket URL.
func SocketURL(serverURL, partyID, token string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(serverURL))
	if err != nil {
		return "", fmt.Errorf("%w: server url: %v", shared.ErrInvalidArgument, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: server url must be http(s) or ws(s), got %q", shared.ErrInvalidArgument, serverURL)
	}
	if partyID == "" {
		return "", fmt.Errorf("%w: party id", shared.ErrMissingArgument)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/parties/" + url.PathEscape(partyID) + "/ws"
	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Dial opens the party stream.
func Dial(ctx context.Context, serverURL, partyID, token string) (*Client, error) {
	target, err := SocketURL(serverURL, partyID, token)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket handshake: %s", shared.ErrAPIRequest, resp.Status)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	c := &Client{
		conn:   conn,
		frames: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)

	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-c.done:
				default:
					c.setErr(err)
				}
			}
			return
		}

		select {
		case c.frames <- f:
		case <-c.done:
			return
		}
	}
}

func (c *Client) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Client) Frames() <-chan Frame { return c.frames }

func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Send writes one client frame. Safe for concurrent use.
func (c *Client) Send(msg party.ClientMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s frame: %w", msg.Type, err)
	}
	return nil
}

// Close says goodbye to the server and releases the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(writeWait),
		)
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
