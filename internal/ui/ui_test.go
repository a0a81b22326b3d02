package ui

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/gorilla/websocket"
)

type fakeConn struct {
	frames chan Frame
	err    error

	mu     sync.Mutex
	sent   []party.ClientMessage
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan Frame, 8)}
}

func (f *fakeConn) Frames() <-chan Frame { return f.frames }
func (f *fakeConn) Err() error           { return f.err }
func (f *fakeConn) Send(msg party.ClientMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}
func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func mustFrame(t *testing.T, typ party.EventType, data any) Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", typ, err)
	}
	return Frame{Type: typ, PartyID: "p1", Data: raw}
}

var t0 = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func newTestModel(t *testing.T) (*Model, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	m := NewModel(conn, "p1", "host")
	now := t0
	m.now = func() time.Time { return now }
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	track := &models.PartyTrack{ID: "t1", Title: "Teardrop", Artist: "Massive Attack", DurationMS: 10000, Status: models.TrackPlaying}
	snap := party.Snapshot{
		Party: &models.ListeningParty{ID: "p1", Code: "abc123", HostID: "host", Title: "Trip hop night", Status: models.PartyLive},
		Sync: &party.Sync{
			Playback:   &models.PlaybackState{PartyID: "p1", CurrentTrackID: "t1", IsPlaying: true, Version: 1},
			Track:      track,
			PositionMS: 2000,
		},
		Participants: []*models.PartyParticipant{{PartyID: "p1", UserID: "host", Role: models.RoleHost}},
		Queue:        []*models.PartyTrack{track},
	}
	m.Update(frameMsg(mustFrame(t, party.EventState, snap)))
	return m, conn
}

func TestModel_State(t *testing.T) {
	m, _ := newTestModel(t)

	view := m.View()
	for _, want := range []string{"Trip hop night", "code abc123", "1 listening", "you are host", "Massive Attack - Teardrop", "0:02 / 0:10"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q\n%s", want, view)
		}
	}
	if got := len(m.queue.Items()); got != 1 {
		t.Errorf("expected 1 queue item, got %d", got)
	}
}

func TestModel_Position(t *testing.T) {
	m, _ := newTestModel(t)

	m.now = func() time.Time { return t0.Add(3 * time.Second) }
	if got := m.Position(); got != 5000 {
		t.Errorf("expected extrapolated 5000, got %d", got)
	}

	m.now = func() time.Time { return t0.Add(time.Minute) }
	if got := m.Position(); got != 10000 {
		t.Errorf("expected clamp to duration, got %d", got)
	}

	paused := &party.Sync{
		Playback:   &models.PlaybackState{PartyID: "p1", CurrentTrackID: "t1", IsPlaying: false, Version: 2},
		Track:      m.sync.Track,
		PositionMS: 4000,
	}
	m.Update(frameMsg(mustFrame(t, party.EventPlayback, paused)))
	m.now = func() time.Time { return t0.Add(2 * time.Hour) }
	if got := m.Position(); got != 4000 {
		t.Errorf("paused position should not move, got %d", got)
	}
}

func TestModel_Events(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(frameMsg(mustFrame(t, party.EventParticipantJoined, models.PartyParticipant{PartyID: "p1", UserID: "guest", Role: models.RoleListener})))
	if len(m.snap.Participants) != 2 || m.notice != "guest joined" {
		t.Errorf("join not applied: %d participants, notice %q", len(m.snap.Participants), m.notice)
	}

	for i := range 8 {
		msg := models.PartyMessage{UserID: "guest", Content: "line " + string(rune('a'+i)), CreatedAt: t0}
		m.Update(frameMsg(mustFrame(t, party.EventChat, msg)))
	}
	if len(m.chat) != chatLines {
		t.Errorf("expected chat capped at %d, got %d", chatLines, len(m.chat))
	}
	if !strings.HasSuffix(m.chat[len(m.chat)-1], "guest: line h") {
		t.Errorf("unexpected last chat line %q", m.chat[len(m.chat)-1])
	}

	m.Update(frameMsg(mustFrame(t, party.EventHostChanged, party.HostChange{PreviousHostID: "host", HostID: "guest"})))
	if m.snap.Party.HostID != "guest" || !strings.Contains(m.View(), "you are listener") {
		t.Errorf("host change not applied")
	}

	m.Update(frameMsg(mustFrame(t, party.EventParticipantLeft, party.Departure{UserID: "guest"})))
	if len(m.snap.Participants) != 1 {
		t.Errorf("leave not applied: %d participants", len(m.snap.Participants))
	}

	m.Update(frameMsg(mustFrame(t, party.EventQueueUpdated, []*models.PartyTrack{
		{ID: "t1", Title: "Teardrop", Status: models.TrackPlayed},
		{ID: "t2", Title: "Angel", Status: models.TrackPlaying},
		{ID: "t3", Title: "Protection", Status: models.TrackQueued},
	})))
	if got := len(m.queue.Items()); got != 2 {
		t.Errorf("played tracks should be hidden, got %d items", got)
	}

	m.Update(frameMsg(mustFrame(t, party.EventError, party.ErrorData{Message: "only the host can control playback"})))
	if m.notice != "only the host can control playback" {
		t.Errorf("unexpected notice %q", m.notice)
	}

	m.Update(frameMsg(Frame{Type: party.EventPlayback, Data: json.RawMessage(`"nope"`)}))
	if !strings.HasPrefix(m.notice, "bad playback frame") {
		t.Errorf("expected decode failure notice, got %q", m.notice)
	}

	m.Update(frameMsg(mustFrame(t, party.EventPartyEnded, party.Ended{Reason: "idle"})))
	if !strings.Contains(m.View(), "Party ended (idle)") {
		t.Errorf("ended banner missing")
	}
	if m.sync.Playback.IsPlaying {
		t.Errorf("playback should stop when the party ends")
	}
}

func TestModel_Pong(t *testing.T) {
	m, _ := newTestModel(t)
	m.now = func() time.Time { return t0.Add(40 * time.Millisecond) }
	m.Update(frameMsg(mustFrame(t, party.EventPong, party.Pong{ClientTime: t0.UnixMilli(), ServerTime: t0.UnixMilli() + 20})))
	if m.latency != 40*time.Millisecond {
		t.Errorf("expected 40ms rtt, got %v", m.latency)
	}
}

func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

func TestModel_Keys(t *testing.T) {
	m, conn := newTestModel(t)

	keyPress := func(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

	_, cmd := m.Update(keyPress('s'))
	runCmd(cmd)
	_, cmd = m.Update(keyPress('p'))
	runCmd(cmd)
	_, cmd = m.Update(keyPress('n'))
	runCmd(cmd)

	if len(conn.sent) != 3 {
		t.Fatalf("expected 3 frames sent, got %d", len(conn.sent))
	}
	if conn.sent[0].Type != party.ClientSync {
		t.Errorf("expected sync frame, got %+v", conn.sent[0])
	}
	if conn.sent[1].Type != party.ClientControl || conn.sent[1].Action != party.ActionPause {
		t.Errorf("expected pause while playing, got %+v", conn.sent[1])
	}
	if conn.sent[2].Action != party.ActionNext {
		t.Errorf("expected next, got %+v", conn.sent[2])
	}

	_, cmd = m.Update(keyPress('q'))
	if !conn.closed {
		t.Error("quit should close the connection")
	}
	if _, ok := runCmd(cmd).(tea.QuitMsg); !ok {
		t.Error("quit should return tea.Quit")
	}
}

func TestModel_Closed(t *testing.T) {
	conn := newFakeConn()
	conn.err = errors.New("connection reset")
	close(conn.frames)

	m := NewModel(conn, "p1", "host")
	msg := runCmd(m.waitForFrame())
	m.Update(msg)

	if !m.closed || m.err == nil {
		t.Fatalf("expected closed model with error, got closed=%v err=%v", m.closed, m.err)
	}
	if !strings.Contains(m.View(), "connection reset") {
		t.Errorf("error not rendered: %s", m.View())
	}
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
		err    bool
	}{
		{"http://localhost:3000", "ws://localhost:3000/api/parties/p1/ws?access_token=tok", false},
		{"https://amply.example.com/", "wss://amply.example.com/api/parties/p1/ws?access_token=tok", false},
		{"ws://127.0.0.1:8080/base", "ws://127.0.0.1:8080/base/api/parties/p1/ws?access_token=tok", false},
		{"ftp://nope", "", true},
	}
	for _, tt := range tests {
		got, err := SocketURL(tt.server, "p1", "tok")
		if tt.err {
			if err == nil {
				t.Errorf("SocketURL(%q) expected error", tt.server)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("SocketURL(%q) = %q, %v; want %q", tt.server, got, err, tt.want)
		}
	}
}

func TestClient(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan party.ClientMessage, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteJSON(party.Event{Type: party.EventPong, PartyID: "p1", Data: party.Pong{ClientTime: 1, ServerTime: 2}})

		var msg party.ClientMessage
		if err := conn.ReadJSON(&msg); err == nil {
			received <- msg
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	c, err := Dial(t.Context(), srv.URL, "p1", "tok")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	select {
	case f := <-c.Frames():
		var pong party.Pong
		if f.Type != party.EventPong || f.Decode(&pong) != nil || pong.ServerTime != 2 {
			t.Errorf("unexpected frame %+v", f)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
	}

	if err := c.Send(party.ClientMessage{Type: party.ClientChat, Content: "hey"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case msg := <-received:
		if msg.Content != "hey" {
			t.Errorf("server got %+v", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server never received the frame")
	}

	select {
	case _, ok := <-c.Frames():
		if ok {
			t.Error("expected frames channel to close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("frames channel did not close")
	}
	if c.Err() != nil {
		t.Errorf("normal closure should not set an error, got %v", c.Err())
	}

	if _, err := Dial(t.Context(), srv.URL, "p1", "wrong"); err == nil {
		t.Error("expected handshake failure")
	}
}

func TestTheme(t *testing.T) {
	for _, status := range []models.PartyStatus{models.PartyScheduled, models.PartyLive, models.PartyEnded, "paused"} {
		if got := watchTheme.badge(status); !strings.Contains(got, string(status)) {
			t.Errorf("badge(%q) = %q, missing status text", status, got)
		}
	}
	if _, ok := watchTheme.badges["paused"]; ok {
		t.Error("unknown statuses should not have a badge style")
	}

	m, _ := newTestModel(t)
	view := m.View()
	for _, want := range []string{"Trip hop night", "live", "code abc123", "you are host", "No messages yet"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
