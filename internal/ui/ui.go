package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/party"
	"github.com/desertthunder/amply/internal/shared"
)

const (
	tickInterval = 250 * time.Millisecond
	pingInterval = 15 * time.Second
	chatLines    = 6
)

// Model is the party watch view: header, now playing, queue, recent chat and key help.
type Model struct {
	conn    Conn
	partyID string
	userID  string
	now     func() time.Time

	snap     *party.Snapshot
	sync     *party.Sync
	syncedAt time.Time
	latency  time.Duration
	chat     []string
	notice   string
	ended    string
	closed   bool
	err      error

	width  int
	height int
	queue  list.Model
	bar    progress.Model
	help   help.Model
	keys   keyMap
}

// NewModel creates a watch model reading from conn as userID.
func NewModel(conn Conn, partyID, userID string) *Model {
	queue := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	queue.Title = "Queue"
	queue.SetShowStatusBar(false)
	queue.SetFilteringEnabled(false)
	queue.SetShowHelp(false)

	return &Model{
		conn:    conn,
		partyID: partyID,
		userID:  userID,
		now:     time.Now,
		queue:   queue,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Watch runs the TUI until the user quits or ctx is cancelled.
func Watch(ctx context.Context, conn Conn, partyID, userID string) error {
	m := NewModel(conn, partyID, userID)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	return m.err
}

// Init starts reading frames and the render and ping clocks.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForFrame(), tick(), m.ping(), schedulePing())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(msg.Width-24, 10)
		m.queue.SetSize(msg.Width-4, max(msg.Height-16, 4))
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgFrame:
			m.applyFrame(msg.data.(Frame))
			return m, m.waitForFrame()
		case MsgClosed:
			m.closed = true
			if err, _ := msg.data.(error); err != nil {
				m.err = err
			}
			return m, nil
		case MsgTick:
			return m, tick()
		case MsgPing:
			if m.closed {
				return m, nil
			}
			return m, tea.Batch(m.ping(), schedulePing())
		case MsgSendFailed:
			m.notice = msg.data.(error).Error()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.queue, cmd = m.queue.Update(msg)
	return m, cmd
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.conn.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.resync):
		return m, m.send(party.ClientMessage{Type: party.ClientSync})
	case key.Matches(msg, m.keys.toggle):
		action := party.ActionPlay
		if m.sync != nil && m.sync.Playback != nil && m.sync.Playback.IsPlaying {
			action = party.ActionPause
		}
		return m, m.send(party.ClientMessage{Type: party.ClientControl, Action: action})
	case key.Matches(msg, m.keys.next):
		return m, m.send(party.ClientMessage{Type: party.ClientControl, Action: party.ActionNext})
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	var cmd tea.Cmd
	m.queue, cmd = m.queue.Update(msg)
	return m, cmd
}

// applyFrame folds one server event into the view state.
func (m *Model) applyFrame(f Frame) {
	var err error
	switch f.Type {
	case party.EventState:
		var snap party.Snapshot
		if err = f.Decode(&snap); err == nil {
			m.snap = &snap
			m.setSync(snap.Sync)
			m.setQueue(snap.Queue)
		}
	case party.EventPlayback:
		var s party.Sync
		if err = f.Decode(&s); err == nil {
			m.setSync(&s)
		}
	case party.EventQueueUpdated:
		var queue []*models.PartyTrack
		if err = f.Decode(&queue); err == nil {
			if m.snap != nil {
				m.snap.Queue = queue
			}
			m.setQueue(queue)
		}
	case party.EventChat:
		var msg models.PartyMessage
		if err = f.Decode(&msg); err == nil {
			m.appendChat(fmt.Sprintf("%s %s: %s", msg.CreatedAt.Local().Format("15:04"), msg.UserID, msg.Content))
		}
	case party.EventParticipantJoined:
		var p models.PartyParticipant
		if err = f.Decode(&p); err == nil {
			m.upsertParticipant(&p)
			m.notice = p.UserID + " joined"
		}
	case party.EventParticipantLeft:
		var d party.Departure
		if err = f.Decode(&d); err == nil {
			m.removeParticipant(d.UserID)
			m.notice = d.UserID + " left"
		}
	case party.EventHostChanged:
		var hc party.HostChange
		if err = f.Decode(&hc); err == nil {
			if m.snap != nil && m.snap.Party != nil {
				m.snap.Party.HostID = hc.HostID
			}
			m.notice = hc.HostID + " is now the host"
		}
	case party.EventPartyEnded:
		var e party.Ended
		if err = f.Decode(&e); err == nil {
			m.ended = e.Reason
			if m.snap != nil && m.snap.Party != nil {
				m.snap.Party.Status = models.PartyEnded
			}
			if m.sync != nil && m.sync.Playback != nil {
				m.sync.Playback.IsPlaying = false
			}
		}
	case party.EventPong:
		var p party.Pong
		if err = f.Decode(&p); err == nil {
			m.latency = time.Duration(m.now().UnixMilli()-p.ClientTime) * time.Millisecond
		}
	case party.EventError:
		var e party.ErrorData
		if err = f.Decode(&e); err == nil {
			m.notice = e.Message
		}
	case party.EventSignal:
		m.notice = "received a WebRTC signal"
	}

	if err != nil {
		m.notice = fmt.Sprintf("bad %s frame: %v", f.Type, err)
	}
}

func (m *Model) setSync(s *party.Sync) {
	m.sync = s
	m.syncedAt = m.now()
}

func (m *Model) setQueue(queue []*models.PartyTrack) {
	m.queue.SetItems(queueItems(queue))
}

func (m *Model) appendChat(line string) {
	m.chat = append(m.chat, line)
	if len(m.chat) > chatLines {
		m.chat = m.chat[len(m.chat)-chatLines:]
	}
}

func (m *Model) upsertParticipant(p *models.PartyParticipant) {
	if m.snap == nil {
		return
	}
	for i, existing := range m.snap.Participants {
		if existing.UserID == p.UserID {
			m.snap.Participants[i] = p
			return
		}
	}
	m.snap.Participants = append(m.snap.Participants, p)
}

func (m *Model) removeParticipant(userID string) {
	if m.snap == nil {
		return
	}
	kept := m.snap.Participants[:0]
	for _, p := range m.snap.Participants {
		if p.UserID != userID {
			kept = append(kept, p)
		}
	}
	m.snap.Participants = kept
}

// Position is the locally extrapolated playback position, clamped to the track length.
func (m *Model) Position() int64 {
	if m.sync == nil {
		return 0
	}
	pos := m.sync.PositionMS
	if m.sync.Playback != nil && m.sync.Playback.IsPlaying {
		pos += m.now().Sub(m.syncedAt).Milliseconds()
	}
	if m.sync.Track != nil && m.sync.Track.DurationMS > 0 {
		pos = min(pos, m.sync.Track.DurationMS)
	}
	return max(pos, 0)
}

func (m *Model) waitForFrame() tea.Cmd {
	return func() tea.Msg {
		f, ok := <-m.conn.Frames()
		if !ok {
			return closedMsg(m.conn.Err())
		}
		return frameMsg(f)
	}
}

func (m *Model) send(msg party.ClientMessage) tea.Cmd {
	return func() tea.Msg {
		if err := m.conn.Send(msg); err != nil {
			return sendFailedMsg(err)
		}
		return nil
	}
}

func (m *Model) ping() tea.Cmd {
	return m.send(party.ClientMessage{Type: party.ClientPing, ClientTime: m.now().UnixMilli()})
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func schedulePing() tea.Cmd {
	return tea.Tick(pingInterval, func(t time.Time) tea.Msg { return pingMsg(t) })
}

// View renders the watch screen.
func (m *Model) View() string {
	if m.snap == nil || m.snap.Party == nil {
		if m.err != nil {
			return watchTheme.failure.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
		}
		return "Connecting to party " + m.partyID + "..."
	}

	var b strings.Builder
	p := m.snap.Party

	b.WriteString(watchTheme.header.Render(p.Title))
	b.WriteString("\n")
	b.WriteString(m.renderStatus(p))
	b.WriteString("\n\n")
	b.WriteString(m.renderNowPlaying())
	b.WriteString("\n\n")
	b.WriteString(m.queue.View())
	b.WriteString("\n")
	b.WriteString(m.renderChat())

	if m.notice != "" {
		b.WriteString("\n" + watchTheme.notice.Render(m.notice))
	}
	if m.ended != "" {
		b.WriteString("\n" + watchTheme.failure.Render("Party ended ("+m.ended+")"))
	} else if m.closed {
		msg := "Disconnected"
		if m.err != nil {
			msg = fmt.Sprintf("Disconnected: %v", m.err)
		}
		b.WriteString("\n" + watchTheme.failure.Render(msg))
	}

	b.WriteString("\n\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderStatus(p *models.ListeningParty) string {
	status := watchTheme.badge(p.Status)

	role := "listener"
	if p.IsHost(m.userID) {
		role = "host"
	}

	parts := []string{
		status,
		"code " + p.Code,
		fmt.Sprintf("%d listening", len(m.snap.Participants)),
		"you are " + role,
	}
	if m.latency > 0 {
		parts = append(parts, fmt.Sprintf("rtt %dms", m.latency.Milliseconds()))
	}
	return strings.Join(parts, watchTheme.meta.Render(" • "))
}

func (m *Model) renderNowPlaying() string {
	if m.sync == nil || m.sync.Track == nil {
		return watchTheme.placeholder("Nothing playing")
	}

	t := m.sync.Track
	icon := "⏸"
	if m.sync.Playback != nil && m.sync.Playback.IsPlaying {
		icon = "▶"
	}

	pos := m.Position()
	pct := 0.0
	if t.DurationMS > 0 {
		pct = float64(pos) / float64(t.DurationMS)
	}

	return fmt.Sprintf("%s %s - %s\n%s %s / %s",
		icon, t.Artist, t.Title,
		m.bar.ViewAs(pct),
		shared.FormatDuration(pos), shared.FormatDuration(t.DurationMS))
}

func (m *Model) renderChat() string {
	if len(m.chat) == 0 {
		return watchTheme.placeholder("No messages yet")
	}
	return strings.Join(m.chat, "\n")
}
