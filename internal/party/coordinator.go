package party

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/amply/internal/models"
	"github.com/desertthunder/amply/internal/repositories"
	"github.com/desertthunder/amply/internal/services"
	"github.com/desertthunder/amply/internal/shared"
	"github.com/desertthunder/amply/internal/stats"
)

// Transport actions accepted by [Coordinator.Control].
const (
	ActionPlay  = "play"
	ActionPause = "pause"
	ActionSeek  = "seek"
	ActionNext  = "next"
)

// Store groups the repositories the coordinator writes through.
type Store struct {
	Parties      *repositories.PartyRepository
	Participants *repositories.ParticipantRepository
	Messages     *repositories.MessageRepository
	Playback     *repositories.PlaybackRepository
	Tracks       *repositories.TrackRepository
	Signals      *repositories.SignalRepository
}

func NewStore(db *shared.Database) *Store {
	return &Store{
		Parties:      repositories.NewPartyRepository(db),
		Participants: repositories.NewParticipantRepository(db),
		Messages:     repositories.NewMessageRepository(db),
		Playback:     repositories.NewPlaybackRepository(db),
		Tracks:       repositories.NewTrackRepository(db),
		Signals:      repositories.NewSignalRepository(db),
	}
}

// CreateInput describes a new party.
type CreateInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	StartNow     bool       `json:"start_now"`
}

// ControlInput is a host transport command. PositionMS is required for seek and optional for play and pause.
type ControlInput struct {
	Action     string `json:"action"`
	PositionMS *int64 `json:"position_ms,omitempty"`
}

// SignalInput is a WebRTC message addressed to another participant.
type SignalInput struct {
	To      string          `json:"to"`
	Type    string          `json:"signal_type"`
	Payload json.RawMessage `json:"payload"`
}

// ListOptions filters [Coordinator.List].
type ListOptions struct {
	Status models.PartyStatus
	HostID string
	Limit  int
}

type Option func(*Coordinator)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithStats(rec stats.Recorder) Option {
	return func(c *Coordinator) { c.stats = rec }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// Coordinator applies party operations and publishes the resulting events.
type Coordinator struct {
	store   *Store
	hub     *Hub
	catalog services.TrackSearcher
	stats   stats.Recorder
	logger  *log.Logger
	now     func() time.Time

	mu    sync.Mutex
	locks map[string]*partyLock
}

// partyLock serializes mutations of one party. refs counts holders and waiters.
type partyLock struct {
	sync.Mutex
	refs int
}

// NewCoordinator wires the engine. catalog may be nil when Spotify is not configured,
// in which case adding tracks fails with [shared.ErrMissingCredentials].
func NewCoordinator(store *Store, hub *Hub, catalog services.TrackSearcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:   store,
		hub:     hub,
		catalog: catalog,
		stats:   stats.Discard{},
		logger:  log.New(io.Discard),
		now:     time.Now,
		locks:   make(map[string]*partyLock),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Hub returns the hub events are published on.
func (c *Coordinator) Hub() *Hub { return c.hub }

// Now is the coordinator's clock in UTC.
func (c *Coordinator) Now() time.Time { return c.now().UTC() }

// lock takes the party's mutex. The entry is dropped once no caller holds or waits on it.
func (c *Coordinator) lock(partyID string) func() {
	c.mu.Lock()
	l, ok := c.locks[partyID]
	if !ok {
		l = &partyLock{}
		c.locks[partyID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, partyID)
		}
		c.mu.Unlock()
	}
}

func (c *Coordinator) publish(partyID string, typ EventType, data any) {
	c.hub.Publish(Event{Type: typ, PartyID: partyID, Data: data, ServerTime: c.Now()})
}

// Create stores a new party with hostID as host and first participant.
func (c *Coordinator) Create(ctx context.Context, hostID string, in CreateInput) (*models.ListeningParty, error) {
	now := c.Now()
	party := models.NewListeningParty(hostID, in.Title, in.Description, in.ScheduledFor)
	party.CreatedAt = now
	party.UpdatedAt = now
	if in.StartNow {
		if err := party.Transition(models.PartyLive, now); err != nil {
			return nil, err
		}
	}

	if err := c.store.Parties.Create(ctx, party); err != nil {
		return nil, err
	}

	host := models.NewPartyParticipant(party.ID, hostID, models.RoleHost)
	host.JoinedAt = now
	if err := c.store.Participants.Join(ctx, host); err != nil {
		return nil, err
	}

	state := models.NewPlaybackState(party.ID)
	state.UpdatedAt = now
	if err := c.store.Playback.Save(ctx, state); err != nil {
		return nil, err
	}

	if party.IsLive() {
		c.stats.Incr(stats.PartiesLive)
	}
	c.logger.Info("party created", "party", party.ID, "code", party.Code, "host", hostID, "status", party.Status)
	return party, nil
}

func (c *Coordinator) Get(ctx context.Context, partyID string) (*models.ListeningParty, error) {
	return c.store.Parties.Get(ctx, partyID)
}

func (c *Coordinator) GetByCode(ctx context.Context, code string) (*models.ListeningParty, error) {
	return c.store.Parties.GetByCode(ctx, code)
}

// List returns parties newest first.
func (c *Coordinator) List(ctx context.Context, opts ListOptions) ([]*models.ListeningParty, error) {
	criteria := map[string]any{}
	if opts.Status != "" {
		criteria["status"] = opts.Status
	}
	if opts.HostID != "" {
		criteria["host_id"] = opts.HostID
	}
	if opts.Limit > 0 {
		criteria["limit"] = opts.Limit
	}
	return c.store.Parties.List(ctx, criteria)
}

// Detail returns the party with its playback snapshot and active head count.
func (c *Coordinator) Detail(ctx context.Context, partyID string) (*Detail, error) {
	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return c.detail(ctx, party)
}

// DetailByCode is [Coordinator.Detail] looked up by invite code.
func (c *Coordinator) DetailByCode(ctx context.Context, code string) (*Detail, error) {
	party, err := c.store.Parties.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return c.detail(ctx, party)
}

func (c *Coordinator) detail(ctx context.Context, party *models.ListeningParty) (*Detail, error) {
	snap, err := c.playback(ctx, party.ID)
	if err != nil {
		return nil, err
	}
	count, err := c.store.Participants.CountActive(ctx, party.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Party: party, Sync: snap, ParticipantCount: count}, nil
}

// Snapshot returns everything a subscriber needs to render the party.
func (c *Coordinator) Snapshot(ctx context.Context, partyID string) (*Snapshot, error) {
	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil {
		return nil, err
	}
	snap, err := c.playback(ctx, partyID)
	if err != nil {
		return nil, err
	}
	participants, err := c.store.Participants.ListActive(ctx, partyID)
	if err != nil {
		return nil, err
	}
	queue, err := c.store.Tracks.List(ctx, partyID, "")
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Party:        party,
		Sync:         snap,
		Participants: nonNil(participants),
		Queue:        nonNil(queue),
	}, nil
}

// Start moves a scheduled party to live. Only the host may start it.
func (c *Coordinator) Start(ctx context.Context, partyID, userID string) (*models.ListeningParty, error) {
	defer c.lock(partyID)()

	party, err := c.hostParty(ctx, partyID, userID)
	if err != nil {
		return nil, err
	}
	if err := party.Transition(models.PartyLive, c.Now()); err != nil {
		return nil, err
	}
	if err := c.store.Parties.Update(ctx, party); err != nil {
		return nil, err
	}

	c.stats.Incr(stats.PartiesLive)
	c.logger.Info("party started", "party", partyID)
	if snap, err := c.Snapshot(ctx, partyID); err == nil {
		c.publish(partyID, EventState, snap)
	}
	return party, nil
}

// End finishes the party. Only the host may end it.
func (c *Coordinator) End(ctx context.Context, partyID, userID string) (*models.ListeningParty, error) {
	defer c.lock(partyID)()

	party, err := c.hostParty(ctx, partyID, userID)
	if err != nil {
		return nil, err
	}
	if err := c.end(ctx, party, "ended by host"); err != nil {
		return nil, err
	}
	return party, nil
}

// end must be called with the party lock held.
func (c *Coordinator) end(ctx context.Context, party *models.ListeningParty, reason string) error {
	wasLive := party.IsLive()
	now := c.Now()
	if err := party.Transition(models.PartyEnded, now); err != nil {
		return err
	}
	if err := c.store.Parties.Update(ctx, party); err != nil {
		return err
	}

	state, err := c.state(ctx, party.ID)
	if err != nil {
		return err
	}
	if state.IsPlaying {
		state.Pause(now, state.CurrentPosition(now, 0))
		if err := c.store.Playback.Save(ctx, state); err != nil {
			return err
		}
	}

	if _, err := c.store.Participants.LeaveAll(ctx, party.ID, now); err != nil {
		return err
	}

	if wasLive {
		c.stats.Decr(stats.PartiesLive)
	}
	c.logger.Info("party ended", "party", party.ID, "reason", reason)
	c.publish(party.ID, EventPartyEnded, Ended{Reason: reason})
	c.hub.Close(party.ID)
	return nil
}

// Delete removes an ended party and everything attached to it.
func (c *Coordinator) Delete(ctx context.Context, partyID, userID string) error {
	unlock := c.lock(partyID)
	party, err := c.hostParty(ctx, partyID, userID)
	if err == nil && !party.IsEnded() {
		err = c.end(ctx, party, "deleted by host")
	}
	if err == nil {
		err = c.store.Parties.Delete(ctx, partyID)
	}
	unlock()
	return err
}

func (c *Coordinator) hostParty(ctx context.Context, partyID, userID string) (*models.ListeningParty, error) {
	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if !party.IsHost(userID) {
		return nil, fmt.Errorf("%w: only the host can do that", shared.ErrForbidden)
	}
	return party, nil
}

func (c *Coordinator) openParty(ctx context.Context, partyID string) (*models.ListeningParty, error) {
	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if party.IsEnded() {
		return nil, fmt.Errorf("%w: %s", shared.ErrPartyEnded, partyID)
	}
	return party, nil
}

func (c *Coordinator) requireParticipant(ctx context.Context, partyID, userID string) (*models.PartyParticipant, error) {
	p, err := c.store.Participants.Get(ctx, partyID, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotParticipant, userID)
	}
	if err != nil {
		return nil, err
	}
	if !p.Active() {
		return nil, fmt.Errorf("%w: %s", shared.ErrNotParticipant, userID)
	}
	return p, nil
}

// Join adds userID to the party. The host rejoins as host, everyone else as listener.
func (c *Coordinator) Join(ctx context.Context, partyID, userID string) (*models.PartyParticipant, error) {
	defer c.lock(partyID)()

	party, err := c.openParty(ctx, partyID)
	if err != nil {
		return nil, err
	}

	role := models.RoleListener
	if party.IsHost(userID) {
		role = models.RoleHost
	}
	p := models.NewPartyParticipant(partyID, userID, role)
	p.JoinedAt = c.Now()
	if err := c.store.Participants.Join(ctx, p); err != nil {
		return nil, err
	}

	c.publish(partyID, EventParticipantJoined, p)
	return p, nil
}

// Leave removes userID from the party.
//
// When the host leaves a live party the earliest-joined remaining listener becomes host.
// With nobody left the party stays live until the janitor ends it.
func (c *Coordinator) Leave(ctx context.Context, partyID, userID string) error {
	defer c.lock(partyID)()

	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil {
		return err
	}
	now := c.Now()
	if err := c.store.Participants.Leave(ctx, partyID, userID, now); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: %s", shared.ErrNotParticipant, userID)
		}
		return err
	}
	if err := c.store.Signals.DeleteFor(ctx, partyID, userID); err != nil {
		c.logger.Warn("failed to clear signals", "party", partyID, "user", userID, "error", err)
	}

	c.publish(partyID, EventParticipantLeft, Departure{UserID: userID})

	if party.IsHost(userID) && party.IsLive() {
		return c.handOff(ctx, party)
	}
	return nil
}

func (c *Coordinator) handOff(ctx context.Context, party *models.ListeningParty) error {
	active, err := c.store.Participants.ListActive(ctx, party.ID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		return nil
	}

	previous := party.HostID
	next := active[0]
	if err := c.store.Participants.SetRole(ctx, party.ID, previous, models.RoleListener); err != nil {
		return err
	}
	if err := c.store.Participants.SetRole(ctx, party.ID, next.UserID, models.RoleHost); err != nil {
		return err
	}
	party.HostID = next.UserID
	party.UpdatedAt = c.Now()
	if err := c.store.Parties.Update(ctx, party); err != nil {
		return err
	}

	c.logger.Info("host handed off", "party", party.ID, "from", previous, "to", next.UserID)
	c.publish(party.ID, EventHostChanged, HostChange{PreviousHostID: previous, HostID: next.UserID})
	return nil
}

// Participants returns the active participants, earliest joiner first.
func (c *Coordinator) Participants(ctx context.Context, partyID string) ([]*models.PartyParticipant, error) {
	if _, err := c.store.Parties.Get(ctx, partyID); err != nil {
		return nil, err
	}
	participants, err := c.store.Participants.ListActive(ctx, partyID)
	return nonNil(participants), err
}

// PostMessage stores a chat line from an active participant and broadcasts it.
func (c *Coordinator) PostMessage(ctx context.Context, partyID, userID, content string) (*models.PartyMessage, error) {
	if _, err := c.openParty(ctx, partyID); err != nil {
		return nil, err
	}
	if _, err := c.requireParticipant(ctx, partyID, userID); err != nil {
		return nil, err
	}

	msg := models.NewPartyMessage(partyID, userID, content)
	msg.CreatedAt = c.Now()
	if err := c.store.Messages.Create(ctx, msg); err != nil {
		return nil, err
	}

	c.publish(partyID, EventChat, msg)
	return msg, nil
}

// Messages returns chat history older than before, oldest first.
func (c *Coordinator) Messages(ctx context.Context, partyID string, before *time.Time, limit int) ([]*models.PartyMessage, error) {
	if _, err := c.store.Parties.Get(ctx, partyID); err != nil {
		return nil, err
	}
	msgs, err := c.store.Messages.List(ctx, partyID, before, limit)
	return nonNil(msgs), err
}

// Queue returns every track of the party in position order.
func (c *Coordinator) Queue(ctx context.Context, partyID string) ([]*models.PartyTrack, error) {
	if _, err := c.store.Parties.Get(ctx, partyID); err != nil {
		return nil, err
	}
	tracks, err := c.store.Tracks.List(ctx, partyID, "")
	return nonNil(tracks), err
}

// AddTrack looks spotifyID up in the catalog and appends it to the queue.
func (c *Coordinator) AddTrack(ctx context.Context, partyID, userID, spotifyID string) (*models.PartyTrack, error) {
	if c.catalog == nil {
		return nil, fmt.Errorf("%w: track catalog is not configured", shared.ErrMissingCredentials)
	}
	if _, err := c.openParty(ctx, partyID); err != nil {
		return nil, err
	}
	if _, err := c.requireParticipant(ctx, partyID, userID); err != nil {
		return nil, err
	}

	found, err := c.catalog.Track(ctx, spotifyID)
	if err != nil {
		return nil, err
	}

	defer c.lock(partyID)()

	track := found.ToPartyTrack(partyID, userID)
	track.CreatedAt = c.Now()
	if err := c.store.Tracks.Add(ctx, track); err != nil {
		return nil, err
	}

	c.publishQueue(ctx, partyID)
	return track, nil
}

// RemoveTrack deletes a queued track. Listeners may only remove tracks they added.
func (c *Coordinator) RemoveTrack(ctx context.Context, partyID, userID, trackID string) error {
	defer c.lock(partyID)()

	party, err := c.openParty(ctx, partyID)
	if err != nil {
		return err
	}
	track, err := c.store.Tracks.Get(ctx, trackID)
	if err != nil {
		return err
	}
	if track.PartyID != partyID {
		return fmt.Errorf("%w: track %s", shared.ErrNotFound, trackID)
	}
	if !party.IsHost(userID) && track.AddedBy != userID {
		return fmt.Errorf("%w: only the host can remove tracks added by others", shared.ErrForbidden)
	}
	if track.Status == models.TrackPlaying {
		return fmt.Errorf("%w: track is playing", shared.ErrConflict)
	}
	if err := c.store.Tracks.Delete(ctx, trackID); err != nil {
		return err
	}

	c.publishQueue(ctx, partyID)
	return nil
}

func (c *Coordinator) publishQueue(ctx context.Context, partyID string) {
	queue, err := c.store.Tracks.List(ctx, partyID, "")
	if err != nil {
		c.logger.Warn("failed to load queue", "party", partyID, "error", err)
		return
	}
	c.publish(partyID, EventQueueUpdated, nonNil(queue))
}

// state loads the transport, falling back to an idle one for parties created before it existed.
func (c *Coordinator) state(ctx context.Context, partyID string) (*models.PlaybackState, error) {
	state, err := c.store.Playback.Get(ctx, partyID)
	if errors.Is(err, shared.ErrNotFound) {
		state = models.NewPlaybackState(partyID)
		state.UpdatedAt = c.Now()
		return state, nil
	}
	return state, err
}

func (c *Coordinator) currentTrack(ctx context.Context, state *models.PlaybackState) (*models.PartyTrack, error) {
	if !state.HasTrack() {
		return nil, nil
	}
	track, err := c.store.Tracks.Get(ctx, state.CurrentTrackID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return track, err
}

func (c *Coordinator) syncFor(ctx context.Context, state *models.PlaybackState) (*Sync, error) {
	track, err := c.currentTrack(ctx, state)
	if err != nil {
		return nil, err
	}
	now := c.Now()
	var duration int64
	if track != nil {
		duration = track.DurationMS
	}
	return &Sync{
		Playback:   state,
		Track:      track,
		PositionMS: state.CurrentPosition(now, duration),
		ServerTime: now,
	}, nil
}

// Playback returns the sync snapshot for a party.
func (c *Coordinator) Playback(ctx context.Context, partyID string) (*Sync, error) {
	if _, err := c.store.Parties.Get(ctx, partyID); err != nil {
		return nil, err
	}
	return c.playback(ctx, partyID)
}

func (c *Coordinator) playback(ctx context.Context, partyID string) (*Sync, error) {
	state, err := c.state(ctx, partyID)
	if err != nil {
		return nil, err
	}
	return c.syncFor(ctx, state)
}

// Control applies a host transport command to a live party.
func (c *Coordinator) Control(ctx context.Context, partyID, userID string, in ControlInput) (*Sync, error) {
	defer c.lock(partyID)()

	party, err := c.hostParty(ctx, partyID, userID)
	if err != nil {
		return nil, err
	}
	if party.IsEnded() {
		return nil, fmt.Errorf("%w: %s", shared.ErrPartyEnded, partyID)
	}
	if !party.IsLive() {
		return nil, fmt.Errorf("%w: %s", shared.ErrPartyNotLive, partyID)
	}
	if in.PositionMS != nil && *in.PositionMS < 0 {
		return nil, fmt.Errorf("%w: position_ms must not be negative", shared.ErrInvalidInput)
	}

	state, err := c.state(ctx, partyID)
	if err != nil {
		return nil, err
	}
	track, err := c.currentTrack(ctx, state)
	if err != nil {
		return nil, err
	}

	now := c.Now()
	queueChanged := false
	switch in.Action {
	case ActionPlay:
		if track == nil {
			if track, err = c.promote(ctx, partyID); err != nil {
				return nil, err
			}
			state.Load(now, track.ID, true)
			queueChanged = true
			if in.PositionMS != nil {
				state.PositionMS = clampPosition(*in.PositionMS, track.DurationMS)
			}
			break
		}
		pos := state.CurrentPosition(now, track.DurationMS)
		if in.PositionMS != nil {
			pos = clampPosition(*in.PositionMS, track.DurationMS)
		}
		state.Play(now, pos)
	case ActionPause:
		if track == nil {
			return nil, fmt.Errorf("%w: nothing is loaded", shared.ErrConflict)
		}
		pos := state.CurrentPosition(now, track.DurationMS)
		if in.PositionMS != nil {
			pos = clampPosition(*in.PositionMS, track.DurationMS)
		}
		state.Pause(now, pos)
	case ActionSeek:
		if in.PositionMS == nil {
			return nil, fmt.Errorf("%w: seek requires position_ms", shared.ErrInvalidInput)
		}
		if track == nil {
			return nil, fmt.Errorf("%w: nothing is loaded", shared.ErrConflict)
		}
		state.Seek(now, clampPosition(*in.PositionMS, track.DurationMS))
	case ActionNext:
		if err := c.advance(ctx, state, now); err != nil {
			return nil, err
		}
		queueChanged = true
	default:
		return nil, fmt.Errorf("%w: unknown action %q", shared.ErrInvalidInput, in.Action)
	}

	return c.commit(ctx, state, queueChanged)
}

func (c *Coordinator) commit(ctx context.Context, state *models.PlaybackState, queueChanged bool) (*Sync, error) {
	if err := c.store.Playback.Save(ctx, state); err != nil {
		return nil, err
	}
	snap, err := c.syncFor(ctx, state)
	if err != nil {
		return nil, err
	}

	c.publish(state.PartyID, EventPlayback, snap)
	if queueChanged {
		c.publishQueue(ctx, state.PartyID)
	}
	return snap, nil
}

// promote marks the lowest-position queued track as playing.
func (c *Coordinator) promote(ctx context.Context, partyID string) (*models.PartyTrack, error) {
	track, err := c.store.Tracks.NextQueued(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if err := c.store.Tracks.SetStatus(ctx, track.ID, models.TrackPlaying); err != nil {
		return nil, err
	}
	track.Status = models.TrackPlaying
	return track, nil
}

// advance retires the current track and loads the next queued one, stopping when the queue is empty.
func (c *Coordinator) advance(ctx context.Context, state *models.PlaybackState, now time.Time) error {
	if state.HasTrack() {
		err := c.store.Tracks.SetStatus(ctx, state.CurrentTrackID, models.TrackPlayed)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
	}

	next, err := c.promote(ctx, state.PartyID)
	if errors.Is(err, shared.ErrQueueEmpty) {
		state.Stop(now)
		return nil
	}
	if err != nil {
		return err
	}
	state.Load(now, next.ID, true)
	return nil
}

// SendSignal stores a WebRTC message for another active participant and pushes it to them live.
func (c *Coordinator) SendSignal(ctx context.Context, partyID, fromUser string, in SignalInput) (*models.WebRTCSignal, error) {
	if _, err := c.openParty(ctx, partyID); err != nil {
		return nil, err
	}
	typ, err := models.ParseSignalType(in.Type)
	if err != nil {
		return nil, err
	}
	if err := ValidateSignal(typ, in.Payload); err != nil {
		return nil, err
	}
	if _, err := c.requireParticipant(ctx, partyID, fromUser); err != nil {
		return nil, err
	}
	if _, err := c.requireParticipant(ctx, partyID, in.To); err != nil {
		return nil, err
	}

	signal := models.NewWebRTCSignal(partyID, fromUser, in.To, typ, in.Payload)
	signal.CreatedAt = c.Now()
	if err := c.store.Signals.Create(ctx, signal); err != nil {
		return nil, err
	}

	c.stats.Incr(stats.SignalsRelayed)
	c.hub.SendTo(in.To, Event{Type: EventSignal, PartyID: partyID, Data: signal, ServerTime: c.Now()})
	return signal, nil
}

// DrainSignals returns and deletes the signals waiting for userID.
func (c *Coordinator) DrainSignals(ctx context.Context, partyID, userID string) ([]*models.WebRTCSignal, error) {
	if _, err := c.requireParticipant(ctx, partyID, userID); err != nil {
		return nil, err
	}
	signals, err := c.store.Signals.Drain(ctx, partyID, userID)
	return nonNil(signals), err
}

// AdvanceFinished moves every live party whose current track has run out to its next track.
func (c *Coordinator) AdvanceFinished(ctx context.Context) (int, error) {
	states, err := c.store.Playback.ListPlaying(ctx)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, s := range states {
		ok, err := c.advanceIfFinished(ctx, s.PartyID)
		if err != nil {
			c.logger.Warn("auto-advance failed", "party", s.PartyID, "error", err)
			continue
		}
		if ok {
			advanced++
		}
	}
	return advanced, nil
}

func (c *Coordinator) advanceIfFinished(ctx context.Context, partyID string) (bool, error) {
	defer c.lock(partyID)()

	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil || !party.IsLive() {
		return false, err
	}
	state, err := c.state(ctx, partyID)
	if err != nil || !state.IsPlaying {
		return false, err
	}
	track, err := c.currentTrack(ctx, state)
	if err != nil {
		return false, err
	}

	now := c.Now()
	if track != nil && state.CurrentPosition(now, 0) < track.DurationMS {
		return false, nil
	}
	if err := c.advance(ctx, state, now); err != nil {
		return false, err
	}
	if _, err := c.commit(ctx, state, true); err != nil {
		return false, err
	}
	return true, nil
}

// EndIdle ends live parties that have had no participants for at least idle.
func (c *Coordinator) EndIdle(ctx context.Context, idle time.Duration) (int, error) {
	parties, err := c.store.Parties.List(ctx, map[string]any{"status": models.PartyLive})
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, p := range parties {
		ok, err := c.endIfIdle(ctx, p.ID, idle)
		if err != nil {
			c.logger.Warn("idle check failed", "party", p.ID, "error", err)
			continue
		}
		if ok {
			ended++
		}
	}
	return ended, nil
}

func (c *Coordinator) endIfIdle(ctx context.Context, partyID string, idle time.Duration) (bool, error) {
	defer c.lock(partyID)()

	party, err := c.store.Parties.Get(ctx, partyID)
	if err != nil || !party.IsLive() {
		return false, err
	}
	count, err := c.store.Participants.CountActive(ctx, partyID)
	if err != nil || count > 0 {
		return false, err
	}

	since := party.UpdatedAt
	if party.StartedAt != nil {
		since = *party.StartedAt
	}
	last, err := c.store.Participants.LastLeftAt(ctx, partyID)
	if err != nil {
		return false, err
	}
	if last != nil && last.After(since) {
		since = *last
	}
	if c.Now().Sub(since) < idle {
		return false, nil
	}

	if err := c.end(ctx, party, "idle"); err != nil {
		return false, err
	}
	return true, nil
}

// PruneSignals deletes signals older than ttl.
func (c *Coordinator) PruneSignals(ctx context.Context, ttl time.Duration) (int64, error) {
	return c.store.Signals.PruneBefore(ctx, c.Now().Add(-ttl))
}

func clampPosition(pos, duration int64) int64 {
	if pos < 0 {
		return 0
	}
	if duration > 0 && pos > duration {
		return duration
	}
	return pos
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
