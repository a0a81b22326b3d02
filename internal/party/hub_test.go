package party

import (
	"testing"
	"time"

	"github.com/desertthunder/amply/internal/stats"
	"github.com/stretchr/testify/assert"
)

func TestHub_Publish(t *testing.T) {
	rec := new(stats.MockRecorder)
	rec.On("Incr", stats.EventsSent).Times(3)
	h := NewHub(4, rec, nil)

	a := h.Subscribe("p1", "alice")
	b := h.Subscribe("p1", "bob")
	other := h.Subscribe("p2", "carol")
	assert.Equal(t, 2, h.Subscribers("p1"))

	n := h.Publish(Event{Type: EventChat, PartyID: "p1", ServerTime: time.Now()})
	assert.Equal(t, 2, n)
	assert.Equal(t, EventChat, (<-a.Events()).Type)
	assert.Equal(t, EventChat, (<-b.Events()).Type)
	assert.Len(t, other.Events(), 0)

	n = h.SendTo("bob", Event{Type: EventSignal, PartyID: "p1"})
	assert.Equal(t, 1, n)
	assert.Len(t, a.Events(), 0)
	assert.Equal(t, EventSignal, (<-b.Events()).Type)

	rec.AssertExpectations(t)
}

func TestHub_FullSubscriberIsFlagged(t *testing.T) {
	h := NewHub(1, nil, nil)
	sub := h.Subscribe("p1", "alice")

	assert.Equal(t, 1, h.Publish(Event{Type: EventPlayback, PartyID: "p1"}))
	assert.Equal(t, 0, h.Publish(Event{Type: EventPlayback, PartyID: "p1"}))

	assert.True(t, sub.NeedsResync())
	assert.False(t, sub.NeedsResync(), "flag should clear once read")
	assert.Len(t, sub.Events(), 1)
}

func TestHub_Close(t *testing.T) {
	h := NewHub(1, nil, nil)
	a := h.Subscribe("p1", "alice")
	b := h.Subscribe("p2", "bob")

	h.Close("p1")
	_, open := <-a.Events()
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("p1"))
	assert.Equal(t, 1, h.Subscribers("p2"))

	// already closed by the party
	h.Unsubscribe(a)

	h.Unsubscribe(b)
	h.Unsubscribe(b)
	_, open = <-b.Events()
	assert.False(t, open)

	c := h.Subscribe("p3", "carol")
	h.CloseAll()
	_, open = <-c.Events()
	assert.False(t, open)
	assert.Zero(t, h.Publish(Event{Type: EventChat, PartyID: "p3"}))
}
